package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/jobs"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/gorilla/mux"
)

// JobTypes reports which job types have a handler wired.
type JobTypes interface {
	Supports(t jobs.JobType) bool
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	types     JobTypes
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, types JobTypes) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		types:     types,
	}
}

// Enqueue handles POST /jobs/{type}. The optional body {"dryRun": true} is
// passed to the handler.
func (h *JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	jobType, err := jobs.ParseJobType(mux.Vars(r)["type"])
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.types.Supports(jobType) {
		middleware.WriteError(w, http.StatusServiceUnavailable, fmt.Sprintf("el trabajo %s no está configurado en este servidor", jobType))
		return
	}

	var req struct {
		DryRun bool `json:"dryRun"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return
	}

	job := &jobs.Job{Type: jobType, UserID: userID, DryRun: req.DryRun}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		writeServiceError(w, r, err, "Failed to enqueue job")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("job_id", job.ID).
		Str("job_type", string(jobType)).
		Msg("Job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// Get handles GET /jobs/{id}. Jobs of other users are reported as missing.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if err == nil && job.UserID != userID {
		err = fmt.Errorf("trabajo %s no encontrado: %w", jobID, domain.ErrNotFound)
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /jobs[?type=&status=&limit=&offset=]
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: userID,
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// decodeOptionalJSON decodes a body that may be empty.
func decodeOptionalJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}
