package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/dvloznov/gestapp/internal/transactions"
)

// TransactionService is the ledger API used by TransactionsHandler.
type TransactionService interface {
	Create(ctx context.Context, userID int64, in transactions.Input) (*domain.Transaction, error)
	List(ctx context.Context, userID int64) ([]*domain.Transaction, error)
	Get(ctx context.Context, userID, id int64) (*domain.Transaction, error)
	Update(ctx context.Context, userID, id int64, p transactions.Patch) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id int64) error
	Purge(ctx context.Context, userID int64) (int64, error)
	Summary(ctx context.Context, userID int64, from, to civil.Date) (*domain.CashFlowSummary, error)
	ExportCSV(ctx context.Context, userID int64, w io.Writer) error
	ImportCSV(ctx context.Context, userID int64, r io.Reader) (*transactions.ImportResult, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc TransactionService
	now func() time.Time
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, now: time.Now}
}

// Create handles POST /transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in transactions.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	tx, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// List handles GET /transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	txs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list transactions")
		return
	}

	// An empty ledger is [] on the wire, never null.
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Get handles GET /transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tx, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Update handles PATCH /transactions/{id}
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p transactions.Patch
	if !decodeJSON(w, r, &p) {
		return
	}

	tx, err := h.svc.Update(r.Context(), userID, id, p)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": 1})
}

// Purge handles DELETE /transactions/purge
func (h *TransactionsHandler) Purge(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.svc.Purge(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to purge transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// ExportCSV handles GET /transactions/export/csv. The file is rendered in
// memory first so a failure still produces a JSON error.
func (h *TransactionsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportCSV(r.Context(), userID, &buf); err != nil {
		writeServiceError(w, r, err, "Failed to export transactions")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, transactions.ExportFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("Client went away during CSV export")
	}
}

// ImportCSV handles POST /transactions/import/csv with the file in the
// multipart field "file".
func (h *TransactionsHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// Leave headroom for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, transactions.MaxImportSize+64<<10)
	if err := r.ParseMultipartForm(transactions.MaxImportSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, transactions.ErrImportTooLarge, "Failed to import CSV")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "se esperaba un formulario multipart con el campo file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "no se proporcionó ningún archivo")
		return
	}
	defer file.Close()

	if header.Size > transactions.MaxImportSize {
		writeServiceError(w, r, transactions.ErrImportTooLarge, "Failed to import CSV")
		return
	}

	res, err := h.svc.ImportCSV(r.Context(), userID, file)
	if err != nil {
		writeServiceError(w, r, err, "Failed to import CSV")
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().
		Str("filename", header.Filename).
		Int("imported", res.Imported).
		Msg("CSV imported")
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Summary handles GET /transactions/summary[?from=YYYY-MM-DD&to=YYYY-MM-DD]
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}

	summary, err := h.svc.Summary(r.Context(), userID, from, to)
	if err != nil {
		writeServiceError(w, r, err, "Failed to summarize transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// queryDate parses an optional YYYY-MM-DD query parameter. An absent
// parameter yields the zero date.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (civil.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return civil.Date{}, true
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("%s inválido, se espera YYYY-MM-DD", name))
		return civil.Date{}, false
	}
	return d, true
}
