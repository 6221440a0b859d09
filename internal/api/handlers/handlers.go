package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/dvloznov/gestapp/internal/transactions"
	"github.com/gorilla/mux"
)

const (
	maxJSONBody     = 1 << 20
	internalMessage = "Error interno del servidor"
)

// currentUser returns the user set by middleware.Auth, writing 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "no autenticado")
	}
	return id, ok
}

// decodeJSON reads a bounded JSON body into dst, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return false
	}
	return true
}

// pathID parses the {id} route variable, writing 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "id inválido: "+raw)
		return 0, false
	}
	return id, true
}

// writeServiceError maps a service error to its HTTP status. Unexpected
// errors are logged with msg and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var (
		importErr *transactions.ImportError
		valErr    *domain.ValidationError
	)
	switch {
	case errors.Is(err, transactions.ErrImportTooLarge):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, publicMessage(transactions.ErrImportTooLarge, domain.ErrValidation))
	case errors.As(err, &importErr):
		middleware.WriteErrorDetails(w, http.StatusBadRequest, importErr.Message, importErr.Details)
	case errors.As(err, &valErr):
		middleware.WriteError(w, http.StatusBadRequest, valErr.Message)
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, publicMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrUnauthorized):
		middleware.WriteError(w, http.StatusUnauthorized, publicMessage(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, publicMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, publicMessage(err, domain.ErrConflict))
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, internalMessage)
	}
}

// publicMessage drops the trailing sentinel text that %w wrapping appends.
func publicMessage(err, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}
