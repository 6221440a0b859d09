package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/dvloznov/gestapp/internal/nlparse"
)

// GeminiHandler exposes natural-language parsing.
type GeminiHandler struct {
	parser nlparse.Parser
}

// NewGeminiHandler creates a new parse handler.
func NewGeminiHandler(parser nlparse.Parser) *GeminiHandler {
	return &GeminiHandler{parser: parser}
}

// Parse handles POST /gemini/parse with body {"userInput": "..."}.
func (h *GeminiHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserInput string `json:"userInput"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	parsed, err := h.parser.ParseTransaction(r.Context(), req.UserInput)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, parsed)
	case errors.Is(err, nlparse.ErrModelResponse):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeServiceError(w, r, err, "Invalid parse request")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Gemini call failed")
		middleware.WriteError(w, http.StatusBadGateway, "Error al procesar con Gemini")
	}
}
