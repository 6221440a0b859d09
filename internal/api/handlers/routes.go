package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/gorilla/mux"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{"/health", "/auth"}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db  Pinger
	now func() time.Time
}

// NewHealthHandler creates a health handler. A nil db skips the ping.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log := logger.FromContext(r.Context())
			log.Warn().Err(err).Msg("Database ping failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	middleware.WriteJSON(w, code, map[string]string{
		"status": status,
		"time":   h.now().Format(time.RFC3339),
	})
}

// Routes groups the handlers mounted by NewRouter. Nil handlers leave their
// endpoints unmounted; nil limiters disable limiting.
type Routes struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	Transactions *TransactionsHandler
	Liquidity    *LiquidityHandler
	Gemini       *GeminiHandler
	Jobs         *JobsHandler

	AuthLimiter  *middleware.RateLimiter
	ParseLimiter *middleware.RateLimiter
}

// NewRouter mounts every endpoint. Fixed /transactions paths are matched
// before /transactions/{id}, which only accepts digits.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "recurso no encontrado")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "método no permitido")
	})

	if rt.Health != nil {
		r.HandleFunc("/health", rt.Health.Health).Methods(http.MethodGet)
	}

	if rt.Auth != nil {
		a := r.PathPrefix("/auth").Subrouter()
		if rt.AuthLimiter != nil {
			a.Use(rt.AuthLimiter.Middleware)
		}
		a.HandleFunc("/register", rt.Auth.Register).Methods(http.MethodPost)
		a.HandleFunc("/login", rt.Auth.Login).Methods(http.MethodPost)
		a.HandleFunc("/verify", rt.Auth.Verify).Methods(http.MethodGet)
		a.HandleFunc("/verify-email", rt.Auth.Verify).Methods(http.MethodGet)
	}

	if rt.Transactions != nil {
		t := r.PathPrefix("/transactions").Subrouter()
		t.HandleFunc("", rt.Transactions.Create).Methods(http.MethodPost)
		t.HandleFunc("", rt.Transactions.List).Methods(http.MethodGet)
		t.HandleFunc("/purge", rt.Transactions.Purge).Methods(http.MethodDelete)
		t.HandleFunc("/export/csv", rt.Transactions.ExportCSV).Methods(http.MethodGet)
		t.HandleFunc("/import/csv", rt.Transactions.ImportCSV).Methods(http.MethodPost)
		t.HandleFunc("/summary", rt.Transactions.Summary).Methods(http.MethodGet)
		t.HandleFunc("/{id:[0-9]+}", rt.Transactions.Get).Methods(http.MethodGet)
		t.HandleFunc("/{id:[0-9]+}", rt.Transactions.Update).Methods(http.MethodPatch)
		t.HandleFunc("/{id:[0-9]+}", rt.Transactions.Delete).Methods(http.MethodDelete)
	}

	if rt.Liquidity != nil {
		l := r.PathPrefix("/liquidity").Subrouter()
		l.HandleFunc("/balances", rt.Liquidity.Balances).Methods(http.MethodGet)
		l.HandleFunc("/total", rt.Liquidity.Total).Methods(http.MethodGet)
		l.HandleFunc("/update", rt.Liquidity.Update).Methods(http.MethodPost)
		l.HandleFunc("/history", rt.Liquidity.History).Methods(http.MethodGet)
	}

	if rt.Gemini != nil {
		g := r.PathPrefix("/gemini").Subrouter()
		if rt.ParseLimiter != nil {
			g.Use(rt.ParseLimiter.Middleware)
		}
		g.HandleFunc("/parse", rt.Gemini.Parse).Methods(http.MethodPost)
	}

	if rt.Jobs != nil {
		j := r.PathPrefix("/jobs").Subrouter()
		j.HandleFunc("", rt.Jobs.List).Methods(http.MethodGet)
		j.HandleFunc("/{type:[a-z_]+}", rt.Jobs.Enqueue).Methods(http.MethodPost)
		j.HandleFunc("/{id}", rt.Jobs.Get).Methods(http.MethodGet)
	}

	return r
}
