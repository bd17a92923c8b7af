// Package rest exposes account commands and queries over HTTP.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/louisbranch/ledger/internal/platform/requestctx"
	"github.com/louisbranch/ledger/internal/platform/timeouts"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/observability"
	"github.com/louisbranch/ledger/internal/services/account/service"
	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/shopspring/decimal"
)

// CommandService is the write side used by the command routes.
type CommandService interface {
	CreateAccount(ctx context.Context, ownerID, currency string) (service.Result, error)
	UpdateStatus(ctx context.Context, accountID string, status account.Status) (service.Result, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (service.Result, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (service.Result, error)
	Delete(ctx context.Context, accountID string) (service.Result, error)
}

// QueryService is the read side used by the query routes.
type QueryService interface {
	GetAccount(ctx context.Context, id string) (storage.AccountRecord, error)
	GetAccountByOwner(ctx context.Context, ownerID string) (storage.AccountRecord, error)
	GetOperation(ctx context.Context, id string) (storage.OperationRecord, error)
	ListOperations(ctx context.Context, accountID string, page, size int) (storage.OperationPage, error)
}

// Server is the account HTTP API.
type Server struct {
	commands CommandService
	queries  QueryService
	metrics  *observability.Metrics
}

// NewServer creates the HTTP API. metrics may be nil.
func NewServer(commands CommandService, queries QueryService, metrics *observability.Metrics) *Server {
	return &Server{commands: commands, queries: queries, metrics: metrics}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestIDContext)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeouts.Request))
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/accounts/commands", func(r chi.Router) {
		r.Post("/create", s.handleCreate)
		r.Put("/update", s.handleUpdateStatus)
		r.Put("/credit", s.handleCredit)
		r.Put("/debit", s.handleDebit)
		r.Delete("/delete/{id}", s.handleDelete)
	})
	r.Route("/accounts/queries", func(r chi.Router) {
		r.Get("/get-account/{id}", s.handleGetAccount)
		r.Get("/find-account/{ownerId}", s.handleFindAccount)
		r.Get("/get-operation/{id}", s.handleGetOperation)
		r.Get("/find-operations", s.handleFindOperations)
	})

	return r
}

// requestIDContext copies chi's request id into requestctx so it reaches
// the events a request appends.
func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(middleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), requestID)))
	})
}
