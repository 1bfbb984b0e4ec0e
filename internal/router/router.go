package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/josh-kwaku/backoffice-ledger/internal/handler"
	"github.com/josh-kwaku/backoffice-ledger/internal/metrics"
	"github.com/josh-kwaku/backoffice-ledger/internal/middleware"
)

type Handlers struct {
	Health    *handler.HealthHandler
	Boxes     *handler.BoxHandler
	Ledger    *handler.LedgerHandler
	Movements *handler.MovementHandler
	Projects  *handler.ProjectHandler
	Loans     *handler.LoanHandler
	Rates     *handler.RateHandler
}

type Options struct {
	JWTSecret      string
	MetricsEnabled bool
}

// New wires the HTTP API. Every /v1 route needs a token; writes need the treasurer role and
// ledger postings also need an Idempotency-Key.
func New(h Handlers, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Tracing, middleware.Recovery, middleware.Logging)
	if opts.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health/live", h.Health.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.Health.Readiness).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(middleware.Auth(opts.JWTSecret))

	read := func(path string, fn http.HandlerFunc) {
		api.Handle(path, fn).Methods(http.MethodGet)
	}
	write := func(path string, fn http.HandlerFunc) {
		api.Handle(path, middleware.RequireTreasurer(fn)).Methods(http.MethodPost)
	}
	post := func(path string, fn http.HandlerFunc) {
		api.Handle(path, middleware.RequireTreasurer(middleware.IdempotencyKey(fn))).Methods(http.MethodPost)
	}

	read("/boxes", h.Boxes.List)
	read("/boxes/{owner}", h.Boxes.Get)
	read("/boxes/{owner}/sums", h.Boxes.Sums)
	read("/audit", h.Boxes.Audit)

	read("/movements", h.Movements.List)
	read("/operations/{id}", h.Movements.GetOperation)
	post("/operations/{id}/reverse", h.Ledger.Reverse)

	post("/payments", h.Ledger.RecordProjectPayment)
	post("/fees", h.Ledger.CollectFee)
	post("/expenses", h.Ledger.RecordAdminExpense)
	post("/withdrawals", h.Ledger.RecordMasterWithdrawal)
	post("/conversions", h.Ledger.ConvertCurrency)
	post("/transfers", h.Ledger.Transfer)

	read("/projects", h.Projects.List)
	write("/projects", h.Projects.Create)
	read("/projects/{id}", h.Projects.Get)
	write("/projects/{id}/archive", h.Projects.Archive)

	read("/loans", h.Loans.List)
	post("/loans", h.Loans.Issue)
	read("/loans/overdue", h.Loans.Overdue)
	read("/loans/{id}", h.Loans.Get)
	read("/loans/{id}/history", h.Loans.History)
	read("/loans/{id}/verify", h.Loans.Verify)
	post("/loans/{id}/submit", h.Loans.Submit)
	write("/loans/{id}/activate", h.Loans.Activate)
	post("/loans/{id}/cancel", h.Loans.Cancel)
	post("/installments/{installmentID}/payments", h.Loans.Pay)

	read("/rates/{source}", h.Rates.GetRate)
	read("/rates/{source}/quote", h.Rates.Quote)

	return r
}
