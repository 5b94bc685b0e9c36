package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pacioli-erp/pacioli/internal/entries"
	"github.com/pacioli-erp/pacioli/internal/fec"
	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/importer"
	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/masterdata/accounts"
	"github.com/pacioli-erp/pacioli/internal/masterdata/clients"
	"github.com/pacioli-erp/pacioli/internal/masterdata/exercices"
	"github.com/pacioli-erp/pacioli/internal/masterdata/journals"
	"github.com/pacioli-erp/pacioli/internal/observability"
	"github.com/pacioli-erp/pacioli/internal/reports"
	"github.com/pacioli-erp/pacioli/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler   *ledger.Handler
	EntriesHandler  *entries.Handler
	FECHandler      *fec.Handler
	ReportsHandler  *reports.Handler
	HistoryHandler  *history.Handler
	ImporterHandler *importer.Handler

	ClientsHandler   *clients.Handler
	ExercicesHandler *exercices.Handler
	AccountsHandler  *accounts.Handler
	JournalsHandler  *journals.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Pacioli defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.ClientsHandler != nil {
			params.ClientsHandler.MountRoutes(r)
		}
		if params.ExercicesHandler != nil {
			params.ExercicesHandler.MountRoutes(r)
		}
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
		if params.JournalsHandler != nil {
			params.JournalsHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.EntriesHandler != nil {
			params.EntriesHandler.MountRoutes(r)
		}
		if params.FECHandler != nil {
			params.FECHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.HistoryHandler != nil {
			params.HistoryHandler.MountRoutes(r)
		}
		if params.ImporterHandler != nil {
			params.ImporterHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
