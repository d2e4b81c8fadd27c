package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/accounting/mappings"
	"github.com/odyssey-erp/freightledger/internal/aging"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/assets"
	"github.com/odyssey-erp/freightledger/internal/integration"
	"github.com/odyssey-erp/freightledger/internal/observability"
	"github.com/odyssey-erp/freightledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AccountsHandler    *accounts.Handler
	MappingsHandler    *mappings.Handler
	JournalsHandler    *journals.Handler
	ARHandler          *allocation.Handler
	APHandler          *allocation.Handler
	AgingHandler       *aging.Handler
	AssetsHandler      *assets.Handler
	IntegrationHandler *integration.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// HandlersFor builds router params for every ledger handler over svc.
func HandlersFor(svc *Services, cfg *Config, logger *slog.Logger, jobHandler *jobs.Handler) RouterParams {
	errs := NewErrorMapper(logger)
	return RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accounts.NewHandler(logger, svc.Accounts, errs),
		MappingsHandler:    mappings.NewHandler(logger, svc.Mappings, errs),
		JournalsHandler:    journals.NewHandler(logger, svc.Journals, errs),
		ARHandler:          allocation.NewHandler(logger, svc.Receivables, errs),
		APHandler:          allocation.NewHandler(logger, svc.Payables, errs),
		AgingHandler:       aging.NewHandler(logger, svc.Aging, errs),
		AssetsHandler:      assets.NewHandler(logger, svc.Assets, svc.Scheduler, errs),
		IntegrationHandler: integration.NewHandler(logger, svc.Hooks, errs),
		JobHandler:         jobHandler,
		Metrics:            svc.Metrics,
	}
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.MappingsHandler != nil {
			r.Route("/mappings", params.MappingsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.ARHandler != nil {
			r.Route("/ar/allocations", params.ARHandler.MountRoutes)
		}
		if params.APHandler != nil {
			r.Route("/ap/allocations", params.APHandler.MountRoutes)
		}
		if params.AgingHandler != nil {
			params.AgingHandler.MountRoutes(r)
		}
		if params.AssetsHandler != nil {
			params.AssetsHandler.MountRoutes(r)
		}
		if params.IntegrationHandler != nil {
			r.Route("/integration", params.IntegrationHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
