package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/entitlements"
	"github.com/meridian-erp/meridian/internal/fin/invoices"
	"github.com/meridian-erp/meridian/internal/fin/payments"
	"github.com/meridian-erp/meridian/internal/fin/payroll"
	"github.com/meridian-erp/meridian/internal/fin/recon"
	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/dimensions"
	"github.com/meridian-erp/meridian/internal/ledger/journal"
	"github.com/meridian-erp/meridian/internal/ledger/periods"
	"github.com/meridian-erp/meridian/internal/ledger/reports"
	"github.com/meridian-erp/meridian/internal/masterdata"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/scope"
	"github.com/meridian-erp/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Membership scope.MembershipChecker

	JournalHandler      *journal.Handler
	AccountsHandler     *accounts.Handler
	DimensionsHandler   *dimensions.Handler
	PeriodsHandler      *periods.Handler
	ReportsHandler      *reports.Handler
	AuditHandler        *audit.Handler
	EntitlementsHandler *entitlements.Handler
	InvoicesHandler     *invoices.Handler
	PaymentsHandler     *payments.Handler
	PayrollHandler      *payroll.Handler
	ReconHandler        *recon.Handler
	MasterDataHandler   *masterdata.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults. Tenant
// routes sit behind the scope middleware; admin routes do not.
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

	r.Route("/v1", func(r chi.Router) {
		r.Use(scope.Middleware(params.Logger, params.Membership))

		params.JournalHandler.MountRoutes(r)
		params.AccountsHandler.MountRoutes(r)
		params.DimensionsHandler.MountRoutes(r)
		params.PeriodsHandler.MountRoutes(r)
		params.ReportsHandler.MountRoutes(r)
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.EntitlementsHandler != nil {
			params.EntitlementsHandler.MountRoutes(r)
		}
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(r)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(r)
		}
		if params.PayrollHandler != nil {
			params.PayrollHandler.MountRoutes(r)
		}
		if params.ReconHandler != nil {
			params.ReconHandler.MountRoutes(r)
		}
	})

	if params.MasterDataHandler != nil {
		r.Route("/admin", params.MasterDataHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		params.JobHandler.MountRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
