package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(setup *service.SetupService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.PropagateTrace)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(setup))
	r.Get("/readyz", readyzHandler(setup, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Setup ---
	r.Route("/setup", func(r chi.Router) {
		r.Get("/", setupStatusHandler(setup))
		r.Post("/", setupConfigureHandler(setup, logger))
		r.Get("/tables", setupTablesHandler(setup, logger))
		r.Get("/test", setupTestHandler(setup))
	})

	// --- Legacy summary endpoint ---
	r.With(RequireFinance(setup, logger)).Get("/api/resumo", summaryHandler(logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(RequireFinance(setup, logger))

			r.Get("/dashboard", dashboardHandler(logger))
			r.Get("/summary", summaryHandler(logger))

			// Accounts
			r.Get("/accounts", listAccountsHandler(logger))
			r.Post("/accounts", createAccountHandler(logger))
			r.Get("/accounts/{accountId}", getAccountHandler(logger))
			r.Put("/accounts/{accountId}", updateAccountHandler(logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(logger))
			r.Post("/accounts/{accountId}/transactions", postTransactionHandler(logger))

			// Shopping lists
			r.Get("/lists", listsOverviewHandler(logger))
			r.Post("/lists", createListHandler(logger))
			r.Get("/lists/{listId}", getListHandler(logger))
			r.Delete("/lists/{listId}", deleteListHandler(logger))
			r.Post("/lists/{listId}/items", addItemHandler(logger))
			r.Delete("/lists/{listId}/items/{itemId}", removeItemHandler(logger))
			r.Post("/lists/{listId}/pay", payListHandler(logger))
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(setup *service.SetupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "controle-api", Status: "healthy", LastChecked: now},
		}

		start := time.Now()
		status := setup.Status(r.Context())
		storeStatus := "healthy"
		if !status.Configured || !status.TablesReady {
			storeStatus = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name:        status.Backend,
			Status:      storeStatus,
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		})

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler answers 200 only when finance requests can be served.
func readyzHandler(setup *service.SetupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := setup.Finance(r.Context()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.LedgerSnapshot())
	}
}
