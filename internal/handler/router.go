package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/session"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps is everything the router serves.
type Deps struct {
	Ledger    *service.Ledger
	Dashboard *service.Dashboard
	Auth      *service.Auth
	Sessions  *session.CookieManager
	Queries   *query.Registry
	Breaker   *gobreaker.CircuitBreaker
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	// Filters configures the ledger filter defaults (clock, calendar).
	Filters filter.Options
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ic := NewInterceptor(d.Sessions, d.Queries, d.Metrics, logger)

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Breaker))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	r.NotFound(notFoundHandler())

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/queries", queryMetricsHandler(d.Metrics, d.Queries))

		// =============================================
		// Session
		// =============================================
		r.Post("/sessions", signInHandler(d.Auth, d.Sessions, logger))
		r.Post("/sessions/sign-out", signOutHandler(d.Auth, d.Sessions, logger))

		// =============================================
		// Authenticated
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(ic.Middleware)

			r.Get("/me", profileHandler(d.Auth, ic, logger))
			r.Get("/dashboard", dashboardHandler(d.Dashboard, ic, logger))

			r.Get("/transactions", listTransactionsHandler(d.Ledger, d.Filters, ic, logger))
			r.Post("/transactions", createTransactionHandler(d.Ledger, ic, logger))
			r.Post("/transactions/filters", submitFiltersHandler(d.Filters))
			r.Post("/transactions/filters/clear", clearFiltersHandler(d.Filters))
			r.Post("/transactions/paginate", paginateHandler(d.Filters))
			r.Get("/transactions/{id}", getTransactionHandler(d.Ledger, ic, logger))
			r.Delete("/transactions/{id}", deleteTransactionHandler(d.Ledger, ic, logger))

			r.Get("/categories", listCategoriesHandler(d.Ledger, ic, logger))
			r.Get("/expense-types", listExpenseTypesHandler(d.Ledger, ic, logger))
			r.Get("/reservations", listReservationsHandler(d.Ledger, ic, logger))
		})
	})

	return r
}

// ============================================================
// Health & Metrics
// ============================================================

func healthzHandler(cb *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		if cb != nil {
			state := cb.State()
			status := "healthy"
			switch state {
			case gobreaker.StateHalfOpen:
				status = "degraded"
			case gobreaker.StateOpen:
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: cb.Name(), Status: status, Circuit: state.String(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
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

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func queryMetricsHandler(metrics *observability.Metrics, queries *query.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := 0
		if queries != nil {
			sessions = queries.Len()
		}
		writeJSON(w, http.StatusOK, metrics.QuerySnapshot(sessions))
	}
}

// notFoundHandler is the static page for unmatched paths.
func notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not found",
			"title":   "Página não encontrada",
			"message": "Voltar para o Dashboard",
			"href":    "/",
		})
	}
}
