package handler

import (
	"net/http"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard Handler
// ============================================================

func dashboardHandler(dashboard *service.Dashboard, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		verr := &domain.ErrValidation{}
		from, ok := parseRangeBound(r.URL.Query().Get("from"))
		if !ok {
			verr.Add("from", "Data inicial inválida")
		}
		to, ok := parseRangeBound(r.URL.Query().Get("to"))
		if !ok {
			verr.Add("to", "Data final inválida")
		}
		if err := verr.OrNil(); err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}

		summary, err := dashboard.Summary(ctx, domain.DateRange{From: from, To: to})
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
