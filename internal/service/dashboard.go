package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/port"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

// ResourceMetrics is the query key tag of every dashboard read.
const ResourceMetrics = "metrics"

// Dashboard assembles the metrics page.
type Dashboard struct {
	api     port.MetricsAPI
	queries *query.Registry
	logger  *zap.Logger
}

// NewDashboard creates the dashboard service.
func NewDashboard(api port.MetricsAPI, queries *query.Registry, logger *zap.Logger) *Dashboard {
	return &Dashboard{api: api, queries: queries, logger: logger}
}

// MetricKey is the query key of a dashboard metric over a range.
func MetricKey(name string, r domain.DateRange) query.Key {
	return query.Key{ResourceMetrics, name, rangeBound(r.From), rangeBound(r.To)}
}

func rangeBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Summary reads the six dashboard cards concurrently. A failed card is
// rendered in its error state and the others still show; the returned error
// is non-nil only when the credential was rejected, which ends the session.
func (d *Dashboard) Summary(ctx context.Context, r domain.DateRange) (*view.Dashboard, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.Summary")
	defer span.End()

	c := d.queries.FromContext(ctx)
	out := &view.Dashboard{
		Income:               view.LoadingCard(view.TitleIncome),
		Outcome:              view.LoadingCard(view.TitleOutcome),
		Total:                view.LoadingCard(view.TitleTotal),
		OutcomeByCategory:    view.FailedPieChart(),
		OutcomeByExpenseType: view.FailedGoalChart(view.TitleOutcomeByExpenseType),
		OutcomeByReservation: view.FailedGoalChart(view.TitleOutcomeByReservation),
	}
	errs := make([]error, 6)

	// Every goroutine returns nil: one failed card must not cancel the rest.
	var g errgroup.Group

	scalar := func(i int, name string, render func(domain.MonthAmount) view.MetricCard, title string, dst *view.MetricCard) {
		g.Go(func() error {
			a, err := query.Fetch(ctx, c, MetricKey(name, r), func(ctx context.Context) (*domain.MonthAmount, error) {
				return d.api.GetMonthMetric(ctx, name, r)
			})
			if err != nil {
				errs[i] = d.cardFailed(name, err)
				*dst = view.FailedCard(title)
				return nil
			}
			*dst = render(*a)
			return nil
		})
	}
	scalar(0, domain.MetricIncome, view.IncomeCard, view.TitleIncome, &out.Income)
	scalar(1, domain.MetricOutcome, view.OutcomeCard, view.TitleOutcome, &out.Outcome)
	scalar(2, domain.MetricTotal, view.TotalCard, view.TitleTotal, &out.Total)

	g.Go(func() error {
		b, err := query.Fetch(ctx, c, MetricKey(domain.MetricOutcomeCategory, r), func(ctx context.Context) (*domain.CategoryBreakdown, error) {
			return d.api.GetOutcomeByCategory(ctx, r)
		})
		if err != nil {
			errs[3] = d.cardFailed(domain.MetricOutcomeCategory, err)
			return nil
		}
		out.OutcomeByCategory = view.NewPieChart(*b)
		return nil
	})

	g.Go(func() error {
		items, err := query.Fetch(ctx, c, MetricKey(domain.MetricOutcomeTypeOfExpense, r), func(ctx context.Context) ([]domain.GoalProgress, error) {
			return d.api.GetOutcomeByExpenseType(ctx, r)
		})
		if err != nil {
			errs[4] = d.cardFailed(domain.MetricOutcomeTypeOfExpense, err)
			return nil
		}
		out.OutcomeByExpenseType = view.ExpenseTypeChart(items)
		return nil
	})

	g.Go(func() error {
		items, err := query.Fetch(ctx, c, MetricKey(domain.MetricOutcomeReservation, r), func(ctx context.Context) ([]domain.GoalProgress, error) {
			return d.api.GetOutcomeByReservation(ctx, r)
		})
		if err != nil {
			errs[5] = d.cardFailed(domain.MetricOutcomeReservation, err)
			return nil
		}
		out.OutcomeByReservation = view.ReservationChart(items)
		return nil
	})

	_ = g.Wait()

	for _, err := range errs {
		if domain.IsUnauthorized(err) {
			return nil, err
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Join(errs...) != nil {
		return nil, ctxErr
	}
	return out, nil
}

func (d *Dashboard) cardFailed(metric string, err error) error {
	d.logger.Warn("dashboard card failed",
		zap.String("metric", metric),
		zap.Error(err),
	)
	return err
}
