package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// GetMonthMetric fetches one of the scalar month metrics
// (income, outcome, total).
func (c *Client) GetMonthMetric(ctx context.Context, name string, r domain.DateRange) (*domain.MonthAmount, error) {
	var amount domain.MonthAmount
	err := c.do(ctx, request{
		op:     "GetMonthMetric",
		method: http.MethodGet,
		path:   "/metrics/" + name,
		query:  rangeQuery(r),
	}, &amount)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

// GetOutcomeByCategory fetches the outcome pie chart. Older deployments send
// a bare array instead of the {result, config} object.
func (c *Client) GetOutcomeByCategory(ctx context.Context, r domain.DateRange) (*domain.CategoryBreakdown, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "GetOutcomeByCategory",
		method: http.MethodGet,
		path:   "/metrics/" + domain.MetricOutcomeCategory,
		query:  rangeQuery(r),
	}, &raw)
	if err != nil {
		return nil, err
	}

	breakdown := &domain.CategoryBreakdown{Result: []domain.CategoryShare{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return breakdown, nil
	}
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &breakdown.Result)
	} else {
		err = json.Unmarshal(raw, breakdown)
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: ServiceName, Err: fmt.Errorf("decode outcome by category: %w", err)}
	}
	if breakdown.Result == nil {
		breakdown.Result = []domain.CategoryShare{}
	}
	return breakdown, nil
}

// GetOutcomeByExpenseType fetches spent-versus-goal per expense type.
func (c *Client) GetOutcomeByExpenseType(ctx context.Context, r domain.DateRange) ([]domain.GoalProgress, error) {
	return c.goalProgress(ctx, "GetOutcomeByExpenseType", domain.MetricOutcomeTypeOfExpense, r)
}

// GetOutcomeByReservation fetches spent-versus-goal per reservation.
func (c *Client) GetOutcomeByReservation(ctx context.Context, r domain.DateRange) ([]domain.GoalProgress, error) {
	return c.goalProgress(ctx, "GetOutcomeByReservation", domain.MetricOutcomeReservation, r)
}

func (c *Client) goalProgress(ctx context.Context, op, metric string, r domain.DateRange) ([]domain.GoalProgress, error) {
	var bars []domain.GoalProgress
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/metrics/" + metric,
		query:  rangeQuery(r),
	}, &bars)
	if err != nil {
		return nil, err
	}
	return nonNil(bars), nil
}
