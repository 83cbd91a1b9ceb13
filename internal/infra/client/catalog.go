package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// ListCategories fetches the categories of a transaction type.
// An empty type lists all of them.
func (c *Client) ListCategories(ctx context.Context, txType domain.TransactionType) ([]domain.Category, error) {
	params := url.Values{}
	if txType != "" {
		params.Set("type", string(txType))
	}

	var env struct {
		Categories []domain.Category `json:"categories"`
		Meta       domain.PageMeta   `json:"meta"`
	}
	err := c.do(ctx, request{
		op:     "ListCategories",
		method: http.MethodGet,
		path:   "/categories",
		query:  params,
	}, &env)
	if err != nil {
		return nil, err
	}
	return nonNil(env.Categories), nil
}

// ListExpenseTypes fetches the spending buckets. Both the plain and the
// paged deployments are understood.
func (c *Client) ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	var env struct {
		TypesOfExpense []domain.ExpenseType `json:"typesOfExpense"`
		TypeOfExpenses []domain.ExpenseType `json:"typeOfExpenses"`
	}
	err := c.do(ctx, request{
		op:     "ListExpenseTypes",
		method: http.MethodGet,
		path:   c.paths.ExpenseTypes,
	}, &env)
	if err != nil {
		return nil, err
	}
	if env.TypesOfExpense != nil {
		return env.TypesOfExpense, nil
	}
	return nonNil(env.TypeOfExpenses), nil
}

// ListReservations fetches the savings goals.
func (c *Client) ListReservations(ctx context.Context) ([]domain.ExpenseType, error) {
	var env struct {
		Reservations []domain.ExpenseType `json:"reservations"`
		Reservation  []domain.ExpenseType `json:"reservation"`
	}
	err := c.do(ctx, request{
		op:     "ListReservations",
		method: http.MethodGet,
		path:   "/reservations",
	}, &env)
	if err != nil {
		return nil, err
	}
	if env.Reservations != nil {
		return env.Reservations, nil
	}
	return nonNil(env.Reservation), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
