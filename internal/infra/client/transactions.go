package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

type transactionsEnvelope struct {
	Transactions []domain.Transaction `json:"transactions"`
	Meta         domain.PageMeta      `json:"meta"`
}

// ListTransactions fetches one page of the ledger. Empty filters are omitted.
func (c *Client) ListTransactions(ctx context.Context, q domain.TransactionQuery) (*domain.Page[domain.Transaction], error) {
	params := url.Values{}
	if q.InitialDate != "" {
		params.Set("initialDate", q.InitialDate)
	}
	if q.EndDate != "" {
		params.Set("endDate", q.EndDate)
	}
	if q.CategoryID != "" {
		params.Set("categoryId", q.CategoryID)
	}
	params.Set("pageIndex", strconv.Itoa(q.PageIndex))

	var env transactionsEnvelope
	err := c.do(ctx, request{
		op:     "ListTransactions",
		method: http.MethodGet,
		path:   "/transactions",
		query:  params,
	}, &env)
	if err != nil {
		return nil, err
	}

	items := env.Transactions
	if items == nil {
		items = []domain.Transaction{}
	}
	return &domain.Page[domain.Transaction]{Items: items, Meta: env.Meta}, nil
}

// GetTransaction fetches a single transaction.
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := c.do(ctx, request{
		op:     "GetTransaction",
		method: http.MethodGet,
		path:   "/transactions/" + url.PathEscape(id),
	}, &tx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateTransaction posts a new transaction. Never retried.
func (c *Client) CreateTransaction(ctx context.Context, req *domain.CreateTransactionRequest) error {
	return c.do(ctx, request{
		op:     "CreateTransaction",
		method: http.MethodPost,
		path:   "/transactions",
		body:   req,
	}, nil)
}

// DeleteTransaction removes a transaction. Never retried.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:     "DeleteTransaction",
		method: http.MethodDelete,
		path:   "/transactions/" + url.PathEscape(id),
	}, nil)
}
