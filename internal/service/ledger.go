package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/port"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Query key tags owned by the ledger.
const (
	ResourceTransaction  = "transaction"
	ResourceCategories   = "categories"
	ResourceExpenseTypes = "expense-types"
	ResourceReservations = "reservations"
)

// Ledger reads and writes transactions through the caller's query cache.
type Ledger struct {
	api     port.FinanceAPI
	queries *query.Registry
	metrics *observability.Metrics
	logger  *zap.Logger
	loc     *time.Location
}

// NewLedger creates the ledger service.
func NewLedger(api port.FinanceAPI, queries *query.Registry, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{
		api:     api,
		queries: queries,
		metrics: metrics,
		logger:  logger,
		loc:     time.Local,
	}
}

// Cache returns the query cache of the caller in ctx.
func (l *Ledger) Cache(ctx context.Context) *query.Client {
	return l.queries.FromContext(ctx)
}

// ============================================================
// Reads
// ============================================================

// List returns the page of transactions selected by the filter state.
func (l *Ledger) List(ctx context.Context, st filter.State) (*domain.Page[domain.Transaction], error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.List")
	defer span.End()

	return query.Fetch(ctx, l.Cache(ctx), st.Key(), func(ctx context.Context) (*domain.Page[domain.Transaction], error) {
		return l.api.ListTransactions(ctx, st.Query())
	})
}

// PageLoader loads ledger keys for a query.Observer.
func (l *Ledger) PageLoader() query.Loader[*domain.Page[domain.Transaction]] {
	return func(ctx context.Context, key query.Key) (*domain.Page[domain.Transaction], error) {
		st, err := filter.StateFromKey(key, l.loc)
		if err != nil {
			return nil, err
		}
		return l.api.ListTransactions(ctx, st.Query())
	}
}

// Get returns one transaction.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Get")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidation("id", "Transação inválida")
	}
	return query.Fetch(ctx, l.Cache(ctx), query.Key{ResourceTransaction, id}, func(ctx context.Context) (*domain.Transaction, error) {
		return l.api.GetTransaction(ctx, id)
	})
}

// Categories lists the categories of a transaction type ("" for all).
func (l *Ledger) Categories(ctx context.Context, txType domain.TransactionType) ([]domain.Category, error) {
	if txType != "" && !txType.Valid() {
		return nil, domain.NewValidation("type", "Tipo inválido")
	}
	return query.Fetch(ctx, l.Cache(ctx), query.Key{ResourceCategories, string(txType)}, func(ctx context.Context) ([]domain.Category, error) {
		return l.api.ListCategories(ctx, txType)
	})
}

// ExpenseTypes lists the expense types and their goals.
func (l *Ledger) ExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	return query.Fetch(ctx, l.Cache(ctx), query.Key{ResourceExpenseTypes}, l.api.ListExpenseTypes)
}

// Reservations lists the reservations and their goals.
func (l *Ledger) Reservations(ctx context.Context) ([]domain.ExpenseType, error) {
	return query.Fetch(ctx, l.Cache(ctx), query.Key{ResourceReservations}, l.api.ListReservations)
}

// ============================================================
// Writes
// ============================================================

// TransactionInput is the new-transaction form as typed by the user.
// Value is in reais ("15,50").
type TransactionInput struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Date            string `json:"date"`
	Value           string `json:"value"`
	Type            string `json:"type"`
	PaymentForm     string `json:"paymentForm"`
	CategoryID      string `json:"categoryId"`
	TypeOfExpenseID string `json:"typeOfExpenseId"`
}

// Request validates the form and builds the API body. Type defaults to
// OUTCOME and an outcome's payment form defaults to CREDIT.
func (in TransactionInput) Request() (*domain.CreateTransactionRequest, error) {
	verr := &domain.ErrValidation{}
	req := &domain.CreateTransactionRequest{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Type:            domain.TransactionType(strings.ToUpper(strings.TrimSpace(in.Type))),
		PaymentForm:     domain.PaymentForm(strings.ToUpper(strings.TrimSpace(in.PaymentForm))),
		CategoryID:      strings.TrimSpace(in.CategoryID),
		TypeOfExpenseID: strings.TrimSpace(in.TypeOfExpenseID),
	}

	if req.Name == "" {
		verr.Add("name", "Nome obrigatório")
	}

	if d, err := parseFormDate(in.Date); err != nil {
		verr.Add("date", "Data inválida")
	} else {
		req.Date = d
	}

	if req.Type == "" {
		req.Type = domain.TransactionOutcome
	}
	if !req.Type.Valid() {
		verr.Add("type", "Tipo inválido")
	}

	switch {
	case req.PaymentForm == "" && req.Type == domain.TransactionOutcome:
		req.PaymentForm = domain.PaymentCredit
	case req.PaymentForm != "" && !req.PaymentForm.Valid():
		verr.Add("paymentForm", "Forma de pagamento inválida")
	}

	if req.CategoryID == "" {
		verr.Add("categoryId", "Categoria obrigatória")
	}

	cents, err := view.ParseBRL(in.Value)
	switch {
	case err != nil:
		verr.Add("value", "Valor inválido")
	case cents <= 0:
		verr.Add("value", "Valor deve ser maior que zero")
	default:
		req.Value = cents
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return req, nil
}

func parseFormDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(domain.DateLayout, raw); err == nil {
		return d.Format(domain.DateLayout), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", err
	}
	return ts.Format(domain.DateLayout), nil
}

// Create validates the form, creates the transaction and invalidates the
// ledger and dashboard reads. Nothing is sent when validation fails.
func (l *Ledger) Create(ctx context.Context, in TransactionInput) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Create")
	defer span.End()

	req, err := in.Request()
	if err != nil {
		return err
	}

	if err := l.api.CreateTransaction(ctx, req); err != nil {
		l.metrics.IncrWrite("create", "error")
		l.logger.Warn("create transaction failed", zap.Error(err))
		return fmt.Errorf("create transaction: %w", err)
	}

	l.metrics.IncrWrite("create", "success")
	l.invalidateAfterWrite(ctx)
	return nil
}

// Delete removes a transaction and invalidates the ledger and dashboard
// reads. The ledger is never edited locally: the next read of the active
// key comes from the API.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if strings.TrimSpace(id) == "" {
		return domain.NewValidation("id", "Transação inválida")
	}

	if err := l.api.DeleteTransaction(ctx, id); err != nil {
		l.metrics.IncrWrite("delete", "error")
		l.logger.Warn("delete transaction failed",
			zap.String("transaction_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("delete transaction: %w", err)
	}

	l.metrics.IncrWrite("delete", "success")
	c := l.Cache(ctx)
	c.Invalidate(query.Key{ResourceTransaction, id})
	l.invalidateAfterWrite(ctx)
	return nil
}

func (l *Ledger) invalidateAfterWrite(ctx context.Context) {
	c := l.Cache(ctx)
	n := c.Invalidate(query.Key{filter.ResourceTransactions})
	n += c.Invalidate(query.Key{ResourceMetrics})
	l.logger.Debug("ledger reads invalidated", zap.Int("keys", n))
}
