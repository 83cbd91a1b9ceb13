// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete finance API client and credential storage.
package port

import (
	"context"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// TransactionsAPI reads and writes ledger entries on the finance API.
type TransactionsAPI interface {
	ListTransactions(ctx context.Context, q domain.TransactionQuery) (*domain.Page[domain.Transaction], error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, req *domain.CreateTransactionRequest) error
	DeleteTransaction(ctx context.Context, id string) error
}

// CatalogAPI reads categories and spending goals.
type CatalogAPI interface {
	ListCategories(ctx context.Context, txType domain.TransactionType) ([]domain.Category, error)
	ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error)
	ListReservations(ctx context.Context) ([]domain.ExpenseType, error)
}

// MetricsAPI reads dashboard aggregates.
type MetricsAPI interface {
	GetMonthMetric(ctx context.Context, name string, r domain.DateRange) (*domain.MonthAmount, error)
	GetOutcomeByCategory(ctx context.Context, r domain.DateRange) (*domain.CategoryBreakdown, error)
	GetOutcomeByExpenseType(ctx context.Context, r domain.DateRange) ([]domain.GoalProgress, error)
	GetOutcomeByReservation(ctx context.Context, r domain.DateRange) ([]domain.GoalProgress, error)
}

// AuthAPI exchanges credentials and reads the signed-in user.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	GetProfile(ctx context.Context) (*domain.Profile, error)
}

// FinanceAPI is everything the finance API client offers.
type FinanceAPI interface {
	TransactionsAPI
	CatalogAPI
	MetricsAPI
	AuthAPI
}

// TokenSource yields the bearer token for the current caller.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, bool) { return f(ctx) }

// CredentialStore persists the session credential between invocations.
type CredentialStore interface {
	TokenSource
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
