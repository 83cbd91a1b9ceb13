package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

// mockAPI is an in-memory finance API.
type mockAPI struct {
	mu           sync.Mutex
	transactions []domain.Transaction
	created      []*domain.CreateTransactionRequest

	listCalls    atomic.Int32
	profileCalls atomic.Int32
	metricCalls  atomic.Int32

	lastQuery domain.TransactionQuery
	listErr   error
	writeErr  error
	signInErr error
	metricErr map[string]error
}

func (m *mockAPI) ListTransactions(_ context.Context, q domain.TransactionQuery) (*domain.Page[domain.Transaction], error) {
	m.listCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := append([]domain.Transaction(nil), m.transactions...)
	return &domain.Page[domain.Transaction]{
		Items: items,
		Meta:  domain.PageMeta{PageIndex: q.PageIndex, PerPage: 10, TotalCount: len(items)},
	}, nil
}

func (m *mockAPI) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.ID == id {
			tx := tx
			return &tx, nil
		}
	}
	return nil, &domain.ErrRequestFailed{Method: http.MethodGet, Path: "/transactions/" + id, Status: http.StatusNotFound}
}

func (m *mockAPI) CreateTransaction(_ context.Context, req *domain.CreateTransactionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.created = append(m.created, req)
	m.transactions = append(m.transactions, domain.Transaction{ID: "new", Name: req.Name, Value: req.Value, Type: req.Type})
	return nil
}

func (m *mockAPI) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	kept := m.transactions[:0]
	for _, tx := range m.transactions {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	m.transactions = kept
	return nil
}

func (m *mockAPI) ListCategories(_ context.Context, _ domain.TransactionType) ([]domain.Category, error) {
	return []domain.Category{{ID: "c1", Name: "Comida"}}, nil
}

func (m *mockAPI) ListExpenseTypes(_ context.Context) ([]domain.ExpenseType, error) {
	return []domain.ExpenseType{{ID: "e1", Name: "Essencial"}}, nil
}

func (m *mockAPI) ListReservations(_ context.Context) ([]domain.ExpenseType, error) {
	return []domain.ExpenseType{{ID: "r1", Name: "Viagem"}}, nil
}

func (m *mockAPI) metricError(name string) error {
	m.metricCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricErr[name]
}

func (m *mockAPI) GetMonthMetric(_ context.Context, name string, _ domain.DateRange) (*domain.MonthAmount, error) {
	if err := m.metricError(name); err != nil {
		return nil, err
	}
	amounts := map[string]domain.Cents{
		domain.MetricIncome:  500000,
		domain.MetricOutcome: 150000,
		domain.MetricTotal:   350000,
	}
	return &domain.MonthAmount{Amount: amounts[name]}, nil
}

func (m *mockAPI) GetOutcomeByCategory(_ context.Context, _ domain.DateRange) (*domain.CategoryBreakdown, error) {
	if err := m.metricError(domain.MetricOutcomeCategory); err != nil {
		return nil, err
	}
	return &domain.CategoryBreakdown{Result: []domain.CategoryShare{{Category: "Comida", Amount: 150000}}}, nil
}

func (m *mockAPI) GetOutcomeByExpenseType(_ context.Context, _ domain.DateRange) ([]domain.GoalProgress, error) {
	if err := m.metricError(domain.MetricOutcomeTypeOfExpense); err != nil {
		return nil, err
	}
	return []domain.GoalProgress{{Name: "Essencial", Value: 100000, Meta: 80000}}, nil
}

func (m *mockAPI) GetOutcomeByReservation(_ context.Context, _ domain.DateRange) ([]domain.GoalProgress, error) {
	if err := m.metricError(domain.MetricOutcomeReservation); err != nil {
		return nil, err
	}
	return []domain.GoalProgress{{Name: "Viagem", Value: 5000, Meta: 20000}}, nil
}

func (m *mockAPI) SignIn(_ context.Context, _, _ string) (string, error) {
	if m.signInErr != nil {
		return "", m.signInErr
	}
	return "token-1", nil
}

func (m *mockAPI) GetProfile(_ context.Context) (*domain.Profile, error) {
	m.profileCalls.Add(1)
	return &domain.Profile{ID: "u1", Name: "Ana", Email: "ana@example.com"}, nil
}

// --- Helpers ---

func newRegistry(t *testing.T) *query.Registry {
	t.Helper()
	r := query.NewRegistry(time.Minute, query.Options{StaleTime: time.Minute})
	t.Cleanup(r.Close)
	return r
}

func scoped(scope string) context.Context {
	return query.WithScope(context.Background(), scope)
}

func ledgerState() filter.State {
	return filter.New("initialDate=2024-05-01&endDate=2024-05-31", filter.Options{Location: time.Local}).State()
}

func seeded() *mockAPI {
	return &mockAPI{transactions: []domain.Transaction{
		{ID: "t1", Name: "Mercado", Value: 1550, Type: domain.TransactionOutcome},
		{ID: "t2", Name: "Salário", Value: 500000, Type: domain.TransactionIncome},
	}}
}

func ids(page *domain.Page[domain.Transaction]) []string {
	out := make([]string, 0, len(page.Items))
	for _, tx := range page.Items {
		out = append(out, tx.ID)
	}
	return out
}

// --- Ledger ---

func TestLedger_ListUsesCacheAndFilterQuery(t *testing.T) {
	api := seeded()
	ledger := service.NewLedger(api, newRegistry(t), observability.NewMetrics(), zap.NewNop())
	ctx := scoped("s1")

	st := ledgerState()
	page, err := ledger.List(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids(page))
	assert.Equal(t, st.Query(), api.lastQuery)

	_, err = ledger.List(ctx, st)
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.listCalls.Load())
}

func TestLedger_ScopesDoNotShareReads(t *testing.T) {
	api := seeded()
	ledger := service.NewLedger(api, newRegistry(t), observability.NewMetrics(), zap.NewNop())

	_, err := ledger.List(scoped("s1"), ledgerState())
	require.NoError(t, err)
	_, err = ledger.List(scoped("s2"), ledgerState())
	require.NoError(t, err)

	assert.EqualValues(t, 2, api.listCalls.Load())
}

func TestLedger_CreateValidatesBeforeSending(t *testing.T) {
	api := seeded()
	ledger := service.NewLedger(api, newRegistry(t), observability.NewMetrics(), zap.NewNop())

	err := ledger.Create(scoped("s1"), service.TransactionInput{Value: "abc", Date: "ontem", Type: "GIFT"})

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "type")
	assert.Contains(t, verr.Fields, "categoryId")
	assert.Contains(t, verr.Fields, "value")
	assert.Empty(t, api.created)
}

func TestTransactionInput_Request(t *testing.T) {
	req, err := service.TransactionInput{
		Name:       " Mercado ",
		Date:       "2024-05-03",
		Value:      "15,50",
		CategoryID: "c1",
	}.Request()
	require.NoError(t, err)

	assert.Equal(t, "Mercado", req.Name)
	assert.Equal(t, int64(1550), req.Value)
	assert.Equal(t, domain.TransactionOutcome, req.Type)
	assert.Equal(t, domain.PaymentCredit, req.PaymentForm)
	assert.Equal(t, "2024-05-03", req.Date)

	income, err := service.TransactionInput{
		Name: "Salário", Date: "2024-05-05T10:00:00Z", Value: "5.000,00", Type: "income", CategoryID: "c2",
	}.Request()
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionIncome, income.Type)
	assert.Empty(t, income.PaymentForm)
	assert.Equal(t, int64(500000), income.Value)
}

func TestTransactionInput_RejectsZeroAndBadPaymentForm(t *testing.T) {
	_, err := service.TransactionInput{
		Name: "x", Date: "2024-05-03", Value: "0,00", CategoryID: "c1", PaymentForm: "CHEQUE",
	}.Request()

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Valor deve ser maior que zero", verr.Fields["value"])
	assert.Contains(t, verr.Fields, "paymentForm")
}

func TestLedger_CreateInvalidatesLedgerAndMetrics(t *testing.T) {
	api := seeded()
	registry := newRegistry(t)
	ledger := service.NewLedger(api, registry, observability.NewMetrics(), zap.NewNop())
	dashboard := service.NewDashboard(api, registry, zap.NewNop())
	ctx := scoped("s1")

	_, err := ledger.List(ctx, ledgerState())
	require.NoError(t, err)
	_, err = dashboard.Summary(ctx, domain.DateRange{})
	require.NoError(t, err)
	metricCalls := api.metricCalls.Load()

	require.NoError(t, ledger.Create(ctx, service.TransactionInput{
		Name: "Cinema", Date: "2024-05-10", Value: "40", CategoryID: "c1",
	}))

	page, err := ledger.List(ctx, ledgerState())
	require.NoError(t, err)
	assert.Contains(t, ids(page), "new")
	assert.EqualValues(t, 2, api.listCalls.Load())

	_, err = dashboard.Summary(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, metricCalls*2, api.metricCalls.Load())
}

func TestLedger_FailedWriteLeavesCache(t *testing.T) {
	api := seeded()
	ledger := service.NewLedger(api, newRegistry(t), observability.NewMetrics(), zap.NewNop())
	ctx := scoped("s1")

	_, err := ledger.List(ctx, ledgerState())
	require.NoError(t, err)

	api.writeErr = &domain.ErrRequestFailed{Method: http.MethodDelete, Path: "/transactions/t1", Status: http.StatusInternalServerError}
	err = ledger.Delete(ctx, "t1")

	var failed *domain.ErrRequestFailed
	require.ErrorAs(t, err, &failed)
	assert.True(t, ledger.Cache(ctx).IsFresh(ledgerState().Key()))
}

func TestLedger_AfterDeleteActiveKeyExcludesID(t *testing.T) {
	api := seeded()
	ledger := service.NewLedger(api, newRegistry(t), observability.NewMetrics(), zap.NewNop())
	ctx := scoped("s1")

	obs := query.NewObserver(ctx, ledger.Cache(ctx), ledger.PageLoader(), nil)
	t.Cleanup(obs.Close)

	key := ledgerState().Key()
	obs.SetKey(key)
	require.Eventually(t, func() bool {
		s := obs.State()
		return s.HasData && !s.IsFetching
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, ids(obs.State().Data), "t1")

	require.NoError(t, ledger.Delete(ctx, "t1"))

	require.Eventually(t, func() bool {
		s := obs.State()
		return s.HasData && !s.IsFetching && len(s.Data.Items) == 1
	}, time.Second, 5*time.Millisecond)
	s := obs.State()
	assert.True(t, s.Key.Equal(key))
	assert.Equal(t, []string{"t2"}, ids(s.Data))
}

func TestLedger_GetNotFound(t *testing.T) {
	ledger := service.NewLedger(seeded(), newRegistry(t), observability.NewMetrics(), zap.NewNop())

	tx, err := ledger.Get(scoped("s1"), "t2")
	require.NoError(t, err)
	assert.Equal(t, "Salário", tx.Name)

	_, err = ledger.Get(scoped("s1"), "missing")
	var failed *domain.ErrRequestFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusNotFound, failed.Status)
}

func TestLedger_Catalogs(t *testing.T) {
	ledger := service.NewLedger(seeded(), newRegistry(t), observability.NewMetrics(), zap.NewNop())
	ctx := scoped("s1")

	cats, err := ledger.Categories(ctx, domain.TransactionOutcome)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	_, err = ledger.Categories(ctx, "GIFT")
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)

	types, err := ledger.ExpenseTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Essencial", types[0].Name)

	res, err := ledger.Reservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Viagem", res[0].Name)
}

// --- Dashboard ---

func TestDashboard_Summary(t *testing.T) {
	dashboard := service.NewDashboard(seeded(), newRegistry(t), zap.NewNop())

	d, err := dashboard.Summary(scoped("s1"), domain.DateRange{})
	require.NoError(t, err)

	assert.Equal(t, "R$ 5.000,00", d.Income.Value)
	assert.Equal(t, "R$ 1.500,00", d.Outcome.Value)
	assert.Equal(t, view.TrendUp, d.Total.Trend)
	assert.Equal(t, view.CardReady, d.OutcomeByCategory.State)
	assert.True(t, d.OutcomeByExpenseType.Bars[0].Over)
	assert.Equal(t, view.CardReady, d.OutcomeByReservation.State)
}

func TestDashboard_CardsDegradeIndependently(t *testing.T) {
	api := seeded()
	api.metricErr = map[string]error{
		domain.MetricOutcome:         errors.New("boom"),
		domain.MetricOutcomeCategory: &domain.ErrExternalService{Service: "finance-api", Err: errors.New("timeout")},
	}
	dashboard := service.NewDashboard(api, newRegistry(t), zap.NewNop())

	d, err := dashboard.Summary(scoped("s1"), domain.DateRange{})
	require.NoError(t, err)

	assert.Equal(t, view.CardReady, d.Income.State)
	assert.Equal(t, view.CardError, d.Outcome.State)
	assert.Equal(t, view.TitleOutcome, d.Outcome.Title)
	assert.Equal(t, view.CardError, d.OutcomeByCategory.State)
	assert.Equal(t, view.CardReady, d.Total.State)
}

func TestDashboard_UnauthorizedEndsSummary(t *testing.T) {
	api := seeded()
	api.metricErr = map[string]error{
		domain.MetricIncome: &domain.ErrRequestFailed{Method: http.MethodGet, Path: "/metrics", Status: http.StatusUnauthorized},
	}
	dashboard := service.NewDashboard(api, newRegistry(t), zap.NewNop())

	_, err := dashboard.Summary(scoped("s1"), domain.DateRange{})
	assert.True(t, domain.IsUnauthorized(err))
}

func TestMetricKey(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	key := service.MetricKey(domain.MetricIncome, domain.DateRange{From: from})

	assert.Equal(t, query.Key{"metrics", domain.MetricIncome, "2024-05-01T03:00:00Z", ""}, key)
}

// --- Auth ---

func TestAuth_SignInValidatesLocally(t *testing.T) {
	auth := service.NewAuth(seeded(), newRegistry(t), zap.NewNop())

	_, err := auth.SignIn(context.Background(), "not-an-email", "")

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "E-mail inválido", verr.Fields["email"])
	assert.Equal(t, "Senha obrigatória", verr.Fields["password"])
}

func TestAuth_SignInRejected(t *testing.T) {
	api := seeded()
	api.signInErr = &domain.ErrRequestFailed{Method: http.MethodPost, Path: "/sessions/password", Status: http.StatusBadRequest}
	auth := service.NewAuth(api, newRegistry(t), zap.NewNop())

	_, err := auth.SignIn(context.Background(), "ana@example.com", "wrong")

	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, view.MsgInvalidCredentials, unauthorized.Message)
}

func TestAuth_ProfileIsReadOncePerScope(t *testing.T) {
	api := seeded()
	registry := newRegistry(t)
	auth := service.NewAuth(api, registry, zap.NewNop())
	ctx := scoped("s1")

	token, err := auth.SignIn(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	for i := 0; i < 3; i++ {
		p, err := auth.Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ana", p.Name)
	}
	assert.EqualValues(t, 1, api.profileCalls.Load())

	auth.SignOut(ctx)
	assert.Equal(t, 0, registry.Len())

	_, err = auth.Profile(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, api.profileCalls.Load())
}
