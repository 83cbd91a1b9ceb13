package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/client"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/resilience"
	"github.com/boddenberg/pato-rico-bfa/internal/port"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticToken(token string) port.TokenSource {
	return port.TokenSourceFunc(func(context.Context) (string, bool) {
		return token, token != ""
	})
}

func newClient(t *testing.T, srv *httptest.Server, token string, cfg resilience.Config, opts ...client.Option) *client.Client {
	t.Helper()
	cb := resilience.NewCircuitBreaker("test-"+t.Name(), client.IsClientError)
	return client.New(srv.Client(), srv.URL, staticToken(token), cb, cfg, observability.NewMetrics(), zap.NewNop(), opts...)
}

func TestListTransactions_SendsFiltersAndBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		q := r.URL.Query()
		assert.Equal(t, "2024-05-01", q.Get("initialDate"))
		assert.Equal(t, "2024-05-31", q.Get("endDate"))
		assert.Equal(t, "c1", q.Get("categoryId"))
		assert.Equal(t, "2", q.Get("pageIndex"))

		_, _ = w.Write([]byte(`{
			"transactions": [
				{"id":"t1","name":"Mercado","description":null,"date":"2024-05-03","value":1550,
				 "type":"OUTCOME","paymentForm":"PIX","category":"Comida","reservation":"Essencial"}
			],
			"meta": {"pageIndex":2,"perPage":10,"totalCount":21}
		}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, "tok-1", resilience.Config{})
	page, err := c.ListTransactions(context.Background(), domain.TransactionQuery{
		InitialDate: "2024-05-01",
		EndDate:     "2024-05-31",
		CategoryID:  "c1",
		PageIndex:   2,
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	tx := page.Items[0]
	assert.Equal(t, "t1", tx.ID)
	assert.Equal(t, int64(1550), tx.Value)
	assert.Equal(t, "Comida", tx.CategoryName)
	assert.Equal(t, "Essencial", tx.ReservationName)
	assert.Equal(t, domain.PaymentPix, tx.PaymentForm)
	assert.Equal(t, domain.PageMeta{PageIndex: 2, PerPage: 10, TotalCount: 21}, page.Meta)
}

func TestListTransactions_OmitsEmptyFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("categoryId"))
		assert.False(t, q.Has("initialDate"))
		assert.Equal(t, "0", q.Get("pageIndex"))
		_, _ = w.Write([]byte(`{"transactions":[],"meta":{"pageIndex":0,"perPage":10,"totalCount":0}}`))
	}))
	defer srv.Close()

	page, err := newClient(t, srv, "tok", resilience.Config{}).ListTransactions(context.Background(), domain.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestRequestID_PropagatedFromContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"id":"u1","name":"Ana","email":"ana@example.com"}`))
	}))
	defer srv.Close()

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	profile, err := newClient(t, srv, "tok", resilience.Config{}).GetProfile(ctx)

	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
}

func TestNon2xx_YieldsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "tok", resilience.Config{}).GetTransaction(context.Background(), "missing")

	var failed *domain.ErrRequestFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, http.StatusNotFound, failed.Status)
	assert.Equal(t, http.MethodGet, failed.Method)
	assert.Equal(t, "/transactions/missing", failed.Path)
	assert.Contains(t, failed.Body, "not found")
}

func TestUnauthorized_FiresHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var fired atomic.Int32
	c := newClient(t, srv, "expired", resilience.Config{}, client.WithUnauthorizedHook(func(context.Context) {
		fired.Add(1)
	}))

	_, err := c.GetProfile(context.Background())

	assert.True(t, domain.IsUnauthorized(err))
	assert.Equal(t, int32(1), fired.Load())
}

func TestMissingToken_FailsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "", resilience.Config{}).GetProfile(context.Background())

	var unauthorized *domain.ErrUnauthorized
	assert.True(t, errors.As(err, &unauthorized))
	assert.Equal(t, int32(0), hits.Load())
}

func TestSignIn_IsPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions/password", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body domain.SignInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body.Email)

		_, _ = w.Write([]byte(`{"token":"jwt-abc"}`))
	}))
	defer srv.Close()

	token, err := newClient(t, srv, "", resilience.Config{}).SignIn(context.Background(), "ana@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", token)
}

func TestSignIn_RejectedDoesNotFireHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var fired atomic.Int32
	c := newClient(t, srv, "still-valid", resilience.Config{}, client.WithUnauthorizedHook(func(context.Context) {
		fired.Add(1)
	}))

	_, err := c.SignIn(context.Background(), "ana@example.com", "wrong")

	var failed *domain.ErrRequestFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusUnauthorized, failed.Status)
	assert.Equal(t, int32(0), fired.Load())
}

func TestReads_NotRetriedByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "tok", resilience.Config{}).ListExpenseTypes(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestReads_RetryOn5xxWhenConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"reservations":[{"id":"r1","name":"Viagem","goalValue":"500000"}]}`))
	}))
	defer srv.Close()

	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}
	items, err := newClient(t, srv, "tok", cfg).ListReservations(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].GoalValue)
	assert.Equal(t, domain.Cents(500000), *items[0].GoalValue)
	assert.Equal(t, int32(3), hits.Load())
}

func TestReads_4xxNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}
	_, err := newClient(t, srv, "tok", cfg).ListCategories(context.Background(), domain.TransactionIncome)

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWrites_NeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}
	err := newClient(t, srv, "tok", cfg).DeleteTransaction(context.Background(), "t1")

	var failed *domain.ErrRequestFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, http.MethodDelete, failed.Method)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCreateTransaction_EmptyBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body domain.CreateTransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1550), body.Value)
		assert.Equal(t, domain.PaymentCredit, body.PaymentForm)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newClient(t, srv, "tok", resilience.Config{}).CreateTransaction(context.Background(), &domain.CreateTransactionRequest{
		Name:        "Mercado",
		Date:        "2024-05-03",
		Value:       1550,
		Type:        domain.TransactionOutcome,
		CategoryID:  "c1",
		PaymentForm: domain.PaymentCredit,
	})
	assert.NoError(t, err)
}

func TestExpenseTypes_ConfigurablePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/type-of-expenses", r.URL.Path)
		_, _ = w.Write([]byte(`{"typeOfExpenses":[{"id":"e1","name":"Lazer","percentage":"30"}],"meta":{"pageIndex":0,"perPage":10,"totalCount":1}}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, "tok", resilience.Config{}, client.WithPaths(client.Paths{ExpenseTypes: "/type-of-expenses"}))
	items, err := c.ListExpenseTypes(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Percentage)
	assert.Equal(t, domain.Percent(30), *items[0].Percentage)
}

func TestMonthMetric_StringAmountAndRange(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics/"+domain.MetricIncome, r.URL.Path)
		assert.Equal(t, "2024-05-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.False(t, r.URL.Query().Has("to"))
		_, _ = w.Write([]byte(`{"amount":"150000"}`))
	}))
	defer srv.Close()

	amount, err := newClient(t, srv, "tok", resilience.Config{}).GetMonthMetric(context.Background(), domain.MetricIncome, domain.DateRange{From: from})

	require.NoError(t, err)
	assert.Equal(t, domain.Cents(150000), amount.Amount)
}

func TestOutcomeByCategory_AcceptsBothShapes(t *testing.T) {
	bodies := map[string]string{
		"object": `{"result":[{"category":"Comida","amount":1000,"fill":"var(--color-a)"}],"config":{"label":"x"}}`,
		"array":  `[{"category":"Comida","amount":1000}]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			breakdown, err := newClient(t, srv, "tok", resilience.Config{}).GetOutcomeByCategory(context.Background(), domain.DateRange{})

			require.NoError(t, err)
			require.Len(t, breakdown.Result, 1)
			assert.Equal(t, "Comida", breakdown.Result[0].Category)
			assert.Equal(t, domain.Cents(1000), breakdown.Result[0].Amount)
		})
	}
}

func TestGoalProgress_AcceptsValorSpelling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Lazer","valor":2500,"meta":10000}]`))
	}))
	defer srv.Close()

	bars, err := newClient(t, srv, "tok", resilience.Config{}).GetOutcomeByExpenseType(context.Background(), domain.DateRange{})

	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, domain.GoalProgress{Name: "Lazer", Value: 2500, Meta: 10000}, bars[0])
}

func TestCircuitBreaker_OpensOn5xxOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv, "tok", resilience.Config{})
	for i := 0; i < 6; i++ {
		_, _ = c.GetProfile(context.Background())
	}

	_, err := c.GetProfile(context.Background())
	var open *domain.ErrCircuitOpen
	assert.True(t, errors.As(err, &open))
}

func TestTransportError_IsExternalService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cb := resilience.NewCircuitBreaker("closed-server", client.IsClientError)
	c := client.New(http.DefaultClient, url, staticToken("tok"), cb, resilience.Config{}, observability.NewMetrics(), zap.NewNop())

	_, err := c.GetProfile(context.Background())

	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, client.ServiceName, ext.Service)
}
