package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Fake finance API
// ============================================================

type upstream struct {
	mu       sync.Mutex
	token    string
	queries  []url.Values
	deleted  []string
	profiles int
	listFail bool
}

func (u *upstream) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()

		if r.URL.Path == "/sessions/password" {
			var req domain.SignInRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(domain.SignInResponse{Token: u.token})
			return
		}

		if r.Header.Get("Authorization") != "Bearer "+u.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.URL.Path == "/me":
			u.profiles++
			_ = json.NewEncoder(w).Encode(domain.Profile{ID: "u1", Name: "Ana", Email: "ana@example.com"})
		case r.URL.Path == "/transactions" && u.listFail:
			w.WriteHeader(http.StatusInternalServerError)
		case r.URL.Path == "/transactions":
			u.queries = append(u.queries, r.URL.Query())
			_, _ = w.Write([]byte(`{"transactions":[{"id":"t1","name":"Mercado","date":"2024-05-10T00:00:00.000Z","value":12345,"type":"OUTCOME","paymentForm":"PIX","categoryName":"Casa"}],"meta":{"pageIndex":` +
				r.URL.Query().Get("pageIndex") + `,"perPage":10,"totalCount":25}}`))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/transactions/"):
			u.deleted = append(u.deleted, strings.TrimPrefix(r.URL.Path, "/transactions/"))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (u *upstream) expire() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.token = "rotated"
}

func (u *upstream) failList() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listFail = true
}

func (u *upstream) lastQuery() url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.queries[len(u.queries)-1]
}

type cliFixture struct {
	api      *upstream
	stateDir string
	config   string
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()

	api := &upstream{token: "tok-1"}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	stateDir := filepath.Join(dir, "state")
	yaml := "api:\n  url: " + srv.URL + "\nstate:\n  dir: " + stateDir + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o600))

	t.Setenv("PATORICO_PASSWORD", "secret")
	return &cliFixture{api: api, stateDir: stateDir, config: config}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", f.config}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	setContext(ctx, rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// setContext replaces the context cobra kept on every command from an
// earlier run.
func setContext(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(ctx, sub)
	}
}

func (f *cliFixture) ledgerQuery(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.stateDir, ledgerFileName))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

// ============================================================
// Commands
// ============================================================

func TestLogin_StoresSessionAndGreets(t *testing.T) {
	f := newCLI(t)

	out, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Olá, Ana!")

	info, err := os.Stat(filepath.Join(f.stateDir, sessionFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newCLI(t)
	t.Setenv("PATORICO_PASSWORD", "wrong")

	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.Error(t, err)
	assert.True(t, domain.IsUnauthorized(err))

	_, statErr := os.Stat(filepath.Join(f.stateDir, sessionFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLogin_RejectedKeepsStoredSession(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	t.Setenv("PATORICO_PASSWORD", "wrong")
	_, err = f.run(t, "login", "--email", "ana@example.com")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(f.stateDir, sessionFileName))
	require.NoError(t, err)

	out, err := f.run(t, "me")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
}

func TestCommands_RequireSession(t *testing.T) {
	f := newCLI(t)

	_, err := f.run(t, "me")
	require.Error(t, err)
	assert.Equal(t, errNotSignedIn, err)
}

func TestTransactions_FilterAndPagePersistQuery(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	out, err := f.run(t, "transactions", "filter", "--category", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mercado")
	assert.Contains(t, out, "Página 1 de 3")
	assert.Equal(t, "categoryId=c1&page=1", f.ledgerQuery(t))
	assert.Equal(t, "c1", f.api.lastQuery().Get("categoryId"))
	assert.Equal(t, "0", f.api.lastQuery().Get("pageIndex"))

	out, err = f.run(t, "transactions", "page", "next")
	require.NoError(t, err)
	assert.Contains(t, out, "Página 2 de 3")
	assert.Equal(t, "categoryId=c1&page=2", f.ledgerQuery(t))
	assert.Equal(t, "1", f.api.lastQuery().Get("pageIndex"))

	_, err = f.run(t, "transactions", "list")
	require.NoError(t, err)
	assert.Equal(t, "1", f.api.lastQuery().Get("pageIndex"), "list keeps the persisted page")
}

func TestTransactions_FilterKeptWhenReadFails(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	_, err = f.run(t, "transactions", "filter", "--category", "c1")
	require.NoError(t, err)
	assert.Equal(t, "categoryId=c1&page=1", f.ledgerQuery(t))

	f.api.failList()
	_, err = f.run(t, "transactions", "filter", "--category", "c2")
	require.Error(t, err)
	assert.Equal(t, "categoryId=c2&page=1", f.ledgerQuery(t))

	_, err = f.run(t, "transactions", "page", "0")
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "categoryId=c2&page=1", f.ledgerQuery(t), "rejected input leaves the query alone")
}

func TestTransactions_ClearResetsToCurrentMonth(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	_, err = f.run(t, "transactions", "clear")
	require.NoError(t, err)

	q, err := url.ParseQuery(f.ledgerQuery(t))
	require.NoError(t, err)
	assert.Equal(t, "1", q.Get("page"))
	assert.NotEmpty(t, q.Get("initialDate"))
	assert.NotEmpty(t, q.Get("endDate"))
	assert.Empty(t, q.Get("categoryId"))
}

func TestTransactions_Delete(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	out, err := f.run(t, "transactions", "delete", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Transação excluida com sucesso!")
	assert.Equal(t, []string{"t1"}, f.api.deleted)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	f.api.expire()
	_, err = f.run(t, "me")
	require.Error(t, err)
	assert.True(t, domain.IsUnauthorized(err))

	_, err = f.run(t, "me")
	assert.Equal(t, errNotSignedIn, err, "the rejected credential is forgotten")
}

func TestLogout(t *testing.T) {
	f := newCLI(t)
	_, err := f.run(t, "login", "--email", "ana@example.com")
	require.NoError(t, err)

	_, err = f.run(t, "logout")
	require.NoError(t, err)

	_, err = f.run(t, "me")
	assert.Equal(t, errNotSignedIn, err)
}

// ============================================================
// Helpers
// ============================================================

func TestPageIndex(t *testing.T) {
	tests := []struct {
		arg     string
		current int
		want    int
		wantErr bool
	}{
		{arg: "1", current: 4, want: 0},
		{arg: "3", current: 0, want: 2},
		{arg: "next", current: 1, want: 2},
		{arg: "prev", current: 1, want: 0},
		{arg: "two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := pageIndex(tt.arg, tt.current)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDashboardRange(t *testing.T) {
	now := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	r, err := dashboardRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), r.To)

	r, err = dashboardRange("2024-01-15", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), r.From)

	_, err = dashboardRange("15/01/2024", "nope", now)
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, &domain.ErrRequestFailed{Method: http.MethodGet, Path: "/me", Status: http.StatusUnauthorized})
	assert.Contains(t, buf.String(), "Sua sessão expirou")

	buf.Reset()
	printError(&buf, domain.NewValidation("value", "Valor inválido"))
	assert.Contains(t, buf.String(), "value: Valor inválido")
}
