package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/client"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/resilience"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/session"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

const (
	sessionFileName = "session.json"
	ledgerFileName  = "ledger.query"
)

// errNotSignedIn is returned before any network call when there is no
// usable credential on disk.
var errNotSignedIn = &domain.ErrUnauthorized{Message: "Você não está conectado. Use 'patorico login'."}

// app holds everything a command needs. It is built per invocation.
type app struct {
	logger    *zap.Logger
	store     *session.FileStore
	queries   *query.Registry
	ledger    *service.Ledger
	dashboard *service.Dashboard
	auth      *service.Auth
	ledgerRaw *ledgerQuery
}

// newApp wires the client stack from viper settings.
func newApp() (*app, error) {
	stateDir := os.ExpandEnv(viper.GetString("state.dir"))
	if stateDir == "" {
		return nil, errors.New("state.dir is not set")
	}

	logger := observability.NewLogger(viper.GetString("logging.level"),
		observability.WithOutput("stderr"),
		observability.WithService("patorico"),
	)
	metrics := observability.NewMetrics()

	store := session.NewFileStore(filepath.Join(stateDir, sessionFileName), viper.GetDuration("session.ttl"))
	queries := query.NewRegistry(time.Hour, query.Options{
		StaleTime: viper.GetDuration("query.stale_time"),
		Recorder:  metrics,
	})

	api := client.New(
		&http.Client{Timeout: viper.GetDuration("http.timeout")},
		viper.GetString("api.url"),
		store,
		resilience.NewCircuitBreaker(client.ServiceName, client.IsClientError),
		resilience.Config{
			MaxRetries:     viper.GetInt("http.max_retries"),
			InitialBackoff: viper.GetDuration("http.initial_backoff"),
		},
		metrics,
		logger,
		client.WithPaths(client.Paths{
			Profile:      viper.GetString("api.profile_path"),
			ExpenseTypes: viper.GetString("api.expense_types_path"),
		}),
		client.WithUnauthorizedHook(func(ctx context.Context) {
			if err := store.Clear(ctx); err != nil {
				logger.Warn("failed to clear session file", zap.Error(err))
			}
		}),
	)

	return &app{
		logger:    logger,
		store:     store,
		queries:   queries,
		ledger:    service.NewLedger(api, queries, metrics, logger),
		dashboard: service.NewDashboard(api, queries, logger),
		auth:      service.NewAuth(api, queries, logger),
		ledgerRaw: &ledgerQuery{path: filepath.Join(stateDir, ledgerFileName)},
	}, nil
}

// close releases the app's background work.
func (a *app) close() {
	a.queries.Close()
	_ = a.logger.Sync()
}

// signedIn scopes ctx to the stored credential.
func (a *app) signedIn(ctx context.Context) (context.Context, error) {
	token, ok := a.store.Token(ctx)
	if !ok {
		return nil, errNotSignedIn
	}
	return query.WithScope(ctx, query.Scope(token)), nil
}

// filters loads the persisted ledger query into a synchronizer.
func (a *app) filters() (*filter.Synchronizer, error) {
	raw, err := a.ledgerRaw.load()
	if err != nil {
		return nil, err
	}
	return filter.New(raw, filter.Options{}), nil
}

// saveFilters persists the synchronizer's canonical query string.
func (a *app) saveFilters(s *filter.Synchronizer) error {
	return a.ledgerRaw.save(s.Encode())
}

// ledgerQuery is the CLI's address bar: the ledger query string kept
// between runs.
type ledgerQuery struct {
	path string
}

func (q *ledgerQuery) load() (string, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read ledger query: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (q *ledgerQuery) save(raw string) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(q.path, []byte(raw+"\n"), 0o600); err != nil {
		return fmt.Errorf("write ledger query: %w", err)
	}
	return nil
}

// withApp builds the app for one command run.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
