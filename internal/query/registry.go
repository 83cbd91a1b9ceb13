package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/infra/cache"
)

type scopeKey struct{}

// Scope derives the cache scope of a bearer token. The token itself is
// never used as a map key or logged.
func Scope(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// WithScope stores the caller's cache scope in ctx.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope stored by WithScope.
func ScopeFromContext(ctx context.Context) (string, bool) {
	scope, ok := ctx.Value(scopeKey{}).(string)
	return scope, ok && scope != ""
}

// Registry hands out one Client per credential scope so sessions never see
// each other's cached reads. Clients idle for longer than the TTL are
// forgotten.
type Registry struct {
	clients *cache.InMemory[*Client]
	opts    Options
}

// NewRegistry creates a registry whose clients share opts.
func NewRegistry(idleTTL time.Duration, opts Options) *Registry {
	return &Registry{
		clients: cache.New[*Client](idleTTL),
		opts:    opts,
	}
}

// Client returns the scope's client, creating it on first use.
func (r *Registry) Client(scope string) *Client {
	return r.clients.GetOrCreate(scope, func() *Client {
		return NewClient(r.opts)
	})
}

// FromContext returns the client of the scope stored in ctx. Without a
// scope it returns a fresh client that nothing else shares.
func (r *Registry) FromContext(ctx context.Context) *Client {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return NewClient(r.opts)
	}
	return r.Client(scope)
}

// Drop forgets a scope's cached reads (sign-out, 401).
func (r *Registry) Drop(scope string) {
	if c, ok := r.clients.Get(scope); ok {
		c.Clear()
	}
	r.clients.Delete(scope)
}

// Len counts live scopes.
func (r *Registry) Len() int {
	return r.clients.Len()
}

// Close stops the idle sweeper.
func (r *Registry) Close() {
	r.clients.Close()
}
