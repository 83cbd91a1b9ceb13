package handler

import (
	"net/http"

	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/session"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.uber.org/zap"
)

// SignInPath is where an expired session is sent.
const SignInPath = "/sign-in"

// Interceptor owns the session boundary: it admits requests carrying a
// valid session cookie and ends the session on any 401.
type Interceptor struct {
	sessions *session.CookieManager
	queries  *query.Registry
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewInterceptor creates the session interceptor.
func NewInterceptor(sessions *session.CookieManager, queries *query.Registry, metrics *observability.Metrics, logger *zap.Logger) *Interceptor {
	return &Interceptor{sessions: sessions, queries: queries, metrics: metrics, logger: logger}
}

// Middleware reads the session cookie and puts the bearer token and its
// cache scope in the request context. Requests without a usable cookie
// are answered as expired sessions.
func (ic *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ic.sessions.Read(r)
		if err != nil {
			ic.Expire(w, r, err)
			return
		}

		ctx := session.WithToken(r.Context(), token)
		ctx = query.WithScope(ctx, query.Scope(token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Expire ends the caller's session: the cookie is cleared, the scope's
// cached reads are dropped and the client is told to sign in again.
func (ic *Interceptor) Expire(w http.ResponseWriter, r *http.Request, cause error) {
	ic.logger.Warn("session expired",
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Error(cause),
	)
	ic.metrics.IncrUnauthorized()
	ic.sessions.Clear(w)
	if scope, ok := query.ScopeFromContext(r.Context()); ok {
		ic.queries.Drop(scope)
	}

	note := view.Failure(view.MsgSessionExpired)
	w.Header().Set("Location", SignInPath)
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:        "unauthorized",
		Notification: &note,
		Redirect:     SignInPath,
	})
}
