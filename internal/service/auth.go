package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/port"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// ResourceProfile is the query key tag of the signed-in user.
const ResourceProfile = "me"

// Auth handles sign-in, the profile and sign-out. Where the credential
// lives (cookie, session file) is the caller's business.
type Auth struct {
	api     port.AuthAPI
	queries *query.Registry
	logger  *zap.Logger
}

// NewAuth creates the auth service.
func NewAuth(api port.AuthAPI, queries *query.Registry, logger *zap.Logger) *Auth {
	return &Auth{api: api, queries: queries, logger: logger}
}

// SignIn validates the credentials locally and exchanges them for a bearer
// token. A rejection by the API comes back as *domain.ErrUnauthorized with
// the message shown to the user.
func (a *Auth) SignIn(ctx context.Context, email, password string) (string, error) {
	ctx, span := authTracer.Start(ctx, "Auth.SignIn")
	defer span.End()

	email = strings.TrimSpace(email)
	verr := &domain.ErrValidation{}
	if email == "" {
		verr.Add("email", "E-mail obrigatório")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "E-mail inválido")
	}
	if password == "" {
		verr.Add("password", "Senha obrigatória")
	}
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	token, err := a.api.SignIn(ctx, email, password)
	if err != nil {
		var failed *domain.ErrRequestFailed
		if errors.As(err, &failed) && (failed.Status == http.StatusBadRequest || failed.IsUnauthorized()) {
			a.logger.Info("sign-in rejected", zap.Int("status", failed.Status))
			return "", &domain.ErrUnauthorized{Message: view.MsgInvalidCredentials}
		}
		return "", fmt.Errorf("sign in: %w", err)
	}
	return token, nil
}

// Profile returns the signed-in user. It is read once per session.
func (a *Auth) Profile(ctx context.Context) (*domain.Profile, error) {
	ctx, span := authTracer.Start(ctx, "Auth.Profile")
	defer span.End()

	c := a.queries.FromContext(ctx)
	return query.FetchWithStaleTime(ctx, c, query.Key{ResourceProfile}, query.Forever, a.api.GetProfile)
}

// SignOut forgets every cached read of the caller's scope.
func (a *Auth) SignOut(ctx context.Context) {
	if scope, ok := query.ScopeFromContext(ctx); ok {
		a.queries.Drop(scope)
	}
}
