package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/session"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.uber.org/zap"
)

// ============================================================
// Session Handlers
// ============================================================

type sessionResponse struct {
	Redirect     string             `json:"redirect"`
	Notification *view.Notification `json:"notification,omitempty"`
}

func signInHandler(auth *service.Auth, sessions *session.CookieManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions")
		defer span.End()

		var req domain.SignInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		token, err := auth.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			var validation *domain.ErrValidation
			var unauthorized *domain.ErrUnauthorized
			note := view.Failure(view.MsgInvalidCredentials)
			switch {
			case errors.As(err, &validation):
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Fields: validation.Fields})
			case errors.As(err, &unauthorized):
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Notification: &note})
			default:
				logger.Error("sign-in failed", zap.Error(err))
				writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Notification: &note})
			}
			return
		}

		if err := sessions.Issue(w, token); err != nil {
			logger.Error("issue session cookie", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Redirect: "/"})
	}
}

// signOutHandler works with or without a valid cookie.
func signOutHandler(auth *service.Auth, sessions *session.CookieManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token, err := sessions.Read(r); err == nil {
			auth.SignOut(query.WithScope(ctx, query.Scope(token)))
		}
		sessions.Clear(w)
		logger.Debug("signed out")
		writeJSON(w, http.StatusOK, sessionResponse{Redirect: SignInPath})
	}
}

func profileHandler(auth *service.Auth, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		profile, err := auth.Profile(ctx)
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
