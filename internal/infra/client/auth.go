package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// SignIn exchanges email and password for a bearer token.
// It is the only call made without a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var resp domain.SignInResponse
	err := c.do(ctx, request{
		op:     "SignIn",
		method: http.MethodPost,
		path:   "/sessions/password",
		body:   domain.SignInRequest{Email: email, Password: password},
		public: true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &domain.ErrExternalService{Service: ServiceName, Err: errors.New("sign-in response carried no token")}
	}
	return resp.Token, nil
}

// GetProfile fetches the signed-in user.
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var profile domain.Profile
	err := c.do(ctx, request{
		op:     "GetProfile",
		method: http.MethodGet,
		path:   c.paths.Profile,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
