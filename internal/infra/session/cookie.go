// Package session stores the bearer token between requests: in a sealed
// cookie for the BFA and in a private file for the CLI.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"
)

// CookieName is the session cookie.
const CookieName = "pato-rico"

// DefaultTTL is the credential lifetime when the token does not say otherwise.
const DefaultTTL = 7 * 24 * time.Hour

const nonceSize = 24

var errMalformed = errors.New("malformed session cookie")

// sealed is the cookie plaintext.
type sealed struct {
	Token     string `json:"t"`
	ExpiresAt int64  `json:"e"`
}

// CookieManager issues, reads and clears the session cookie. The token is
// sealed with NaCl secretbox so the browser can neither read nor forge it.
type CookieManager struct {
	key    [32]byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	logger *zap.Logger
}

// NewCookieManager derives the sealing key from secret.
func NewCookieManager(secret string, ttl time.Duration, secure bool, logger *zap.Logger) *CookieManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CookieManager{
		key:    sha256.Sum256([]byte(secret)),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
		logger: logger,
	}
}

// Expiry returns when a freshly issued credential for token expires: the
// configured TTL, cut short by the token's own exp claim when it is a JWT.
func (m *CookieManager) Expiry(token string) time.Time {
	return Expiry(token, m.now(), m.ttl)
}

// Issue sets the session cookie for token.
func (m *CookieManager) Issue(w http.ResponseWriter, token string) error {
	expiresAt := m.Expiry(token)

	plain, err := json.Marshal(sealed{Token: token, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("session nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &m.key)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(box),
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read opens the session cookie. Missing, tampered and expired cookies all
// yield *domain.ErrUnauthorized.
func (m *CookieManager) Read(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "sessão não encontrada"}
	}

	s, err := m.open(c.Value)
	if err != nil {
		m.logger.Debug("session cookie rejected", zap.Error(err))
		return "", &domain.ErrUnauthorized{Message: "sessão inválida"}
	}
	if m.now().Unix() >= s.ExpiresAt {
		return "", &domain.ErrUnauthorized{Message: "sessão expirada"}
	}
	return s.Token, nil
}

func (m *CookieManager) open(value string) (*sealed, error) {
	box, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return nil, errMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &m.key)
	if !ok {
		return nil, errMalformed
	}

	var s sealed
	if err := json.Unmarshal(plain, &s); err != nil || s.Token == "" {
		return nil, errMalformed
	}
	return &s, nil
}

// Clear removes the session cookie.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Expiry computes min(now+ttl, exp claim). Tokens that are not JWTs, or
// carry no exp, get the full ttl.
func Expiry(token string, now time.Time, ttl time.Duration) time.Time {
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return expiresAt
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return expiresAt
	}
	if exp.Time.Before(expiresAt) {
		return exp.Time
	}
	return expiresAt
}

// ============================================================
// Request-scoped credential
// ============================================================

type tokenKey struct{}

// WithToken stores the caller's bearer token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// ContextTokens is the TokenSource of the BFA: the token travels with the
// request context.
var ContextTokens port.TokenSource = port.TokenSourceFunc(TokenFromContext)
