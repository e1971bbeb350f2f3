// Package auth implements the single-user login used by the browser extension.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmgilman/go/errors"

	"github.com/pario-ai/fcagent/pkg/config"
)

// Subject is the principal carried by tokens issued on login.
const Subject = "extension"

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	apiKeyHeader        = "X-API-Key"
)

// Method records how a request was authenticated.
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodCookie Method = "cookie"
	MethodAPIKey Method = "api_key"
)

// Identity is attached to authenticated requests.
type Identity struct {
	Principal string
	Method    Method
	ExpiresAt time.Time
}

// Authenticator issues and checks credentials.
type Authenticator struct {
	cfg config.AuthConfig
	now func() time.Time
}

// New creates an Authenticator.
func New(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg, now: time.Now}
}

// CookieName returns the name of the session cookie.
func (a *Authenticator) CookieName() string {
	return a.cfg.CookieName
}

// Login checks the password and issues a token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if a.cfg.Password == "" {
		return "", time.Time{}, errors.New(errors.CodeUnauthorized, "password login is disabled")
	}
	if !constantTimeEqual(password, a.cfg.Password) {
		return "", time.Time{}, errors.New(errors.CodeUnauthorized, "invalid password")
	}
	return a.Issue(Subject)
}

// Issue signs an HS256 token for subject valid for the configured TTL.
func (a *Authenticator) Issue(subject string) (string, time.Time, error) {
	if a.cfg.JWTSecret == "" {
		return "", time.Time{}, errors.New(errors.CodeInvalidConfig, "auth jwt_secret is not configured")
	}

	now := a.now()
	exp := now.Add(a.cfg.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CodeInternal, "sign token")
	}
	return signed, exp, nil
}

// Verify parses a token and returns its claims.
func (a *Authenticator) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	if a.cfg.JWTSecret == "" {
		return nil, errors.New(errors.CodeUnauthorized, "token authentication is disabled")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.CodeUnauthorized, "token expired")
		}
		return nil, errors.Wrap(err, errors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// Authenticate checks, in order, a bearer token, the session cookie and an
// API key.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	if header := r.Header.Get(authorizationHeader); strings.HasPrefix(header, bearerPrefix) {
		return a.fromToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), MethodJWT)
	}

	if a.cfg.CookieName != "" {
		if c, err := r.Cookie(a.cfg.CookieName); err == nil && c.Value != "" {
			return a.fromToken(c.Value, MethodCookie)
		}
	}

	if key := r.Header.Get(apiKeyHeader); key != "" {
		if a.validAPIKey(key) {
			return &Identity{Principal: Subject, Method: MethodAPIKey}, nil
		}
		return nil, errors.New(errors.CodeUnauthorized, "invalid api key")
	}

	return nil, errors.New(errors.CodeUnauthorized, "authentication required")
}

// SessionCookie builds the HttpOnly cookie carrying token.
func (a *Authenticator) SessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds a cookie that removes the session.
func (a *Authenticator) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Authenticator) fromToken(token string, method Method) (*Identity, error) {
	claims, err := a.Verify(token)
	if err != nil {
		return nil, err
	}
	id := &Identity{Principal: claims.Subject, Method: method}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (a *Authenticator) validAPIKey(key string) bool {
	ok := false
	for _, k := range a.cfg.APIKeys {
		if k != "" && constantTimeEqual(key, k) {
			ok = true
		}
	}
	return ok
}

// constantTimeEqual compares digests so the comparison time does not depend
// on the length of either input.
func constantTimeEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// PrincipalFromContext returns the authenticated principal, or Subject when
// the request was not authenticated.
func PrincipalFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil && id.Principal != "" {
		return id.Principal
	}
	return Subject
}
