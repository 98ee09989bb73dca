// Package auth parses bearer tokens into a request identity and gates
// handlers on roles. Tokens are HS256 JWTs; outside production an
// unauthenticated request falls back to a dev identity so the API can be
// exercised without an identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// HasRole reports whether the identity carries the named role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Claims is the JWT payload shape issued for API access.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("missing bearer token")

// ParseToken validates an HS256 token and returns the identity it encodes.
func ParseToken(secret, raw string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

// FromContext returns the identity stored by Middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// WithIdentity returns ctx carrying id. Exposed for tests.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware authenticates requests. When devFallback is true, requests
// without a token proceed as a local admin identity instead of failing.
func Middleware(secret string, devFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(secret, r)
			if err != nil {
				if errors.Is(err, errNoToken) && devFallback {
					id = &Identity{Subject: "dev", Email: "dev@localhost", Roles: []string{"Admin"}}
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func identityFromRequest(secret string, r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errNoToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("authorization header is not a bearer token")
	}
	return ParseToken(secret, raw)
}

// RequireRole rejects requests whose identity lacks the named role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil || !id.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminHeader guards the bulk telemetry import endpoints, which are
// called by an internal pipeline with a static header rather than a JWT.
func RequireAdminHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "admin" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
