package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/piccolo/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// OwnerKey is the context key for the authenticated photo owner.
const OwnerKey contextKey = "owner"

var (
	errNoHeader     = errors.New("authorization header required")
	errBadFormat    = errors.New("invalid authorization header format")
	errInvalidToken = errors.New("invalid or expired token")
)

// Owner returns the authenticated owner stored on ctx, or "" for anonymous
// requests.
func Owner(ctx context.Context) string {
	owner, _ := ctx.Value(OwnerKey).(string)
	return owner
}

// RequireAuth returns middleware that validates a Bearer JWT and injects the
// token subject into the request context. An empty secret disables auth.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return auth(jwtSecret, false)
}

// OptionalAuth is RequireAuth for endpoints that also serve anonymous
// callers: a missing header passes through with no owner, a present but
// invalid one is still rejected.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return auth(jwtSecret, true)
}

func auth(jwtSecret string, allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && allowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			owner, err := authenticate(authHeader, jwtSecret)
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), OwnerKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(authHeader, secret string) (string, error) {
	if authHeader == "" {
		return "", errNoHeader
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errBadFormat
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errInvalidToken
	}
	return sub, nil
}
