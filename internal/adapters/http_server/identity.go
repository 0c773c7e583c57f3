package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

// RequesterFrom returns the authenticated user id, or "" for anonymous calls.
func RequesterFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func WithRequester(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Identity resolves the requester from an HS256 bearer token (sub claim).
// Requests without credentials pass through anonymously; a bad token is 401.
// With an empty secret the X-User-ID header is trusted instead.
func Identity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
					r = r.WithContext(WithRequester(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "expected a bearer token")
				return
			}
			sub, err := parseSubject(raw, secret)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), sub)))
		})
	}
}

func parseSubject(raw, secret string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}
