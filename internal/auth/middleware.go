package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

type tokenKey struct{}

func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}

// BearerToken requires an Authorization bearer header and stores the token
// in the request context so it can be forwarded to the ledger. Tokens whose
// exp claim has passed are rejected early; signatures are left to the ledger.
func BearerToken(onError func(http.ResponseWriter, *http.Request, int, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			tok := strings.TrimSpace(authz[len("Bearer "):])
			if tok == "" {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if exp, ok := ExpiresAt(tok); ok && !time.Now().Before(exp) {
				onError(w, r, http.StatusUnauthorized, "token_expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), tok)))
		})
	}
}

// RequireToken admits only requests whose bearer token, as stored by
// BearerToken, equals expected. It must run after BearerToken.
func RequireToken(expected string, onError func(http.ResponseWriter, *http.Request, int, string)) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := TokenFromContext(r.Context())
			if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(tok), want) != 1 {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
