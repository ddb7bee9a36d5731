package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/utils"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// Middleware reads an optional bearer token. A valid, unrevoked admin token
// puts its claims in the request context; requests without one pass through
// as anonymous. A token that is present but invalid is refused.
func Middleware(issuer *TokenIssuer, revocations RevocationStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Parse(rawToken)
			if err != nil {
				log.LogSecurity("TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					log.Error("AUTH", fmt.Sprintf("revocation lookup failed: %v", err))
					http.Error(w, "could not verify token", http.StatusServiceUnavailable)
					return
				}
				if revoked {
					http.Error(w, "token has been revoked", http.StatusUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin refuses requests that did not carry an admin token.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r.Context())
		if claims == nil {
			_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Administrator login required", "missing token"))
			return
		}
		if claims.Role != RoleAdmin {
			_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Administrator role required", "forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithClaims(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims returns the admin claims of the request, nil when anonymous.
func Claims(ctx context.Context) *AdminClaims {
	if c, ok := ctx.Value(claimsKey).(*AdminClaims); ok {
		return c
	}
	return nil
}

// IsAdmin reports whether the request carries a valid admin token.
func IsAdmin(ctx context.Context) bool {
	c := Claims(ctx)
	return c != nil && c.Role == RoleAdmin
}
