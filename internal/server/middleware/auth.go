package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JeffCSZ/vms/internal/model"
	"github.com/JeffCSZ/vms/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated identity making the request, extracted from
// a verified bearer token. Token verification is pure: nothing here touches
// the store.
type Principal struct {
	IdentityID  string
	DisplayName string
	Email       string
	Role        model.Role
	UnitNo      string
	StreetNo    string
}

// Authenticate returns an HTTP middleware that validates the Authorization
// bearer token. On success a Principal is attached to the request context.
// Failures return a 401 whose error context carries category
// "authentication", the single sentinel clients key their logout contract
// off.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "Authentication required. Provide a Bearer token.")
				return
			}

			claims, err := authSvc.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				msg := "Invalid token"
				if err == service.ErrTokenExpired {
					msg = "Token expired"
				}
				writeAuthError(w, msg)
				return
			}

			principal := &Principal{
				IdentityID:  claims.IdentityID(),
				DisplayName: claims.DisplayName,
				Email:       claims.Email,
				Role:        claims.Role,
				UnitNo:      claims.UnitNo,
				StreetNo:    claims.StreetNo,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":401,"message":"` + message + `","context":{"category":"authentication"}}}`))
}
