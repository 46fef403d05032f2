package auth

import (
	"log/slog"
	"net/http"
)

// DevOwner is the subject given to every request when auth is disabled.
const DevOwner = "dev-user"

// DevPrincipal returns the synthetic principal used in development.
func DevPrincipal() *Principal {
	return &Principal{
		Sub: DevOwner,
		Scopes: map[string]bool{
			"openid":    true,
			ScopeRead:   true,
			ScopeWrite:  true,
			ScopeRender: true,
		},
		Roles:    map[string]bool{RoleAdmin: true},
		ClientID: "dev",
		Issuer:   "dev",
		Email:    "dev@slidepilot.dev",
	}
}

// DevModeMiddleware injects a synthetic Principal with all scopes and admin role.
// Use only when AUTH_ENABLED=false (development).
func DevModeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger.Warn("DEV MODE: authentication disabled, all requests get the dev principal")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithPrincipal(r.Context(), DevPrincipal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
