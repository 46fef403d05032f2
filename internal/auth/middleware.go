package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maraichr/slidepilot/pkg/apierr"
)

func writeAuthError(w http.ResponseWriter, e *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	if e.Status() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="slidepilot"`)
	}
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(e.Response())
}

// RequireAuth validates the bearer token and puts the Principal on the
// request context. Every deck, upload and job is owned by Principal.Sub,
// so a token without a subject is rejected by the verifier.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.VerifyRequest(r)
			if err != nil {
				logger.Warn("auth failed",
					slog.String("error", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				writeAuthError(w, apierr.Unauthorized())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireScope lets the request through when the principal holds any of
// scopes. Admins pass every check.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeAuthError(w, apierr.Unauthorized())
				return
			}
			if !p.IsAdmin() && !p.HasAnyScope(scopes...) {
				writeAuthError(w, apierr.InsufficientScope(scopes...))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
