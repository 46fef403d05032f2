package auth

import (
	"context"

	sdkauth "github.com/modelcontextprotocol/go-sdk/auth"
)

type ctxKey struct{}

// Scopes understood by the API and MCP server.
const (
	ScopeRead   = "slidepilot:read"
	ScopeWrite  = "slidepilot:write"
	ScopeRender = "slidepilot:render"

	RoleAdmin = "slidepilot_admin"
)

// Principal represents an authenticated identity extracted from a JWT.
// Sub is the owner of every deck, upload and render job the caller creates.
type Principal struct {
	Sub      string          `json:"sub"`
	Scopes   map[string]bool `json:"scopes"`
	Roles    map[string]bool `json:"roles"`
	ClientID string          `json:"client_id"`
	Issuer   string          `json:"issuer"`
	Email    string          `json:"email"`
}

// WithPrincipal stores a Principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom extracts the Principal from the context. Requests that went
// through the MCP bearer middleware carry it in the token info instead.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if p, ok := ctx.Value(ctxKey{}).(*Principal); ok {
		return p, true
	}
	if info := sdkauth.TokenInfoFromContext(ctx); info != nil {
		p, ok := info.Extra["principal"].(*Principal)
		return p, ok
	}
	return nil, false
}

// OwnerFrom returns the subject of the context principal, or "" when there
// is none.
func OwnerFrom(ctx context.Context) string {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.Sub
	}
	return ""
}

func (p *Principal) HasScope(s string) bool {
	return p.Scopes[s]
}

// HasAnyScope returns true if the principal has any of the given scopes.
func (p *Principal) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if p.Scopes[s] {
			return true
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool {
	return p.Roles[RoleAdmin]
}

func (p *Principal) HasRole(r string) bool {
	return p.Roles[r]
}
