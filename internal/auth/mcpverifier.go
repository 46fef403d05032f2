package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	sdkauth "github.com/modelcontextprotocol/go-sdk/auth"
)

// AllScopes are the scopes granted to admins over MCP, where the SDK checks
// scopes by name and has no notion of roles.
var AllScopes = []string{ScopeRead, ScopeWrite, ScopeRender}

// NewMCPTokenVerifier adapts Verifier to the MCP SDK bearer middleware. The
// Principal travels in TokenInfo.Extra, where PrincipalFrom finds it.
func NewMCPTokenVerifier(v *Verifier) sdkauth.TokenVerifier {
	return func(ctx context.Context, token string, _ *http.Request) (*sdkauth.TokenInfo, error) {
		principal, expiry, err := v.VerifyToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sdkauth.ErrInvalidToken, err)
		}
		return &sdkauth.TokenInfo{
			UserID:     principal.Sub,
			Scopes:     mcpScopes(principal),
			Expiration: expiry,
			Extra:      map[string]any{"principal": principal},
		}, nil
	}
}

// mcpScopes returns the principal's slidepilot scopes in a stable order.
func mcpScopes(p *Principal) []string {
	if p.IsAdmin() {
		return slices.Clone(AllScopes)
	}
	var out []string
	for _, s := range AllScopes {
		if p.HasScope(s) {
			out = append(out, s)
		}
	}
	return out
}
