package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier validates JWTs using OIDC discovery and JWKS.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	audience string
}

// NewVerifier creates a Verifier using OIDC discovery from the issuer URL.
// publicIssuer optionally specifies the expected token issuer when it differs
// from the discovery URL (e.g. in Docker where discovery uses http://keycloak:8081
// but tokens contain iss: http://localhost:8081).
func NewVerifier(ctx context.Context, issuerURL, publicIssuer, audience string) (*Verifier, error) {
	if publicIssuer != "" && publicIssuer != issuerURL {
		// Tell go-oidc to accept tokens whose iss claim matches publicIssuer
		// even though discovery is fetched from issuerURL.
		ctx = oidc.InsecureIssuerURLContext(ctx, publicIssuer)
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	// Without an audience any client of the issuer may call the API.
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})

	return &Verifier{provider: provider, verifier: verifier, audience: audience}, nil
}

// scopeList accepts a scope claim encoded either as a space-separated
// string (RFC 8693) or as a JSON array, which some providers emit.
type scopeList []string

func (l *scopeList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = strings.Fields(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("scope claim: %w", err)
	}
	*l = arr
	return nil
}

type claims struct {
	Sub              string    `json:"sub"`
	Email            string    `json:"email"`
	Scope            scopeList `json:"scope"`
	SlidepilotScopes scopeList `json:"slidepilot_scopes"`
	Azp              string    `json:"azp"`
	Roles            []string  `json:"roles"`
	RealmAccess      struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// principal maps verified claims to the caller identity. Deck ownership
// keys on sub, so a token without one is refused.
func (c claims) principal(issuer string) (*Principal, error) {
	if c.Sub == "" {
		return nil, fmt.Errorf("missing sub claim")
	}
	p := &Principal{
		Sub:      c.Sub,
		Scopes:   make(map[string]bool),
		Roles:    make(map[string]bool),
		ClientID: c.Azp,
		Issuer:   issuer,
		Email:    c.Email,
	}
	for _, s := range append(c.Scope, c.SlidepilotScopes...) {
		p.Scopes[s] = true
	}
	for _, r := range append(c.Roles, c.RealmAccess.Roles...) {
		p.Roles[r] = true
	}
	return p, nil
}

// VerifyToken verifies a raw bearer token and returns the Principal and the
// token's expiry.
func (v *Verifier) VerifyToken(ctx context.Context, rawToken string) (*Principal, time.Time, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("verify token: %w", err)
	}

	var c claims
	if err := token.Claims(&c); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse claims: %w", err)
	}
	p, err := c.principal(token.Issuer)
	if err != nil {
		return nil, time.Time{}, err
	}
	return p, token.Expiry, nil
}

// VerifyRequest verifies the request's bearer token.
func (v *Verifier) VerifyRequest(r *http.Request) (*Principal, error) {
	raw, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	p, _, err := v.VerifyToken(r.Context(), raw)
	return p, err
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return token, nil
}
