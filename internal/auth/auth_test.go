package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	// No principal yet
	if _, ok := PrincipalFrom(ctx); ok {
		t.Fatal("expected no principal in empty context")
	}
	if got := OwnerFrom(ctx); got != "" {
		t.Fatalf("expected empty owner, got %q", got)
	}

	p := &Principal{
		Sub:    "user-123",
		Scopes: map[string]bool{ScopeRead: true},
		Roles:  map[string]bool{RoleAdmin: true},
	}

	ctx = WithPrincipal(ctx, p)
	got, ok := PrincipalFrom(ctx)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if got.Sub != "user-123" {
		t.Fatalf("got sub %q, want %q", got.Sub, "user-123")
	}
	if OwnerFrom(ctx) != "user-123" {
		t.Fatalf("got owner %q, want user-123", OwnerFrom(ctx))
	}
}

func TestHasScope(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{
			ScopeRead:  true,
			ScopeWrite: true,
		},
	}

	if !p.HasScope(ScopeRead) {
		t.Error("expected HasScope(read) = true")
	}
	if p.HasScope(ScopeRender) {
		t.Error("expected HasScope(render) = false")
	}
}

func TestHasAnyScope(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{ScopeRead: true},
	}

	if !p.HasAnyScope(ScopeWrite, ScopeRead) {
		t.Error("expected HasAnyScope to match read")
	}
	if p.HasAnyScope(ScopeWrite, ScopeRender) {
		t.Error("expected HasAnyScope to return false when none match")
	}
}

func TestIsAdmin(t *testing.T) {
	admin := &Principal{Roles: map[string]bool{RoleAdmin: true}}
	reader := &Principal{Roles: map[string]bool{"slidepilot_reader": true}}

	if !admin.IsAdmin() {
		t.Error("expected admin to be admin")
	}
	if reader.IsAdmin() {
		t.Error("expected reader to not be admin")
	}
}

func TestDevModeMiddleware(t *testing.T) {
	logger := slog.Default()
	mw := DevModeMiddleware(logger)

	var gotPrincipal *Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			t.Fatal("expected principal in context")
		}
		gotPrincipal = p
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if gotPrincipal == nil {
		t.Fatal("principal was nil")
	}
	if !gotPrincipal.IsAdmin() {
		t.Error("dev mode principal should be admin")
	}
	if !gotPrincipal.HasScope(ScopeRender) {
		t.Error("dev mode principal should have the render scope")
	}
	if gotPrincipal.Sub != DevOwner {
		t.Errorf("got sub %q, want %q", gotPrincipal.Sub, DevOwner)
	}
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		scope     string
		want      int
	}{
		{"pass", &Principal{Scopes: map[string]bool{ScopeRead: true}}, ScopeRead, http.StatusOK},
		{"fail", &Principal{Scopes: map[string]bool{ScopeRead: true}}, ScopeWrite, http.StatusForbidden},
		{"admin bypass", &Principal{Scopes: map[string]bool{}, Roles: map[string]bool{RoleAdmin: true}}, ScopeWrite, http.StatusOK},
		{"no principal", nil, ScopeRead, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireScope(tt.scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("got status %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireScope_ForbiddenBody(t *testing.T) {
	handler := RequireScope(ScopeRender)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/render-jobs", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &Principal{Sub: "u1", Scopes: map[string]bool{ScopeRead: true}}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"code":"FORBIDDEN"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), ScopeRender) {
		t.Errorf("expected required scope in details: %s", rec.Body.String())
	}
}

func TestMCPScopes(t *testing.T) {
	tests := []struct {
		name string
		p    *Principal
		want []string
	}{
		{"admin gets all", &Principal{Roles: map[string]bool{RoleAdmin: true}}, AllScopes},
		{"subset in order", &Principal{Scopes: map[string]bool{ScopeRender: true, ScopeRead: true, "openid": true}}, []string{ScopeRead, ScopeRender}},
		{"none", &Principal{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mcpScopes(tt.p)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestClaimsPrincipal(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantScope string
		wantAdmin bool
	}{
		{"string scope", `{"sub":"u1","scope":"openid slidepilot:read"}`, false, ScopeRead, false},
		{"array scope", `{"sub":"u1","scope":["slidepilot:write"]}`, false, ScopeWrite, false},
		{"custom claim", `{"sub":"u1","slidepilot_scopes":"slidepilot:render"}`, false, ScopeRender, false},
		{"realm admin", `{"sub":"u1","realm_access":{"roles":["slidepilot_admin"]}}`, false, "", true},
		{"top-level roles", `{"sub":"u1","roles":["slidepilot_admin"]}`, false, "", true},
		{"missing sub", `{"scope":"slidepilot:read"}`, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c claims
			if err := json.Unmarshal([]byte(tt.raw), &c); err != nil {
				t.Fatal(err)
			}
			p, err := c.principal("https://issuer")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantScope != "" && !p.HasScope(tt.wantScope) {
				t.Errorf("missing scope %s in %v", tt.wantScope, p.Scopes)
			}
			if p.IsAdmin() != tt.wantAdmin {
				t.Errorf("admin = %v, want %v", p.IsAdmin(), tt.wantAdmin)
			}
			if p.Issuer != "https://issuer" {
				t.Errorf("issuer not carried: %q", p.Issuer)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", false},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}
