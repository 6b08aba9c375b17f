package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkoenig/werkbank/pkg/auth"
)

func testAuthenticator() *Authenticator {
	return New([]Credential{
		{
			Key: "sk-alice-key",
			Identity: auth.Identity{
				Subject:  "alice",
				Tier:     "pro",
				Metadata: map[string]string{"tenant_id": "acme"},
			},
		},
		{
			Key:      "sk-bob-key",
			Identity: auth.Identity{Subject: "bob"},
		},
	})
}

func TestAuthenticate(t *testing.T) {
	a := testAuthenticator()

	tests := []struct {
		name    string
		header  string
		want    auth.Decision
		subject string
	}{
		{name: "no header skips", want: auth.Skip},
		{name: "basic scheme skips", header: "Basic dXNlcjpwYXNz", want: auth.Skip},
		{name: "empty bearer denied", header: "Bearer ", want: auth.Deny},
		{name: "unknown key denied", header: "Bearer sk-wrong", want: auth.Deny},
		{name: "known key allowed", header: "Bearer sk-alice-key", want: auth.Allow, subject: "alice"},
		{name: "second key allowed", header: "Bearer sk-bob-key", want: auth.Allow, subject: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/turns", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			res := a.Authenticate(context.Background(), r)
			if res.Decision != tt.want {
				t.Fatalf("decision = %v, want %v", res.Decision, tt.want)
			}
			if tt.want == auth.Allow && res.Identity.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", res.Identity.Subject, tt.subject)
			}
			if tt.want == auth.Deny && res.Err == nil {
				t.Error("deny result must carry an error")
			}
		})
	}
}

func TestAuthenticate_IdentityIsCopied(t *testing.T) {
	a := testAuthenticator()
	r := httptest.NewRequest(http.MethodPost, "/v1/turns", nil)
	r.Header.Set("Authorization", "Bearer sk-alice-key")

	first := a.Authenticate(context.Background(), r)
	first.Identity.Subject = "mallory"

	second := a.Authenticate(context.Background(), r)
	if second.Identity.Subject != "alice" {
		t.Error("mutating a returned identity must not affect the stored credential")
	}
}

func TestAuthenticate_TenantMetadataSurvives(t *testing.T) {
	a := testAuthenticator()
	r := httptest.NewRequest(http.MethodPost, "/v1/turns", nil)
	r.Header.Set("Authorization", "Bearer sk-alice-key")

	res := a.Authenticate(context.Background(), r)
	if got := res.Identity.TenantID(); got != "acme" {
		t.Errorf("tenant = %q, want acme", got)
	}
}
