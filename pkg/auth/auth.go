package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is one authenticator's vote on a request.
type Decision int

const (
	// Allow means the credentials are valid. The chain stops and the
	// attached identity becomes the caller.
	Allow Decision = iota

	// Deny means credentials were presented but failed validation. The
	// chain stops and the request is rejected.
	Deny

	// Skip means the credential type is not one this authenticator
	// handles. The next voter in the chain is consulted.
	Skip
)

// Result carries a vote together with its identity or failure cause.
type Result struct {
	Decision Decision
	Identity *Identity // set when Decision == Allow
	Err      error     // set when Decision == Deny
}

// Identity describes an authenticated caller.
type Identity struct {
	// Subject uniquely identifies the caller. Never empty for an
	// authenticated identity.
	Subject string

	// Tier selects the rate-limit bucket for this caller.
	Tier string

	// Scopes lists granted authorization scopes.
	Scopes []string

	// Metadata carries provider-specific attributes. The "tenant_id"
	// key scopes turn storage per tenant.
	Metadata map[string]string
}

// TenantID returns the tenant identifier from metadata, if any.
func (id *Identity) TenantID() string {
	if id == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Authenticator inspects request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain runs authenticators in order until one votes Allow or Deny.
type Chain struct {
	// Voters are consulted left to right.
	Voters []Authenticator

	// Fallback decides the request when every voter skips. Allow gives
	// anonymous access for development setups; Deny is the production
	// posture.
	Fallback Decision
}

// Authenticate evaluates the chain against the request.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, voter := range c.Voters {
		if res := voter.Authenticate(ctx, r); res.Decision != Skip {
			return res
		}
	}

	if c.Fallback == Allow {
		return Result{
			Decision: Allow,
			Identity: &Identity{Subject: "anonymous", Tier: "default"},
		}
	}
	return Result{Decision: Deny, Err: ErrUnauthenticated}
}

// BearerToken extracts the token from an Authorization: Bearer header.
// The second return is false when the header is absent or uses another
// scheme, which authenticators treat as a Skip.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := trimPrefixFold(header, "Bearer ")
	if !ok {
		return "", false
	}
	return token, true
}

func trimPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return "", false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return "", false
		}
	}
	return s[len(prefix):], true
}
