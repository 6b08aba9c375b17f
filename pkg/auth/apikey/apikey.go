// Package apikey authenticates bearer tokens against a static set of
// API keys. Keys are stored as SHA-256 digests and compared in
// constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/jkoenig/werkbank/pkg/auth"
)

// Credential pairs a plaintext API key with the identity it grants.
// This is the configuration-time form; the plaintext never survives
// construction of the authenticator.
type Credential struct {
	Key      string
	Identity auth.Identity
}

// Authenticator matches bearer tokens against hashed credentials.
type Authenticator struct {
	entries []entry
}

type entry struct {
	digest   [sha256.Size]byte
	identity auth.Identity
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New hashes the given credentials into an authenticator.
func New(creds []Credential) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(creds))}
	for _, c := range creds {
		a.entries = append(a.entries, entry{
			digest:   sha256.Sum256([]byte(c.Key)),
			identity: c.Identity,
		})
	}
	return a
}

// Authenticate votes Skip when the request carries no bearer token,
// Deny when a bearer token is present but unknown, and Allow with the
// matching identity otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Skip}
	}
	if token == "" {
		return auth.Result{Decision: auth.Deny, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(token))
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			id := e.identity
			return auth.Result{Decision: auth.Allow, Identity: &id}
		}
	}
	return auth.Result{Decision: auth.Deny, Err: auth.ErrUnauthenticated}
}
