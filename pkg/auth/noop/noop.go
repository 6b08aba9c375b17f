// Package noop accepts every request with an anonymous identity. It
// exists for local development and tests.
package noop

import (
	"context"
	"net/http"

	"github.com/jkoenig/werkbank/pkg/auth"
)

// Authenticator votes Allow for any request.
type Authenticator struct{}

var _ auth.Authenticator = (*Authenticator)(nil)

func (Authenticator) Authenticate(context.Context, *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Allow,
		Identity: &auth.Identity{Subject: "anonymous", Tier: "default"},
	}
}
