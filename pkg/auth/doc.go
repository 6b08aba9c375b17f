// Package auth gates the werkbank HTTP surface.
//
// Authentication is a voting chain: each authenticator returns Allow
// (identity established), Deny (credentials present but bad), or Skip
// (not its credential type). A configurable fallback decides requests
// where every voter skips, which keeps the development and production
// postures a one-line config difference.
//
// The package ships as HTTP middleware so the turn pipeline never sees
// credentials. The middleware also places the caller's tenant into the
// request context for storage scoping.
package auth
