// Package jwt validates RSA-signed bearer tokens against a remote
// JWKS endpoint, with configurable issuer, audience, and claim
// mapping for subject, tenant, and scopes.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jkoenig/werkbank/pkg/auth"
)

// Config holds JWT validation settings.
type Config struct {
	// JWKSURL is the endpoint serving the signing keys.
	JWKSURL string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Audience, when set, must match the token's aud claim.
	Audience string

	// UserClaim names the claim that becomes the identity subject.
	// Defaults to "sub".
	UserClaim string

	// TenantClaim names the claim carried as tenant_id metadata.
	// Defaults to "tenant_id".
	TenantClaim string

	// ScopesClaim names the claim holding authorization scopes, either
	// a space-separated string or a JSON array. Defaults to "scope".
	ScopesClaim string

	// CacheTTL bounds how long fetched signing keys are reused.
	// Defaults to one hour.
	CacheTTL time.Duration

	// HTTPClient overrides the client used for JWKS fetches.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator verifies JWT bearer tokens.
type Authenticator struct {
	cfg  Config
	keys *keySet
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New builds an authenticator for the given configuration.
func New(cfg Config) *Authenticator {
	cfg.defaults()
	return &Authenticator{
		cfg: cfg,
		keys: &keySet{
			url:    cfg.JWKSURL,
			ttl:    cfg.CacheTTL,
			client: cfg.HTTPClient,
			byKid:  make(map[string]*rsa.PublicKey),
		},
	}
}

// Authenticate votes Skip without a bearer token, Deny for any token
// that fails verification, and Allow with the mapped identity.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Skip}
	}
	if tokenStr == "" {
		return auth.Result{Decision: auth.Deny, Err: fmt.Errorf("empty bearer token")}
	}

	token, err := jwtlib.Parse(tokenStr, a.resolveKey(ctx), a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{Decision: auth.Deny, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.Deny, Err: fmt.Errorf("invalid JWT claims")}
	}

	subject := stringClaim(claims, a.cfg.UserClaim)
	if subject == "" {
		return auth.Result{
			Decision: auth.Deny,
			Err:      fmt.Errorf("JWT missing %q claim", a.cfg.UserClaim),
		}
	}

	identity := &auth.Identity{
		Subject:  subject,
		Scopes:   scopeList(claims, a.cfg.ScopesClaim),
		Metadata: map[string]string{},
	}
	if tenant := stringClaim(claims, a.cfg.TenantClaim); tenant != "" {
		identity.Metadata["tenant_id"] = tenant
	}

	return auth.Result{Decision: auth.Allow, Identity: identity}
}

// resolveKey returns the key lookup callback for the JWT parser. It
// insists on an RSA signing method and a kid header, then resolves the
// key through the cached JWKS.
func (a *Authenticator) resolveKey(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		key, err := a.keys.lookup(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("resolving JWKS key %q: %w", kid, err)
		}
		return key, nil
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func stringClaim(claims jwtlib.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// scopeList reads the scope claim as either a space-separated string
// or an array of strings.
func scopeList(claims jwtlib.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case string:
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		return fields
	case []interface{}:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

// keySet caches RSA public keys from a JWKS endpoint, refreshing on
// TTL expiry or when an unknown kid is requested.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu          sync.RWMutex
	byKid       map[string]*rsa.PublicKey
	refreshedAt time.Time
}

func (ks *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	key, fresh := ks.cachedLocked(kid)
	ks.mu.RUnlock()
	if fresh {
		return key, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if key, fresh := ks.cachedLocked(kid); fresh {
		return key, nil
	}

	if err := ks.refreshLocked(ctx); err != nil {
		return nil, err
	}
	key, ok := ks.byKid[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not present in JWKS", kid)
	}
	return key, nil
}

func (ks *keySet) cachedLocked(kid string) (*rsa.PublicKey, bool) {
	if time.Since(ks.refreshedAt) >= ks.ttl {
		return nil, false
	}
	key, ok := ks.byKid[kid]
	return key, ok
}

func (ks *keySet) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	byKid := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		byKid[k.Kid] = pub
	}

	ks.byKid = byKid
	ks.refreshedAt = time.Now()
	slog.Debug("JWKS cache refreshed", "keys", len(byKid), "url", ks.url)
	return nil
}

// jwk is a single RSA key from a JWKS document.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, fmt.Errorf("RSA exponent too large")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
