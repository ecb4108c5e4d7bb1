package secureheaders

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
)

type contextKey string

const (
	requestContextKey contextKey = "secureheaders-request"
	envOverrideKey    contextKey = "secureheaders-env"
)

// RequestContext is the per-request mutable overlay on top of the process
// policy: a lazily minted nonce, CSP directive merges, and single-use
// header overrides. It lives exactly as long as one request and must never
// be shared across requests.
type RequestContext struct {
	resolver *Resolver

	mu        sync.Mutex
	nonce     string
	overrides map[Kind]Value
	used      map[Kind]bool

	csp           *Directives
	cspReportOnly bool
}

// NewRequestContext creates an empty overlay bound to the resolver whose
// policy seeds CSP merges. Middleware normally does this once per request;
// see WithRequestContext.
func NewRequestContext(r *Resolver) *RequestContext {
	return &RequestContext{
		resolver:  r,
		overrides: make(map[Kind]Value),
		used:      make(map[Kind]bool),
	}
}

// WithRequestContext installs the overlay into a request context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFrom returns the overlay installed in ctx, or nil when the
// middleware is not in the chain.
func RequestContextFrom(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}

// Nonce returns the request's CSP nonce, minting it on first use: 32 bytes
// from a CSPRNG, base64 encoded, cached for the request lifetime so every
// CSP render within the request carries the same token.
func (rc *RequestContext) Nonce() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.nonce == "" {
		rc.nonce = newNonce()
	}
	return rc.nonce
}

// Override sets a single-use per-request value for a header kind. The value
// is validated with the same rules as startup configuration, and a second
// override of the same kind within one request fails with
// DuplicateOverrideError.
func (rc *RequestContext) Override(k Kind, v Value) error {
	if err := validateValue(k, v); err != nil {
		return err
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.used[k] {
		return &DuplicateOverrideError{Kind: k}
	}
	rc.used[k] = true
	rc.overrides[k] = v
	return nil
}

// OverrideFrameOptions sets a single-use X-Frame-Options value.
func (rc *RequestContext) OverrideFrameOptions(value string) error {
	return rc.Override(KindFrameOptions, Raw(value))
}

// OverrideHPKP sets a single-use Public-Key-Pins value.
func (rc *RequestContext) OverrideHPKP(opts HPKPOptions) error {
	return rc.Override(KindHPKP, &opts)
}

// AppendCSPSources union-merges additional sources into the request's CSP,
// seeding from the process default policy on first use. Unlike Override it
// may be called repeatedly; each call merges.
func (rc *RequestContext) AppendCSPSources(additions *Directives) error {
	return rc.mergeCSP(additions, Append)
}

// OverrideCSPDirectives replaces directives in the request's CSP wholesale,
// seeding from the process default policy on first use.
func (rc *RequestContext) OverrideCSPDirectives(additions *Directives) error {
	return rc.mergeCSP(additions, Override)
}

func (rc *RequestContext) mergeCSP(additions *Directives, merge func(base, additions *Directives) *Directives) error {
	if additions == nil || additions.Len() == 0 {
		return nil
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.csp == nil {
		seed, reportOnly := rc.seedCSP()
		rc.csp = seed
		rc.cspReportOnly = reportOnly
	}
	rc.csp = merge(rc.csp, additions)
	return nil
}

func (rc *RequestContext) seedCSP() (*Directives, bool) {
	if rc.resolver != nil {
		if p := rc.resolver.Policy(); p != nil {
			return p.cspSeed()
		}
	}
	return defaultCSPDirectives(), false
}

// snapshot returns the override value for a kind under the resolution
// precedence rules, folding the merged CSP state into a CSPOptions value.
func (rc *RequestContext) snapshot(k Kind) (Value, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if k == KindCSP && rc.csp != nil {
		if v, ok := rc.overrides[k]; ok {
			return v, true
		}
		return &CSPOptions{Directives: rc.csp.Clone(), ReportOnly: rc.cspReportOnly}, true
	}
	v, ok := rc.overrides[k]
	return v, ok
}

func (rc *RequestContext) currentNonce() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.nonce
}

// WithEnvOverride injects an out-of-band header value directly on the
// request context, bypassing the RequestContext overlay. Env overrides win
// over everything else during resolution and are trusted input: the caller
// of this escape hatch is responsible for the value's validity.
func WithEnvOverride(ctx context.Context, k Kind, v Value) context.Context {
	existing, _ := ctx.Value(envOverrideKey).(map[Kind]Value)
	next := make(map[Kind]Value, len(existing)+1)
	for key, val := range existing {
		next[key] = val
	}
	next[k] = v
	return context.WithValue(ctx, envOverrideKey, next)
}

func envOverridesFrom(ctx context.Context) map[Kind]Value {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(envOverrideKey).(map[Kind]Value)
	return m
}

func newNonce() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("secureheaders: nonce generation failed: %v", err))
	}
	return base64.StdEncoding.EncodeToString(b)
}
