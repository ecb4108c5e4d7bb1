package secureheaders

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
)

// Resolver computes the final header mapping for requests. It holds the
// active policy behind an atomic pointer so resolution can run concurrently
// with SetPolicy; for fixed inputs Resolve is a pure function.
type Resolver struct {
	policy atomic.Pointer[Policy]
}

// NewResolver creates a resolver for the given policy. A nil policy means
// the built-in defaults.
func NewResolver(p *Policy) *Resolver {
	if p == nil {
		p = DefaultPolicy()
	}
	r := &Resolver{}
	r.policy.Store(p)
	return r
}

// Policy returns the active policy.
func (r *Resolver) Policy() *Policy {
	return r.policy.Load()
}

// SetPolicy atomically replaces the active policy. In-flight resolutions
// keep the snapshot they started with.
func (r *Resolver) SetPolicy(p *Policy) {
	if p == nil {
		p = DefaultPolicy()
	}
	r.policy.Store(p)
}

// Resolve computes the header name to value mapping for a request,
// consulting the request's overlay and env overrides from its context.
func (r *Resolver) Resolve(req *http.Request) map[string]string {
	return r.ResolveContext(req.Context(), IsSecureRequest(req))
}

// ResolveContext is Resolve with the transport security decision made by
// the caller. HSTS and Public-Key-Pins are suppressed for insecure
// transport.
//
// Per kind, the first present source wins: env override, then request
// overlay, then the policy's cached default. CSP additionally folds the
// request's directive merges and nonce into whichever base was chosen.
func (r *Resolver) ResolveContext(ctx context.Context, secure bool) map[string]string {
	p := r.Policy()
	rc := RequestContextFrom(ctx)
	env := envOverridesFrom(ctx)

	out := make(map[string]string, len(kindOrder))
	for _, k := range kindOrder {
		if !secure && (k == KindHSTS || k == KindHPKP) {
			continue
		}

		v, overridden := env[k]
		if !overridden && rc != nil {
			v, overridden = rc.snapshot(k)
		}

		if k == KindCSP {
			nonce := ""
			if rc != nil {
				nonce = rc.currentNonce()
			}
			if h, ok := resolveCSP(p, v, overridden, nonce); ok {
				out[h.Name] = h.Value
			}
			continue
		}

		if overridden {
			if h, ok := renderValue(k, v); ok {
				out[h.Name] = h.Value
			}
			continue
		}

		if h, ok := p.cachedDefault(k); ok {
			out[h.Name] = h.Value
		}
	}
	return out
}

// resolveCSP renders the CSP header from the chosen base, injecting the
// request nonce when one was minted.
func resolveCSP(p *Policy, v Value, overridden bool, nonce string) (Header, bool) {
	var (
		directives *Directives
		reportOnly bool
	)

	if overridden {
		switch val := v.(type) {
		case OptOut:
			return Header{}, false
		case *CSPOptions:
			directives = val.Directives.Clone()
			reportOnly = val.ReportOnly
		case Raw:
			parsed, err := ParseDirectives(string(val))
			if err != nil {
				// Trusted env override that does not parse: emit verbatim.
				return Header{Name: KindCSP.Name(), Value: string(val)}, true
			}
			directives = parsed
		default:
			return Header{}, false
		}
	} else {
		if nonce == "" {
			return p.cachedDefault(KindCSP)
		}
		if _, opt := p.Value(KindCSP).(OptOut); opt {
			return Header{}, false
		}
		directives, reportOnly = p.cspSeed()
	}

	if nonce != "" {
		directives = directives.withNonce(nonce)
	}
	return renderCSPOptions(&CSPOptions{Directives: directives, ReportOnly: reportOnly}), true
}

// IsSecureRequest reports whether the request arrived over a confidential
// transport, directly or via a forwarding proxy.
func IsSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}

	proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
	if strings.EqualFold(proto, "https") {
		return true
	}

	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Ssl")), "on") {
		return true
	}

	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
