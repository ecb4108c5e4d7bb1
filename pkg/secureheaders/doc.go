// Package secureheaders computes HTTP security response headers
// (Content-Security-Policy, Strict-Transport-Security, Public-Key-Pins,
// X-Frame-Options and friends) from a layered configuration model: an
// immutable process-wide Policy, an optional per-request RequestContext
// overlay carrying nonces and overrides, and per-header validation rules.
//
// Typical use: build a Policy once at startup, wrap it in a Resolver, and
// install Middleware on the router. Handlers mint CSP nonces and set
// per-request overrides through RequestContextFrom.
package secureheaders
