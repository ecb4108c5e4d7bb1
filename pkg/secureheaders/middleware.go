package secureheaders

import (
	"net/http"
	"time"
)

// Resolution describes one completed header resolution, for callers that
// want to meter middleware behavior.
type Resolution struct {
	Secure      bool
	Headers     map[string]string
	NonceIssued bool
	Duration    time.Duration
}

// MiddlewareOption customizes Middleware behavior.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	observer func(Resolution)
}

// WithObserver registers a callback invoked after each request's headers
// are resolved.
func WithObserver(fn func(Resolution)) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.observer = fn
	}
}

// Middleware installs a fresh per-request overlay and merges the resolved
// security headers into the response at first write. Handlers reach the
// overlay through RequestContextFrom to mint nonces or set overrides, so
// header computation has to wait until the handler has run its course.
// Headers the handler set itself are left alone.
func Middleware(resolver *Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var options middlewareOptions
	for _, opt := range opts {
		opt(&options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := NewRequestContext(resolver)
			r = r.WithContext(WithRequestContext(r.Context(), rc))

			hw := &headerWriter{ResponseWriter: w, resolver: resolver, req: r, observer: options.observer}
			next.ServeHTTP(hw, r)
			// Handlers that never write still get their headers resolved.
			hw.apply()
		})
	}
}

// headerWriter defers header injection until the response commits, so
// overrides and nonces requested during the handler are reflected.
type headerWriter struct {
	http.ResponseWriter
	resolver *Resolver
	req      *http.Request
	observer func(Resolution)
	applied  bool
}

func (w *headerWriter) WriteHeader(code int) {
	w.apply()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.apply()
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher when the underlying writer does.
func (w *headerWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *headerWriter) apply() {
	if w.applied {
		return
	}
	w.applied = true

	started := time.Now()
	resolved := w.resolver.Resolve(w.req)
	for name, value := range resolved {
		if w.Header().Get(name) == "" {
			w.Header().Set(name, value)
		}
	}

	if w.observer != nil {
		nonceIssued := false
		if rc := RequestContextFrom(w.req.Context()); rc != nil {
			nonceIssued = rc.currentNonce() != ""
		}
		w.observer(Resolution{
			Secure:      IsSecureRequest(w.req),
			Headers:     resolved,
			NonceIssued: nonceIssued,
			Duration:    time.Since(started),
		})
	}
}
