package secureheaders

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func secureRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.TLS = &tls.ConnectionState{}
	return req
}

func TestResolveDefaults(t *testing.T) {
	resolver := NewResolver(nil)

	got := resolver.Resolve(secureRequest())
	want := map[string]string{
		"Content-Security-Policy":           "default-src 'self'",
		"Strict-Transport-Security":         "max-age=631138519",
		"X-Frame-Options":                   "SAMEORIGIN",
		"X-XSS-Protection":                  "1; mode=block",
		"X-Content-Type-Options":            "nosniff",
		"X-Download-Options":                "noopen",
		"X-Permitted-Cross-Domain-Policies": "none",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveInsecureTransportSuppressesHSTSAndHPKP(t *testing.T) {
	p, err := NewPolicy(func(s *Settings) {
		s.HPKP = &HPKPOptions{MaxAge: 1000, Pins: []string{"abc"}}
	})
	if err != nil {
		t.Fatal(err)
	}
	resolver := NewResolver(p)

	plain := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	got := resolver.Resolve(plain)

	for _, header := range []string{"Strict-Transport-Security", "Public-Key-Pins"} {
		if _, present := got[header]; present {
			t.Errorf("%s emitted over plaintext transport", header)
		}
	}

	// Same configuration over TLS emits both.
	got = resolver.Resolve(secureRequest())
	for _, header := range []string{"Strict-Transport-Security", "Public-Key-Pins"} {
		if _, present := got[header]; !present {
			t.Errorf("%s missing over TLS", header)
		}
	}
}

func TestResolveForwardedProtoCountsAsSecure(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{"forwarded_proto_https", http.Header{"X-Forwarded-Proto": {"https"}}, true},
		{"forwarded_proto_chain", http.Header{"X-Forwarded-Proto": {"https, http"}}, true},
		{"forwarded_ssl_on", http.Header{"X-Forwarded-Ssl": {"on"}}, true},
		{"forwarded_rfc7239", http.Header{"Forwarded": {"for=1.2.3.4;proto=https"}}, true},
		{"plain", http.Header{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
			req.Header = tt.header
			if got := IsSecureRequest(req); got != tt.want {
				t.Errorf("IsSecureRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveRequestCSPAppend(t *testing.T) {
	d := NewDirectives()
	if err := d.Set("default-src", "'self'"); err != nil {
		t.Fatal(err)
	}
	p, err := NewPolicy(func(s *Settings) {
		s.CSP = &CSPOptions{Directives: d}
	})
	if err != nil {
		t.Fatal(err)
	}
	resolver := NewResolver(p)

	rc := NewRequestContext(resolver)
	add := NewDirectives()
	if err := add.Set("img-src", "data:"); err != nil {
		t.Fatal(err)
	}
	if err := rc.AppendCSPSources(add); err != nil {
		t.Fatal(err)
	}

	req := secureRequest()
	req = req.WithContext(WithRequestContext(req.Context(), rc))

	got := resolver.Resolve(req)
	if want := "default-src 'self'; img-src data:"; got["Content-Security-Policy"] != want {
		t.Errorf("Content-Security-Policy = %q, want %q", got["Content-Security-Policy"], want)
	}
}

func TestResolveNonceInjection(t *testing.T) {
	d := NewDirectives()
	if err := d.Set("script-src", "mycdn.com"); err != nil {
		t.Fatal(err)
	}
	p, err := NewPolicy(func(s *Settings) {
		s.CSP = &CSPOptions{Directives: d}
	})
	if err != nil {
		t.Fatal(err)
	}
	resolver := NewResolver(p)

	rc := NewRequestContext(resolver)
	nonce := rc.Nonce()

	req := secureRequest()
	req = req.WithContext(WithRequestContext(req.Context(), rc))

	got := resolver.Resolve(req)
	want := fmt.Sprintf("script-src mycdn.com 'nonce-%s' 'unsafe-inline'", nonce)
	if got["Content-Security-Policy"] != want {
		t.Errorf("Content-Security-Policy = %q, want %q", got["Content-Security-Policy"], want)
	}

	// Recomputing within the same request reuses the token.
	again := resolver.Resolve(req)
	if again["Content-Security-Policy"] != want {
		t.Errorf("second resolution drifted: %q", again["Content-Security-Policy"])
	}
}

func TestResolveContextOverride(t *testing.T) {
	resolver := NewResolver(nil)
	rc := NewRequestContext(resolver)
	if err := rc.OverrideFrameOptions("DENY"); err != nil {
		t.Fatal(err)
	}

	req := secureRequest()
	req = req.WithContext(WithRequestContext(req.Context(), rc))

	if got := resolver.Resolve(req)["X-Frame-Options"]; got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestResolveEnvOverrideWins(t *testing.T) {
	resolver := NewResolver(nil)
	rc := NewRequestContext(resolver)
	if err := rc.OverrideFrameOptions("DENY"); err != nil {
		t.Fatal(err)
	}

	req := secureRequest()
	ctx := WithRequestContext(req.Context(), rc)
	ctx = WithEnvOverride(ctx, KindFrameOptions, Raw("ALLOW-FROM https://partner.example.com"))
	req = req.WithContext(ctx)

	if got := resolver.Resolve(req)["X-Frame-Options"]; got != "ALLOW-FROM https://partner.example.com" {
		t.Errorf("env override lost to context override: %q", got)
	}
}

func TestResolveEnvOptOut(t *testing.T) {
	resolver := NewResolver(nil)

	req := secureRequest()
	req = req.WithContext(WithEnvOverride(req.Context(), KindXSSProtection, OptOut{}))

	if _, present := resolver.Resolve(req)["X-XSS-Protection"]; present {
		t.Error("env opt-out did not suppress the header")
	}
}

func TestResolveDeterministic(t *testing.T) {
	resolver := NewResolver(nil)
	req := secureRequest()

	first := resolver.Resolve(req)
	for i := 0; i < 10; i++ {
		if got := resolver.Resolve(req); !reflect.DeepEqual(got, first) {
			t.Fatalf("resolution %d differed: %v vs %v", i, got, first)
		}
	}
}

func TestSetPolicySwap(t *testing.T) {
	resolver := NewResolver(nil)

	p, err := NewPolicy(func(s *Settings) {
		s.FrameOptions = Raw("DENY")
	})
	if err != nil {
		t.Fatal(err)
	}
	resolver.SetPolicy(p)

	if got := resolver.Resolve(secureRequest())["X-Frame-Options"]; got != "DENY" {
		t.Errorf("X-Frame-Options = %q after policy swap, want DENY", got)
	}
}

func TestResolveHPKPOverrideOnSecureRequest(t *testing.T) {
	resolver := NewResolver(nil)
	rc := NewRequestContext(resolver)
	if err := rc.OverrideHPKP(HPKPOptions{MaxAge: 50, Pins: []string{"abc", "def"}}); err != nil {
		t.Fatal(err)
	}

	req := secureRequest()
	req = req.WithContext(WithRequestContext(req.Context(), rc))

	got := resolver.Resolve(req)["Public-Key-Pins"]
	if !strings.HasPrefix(got, "max-age=50; ") || !strings.Contains(got, `pin-sha256="abc"`) {
		t.Errorf("Public-Key-Pins = %q", got)
	}
}

func TestResolveContextWithoutOverlay(t *testing.T) {
	resolver := NewResolver(nil)
	got := resolver.ResolveContext(context.Background(), true)
	if got["X-Frame-Options"] != "SAMEORIGIN" {
		t.Errorf("bare context resolution = %v", got)
	}
}
