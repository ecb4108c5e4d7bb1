package secureheaders

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultPolicyHeaders(t *testing.T) {
	headers := DefaultPolicy().DefaultHeaders()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"csp", "Content-Security-Policy", "default-src 'self'"},
		{"hsts", "Strict-Transport-Security", "max-age=631138519"},
		{"frame_options", "X-Frame-Options", "SAMEORIGIN"},
		{"xss_protection", "X-XSS-Protection", "1; mode=block"},
		{"content_type_options", "X-Content-Type-Options", "nosniff"},
		{"download_options", "X-Download-Options", "noopen"},
		{"cross_domain_policies", "X-Permitted-Cross-Domain-Policies", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headers[tt.header]; got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}

	if _, present := headers["Public-Key-Pins"]; present {
		t.Error("Public-Key-Pins must be absent unless explicitly configured")
	}
}

func TestNewPolicyValidation(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*Settings)
		wantKind  Kind
	}{
		{
			name:      "frame_options_invalid_token",
			configure: func(s *Settings) { s.FrameOptions = Raw("NOPE") },
			wantKind:  KindFrameOptions,
		},
		{
			name:      "download_options_only_noopen",
			configure: func(s *Settings) { s.DownloadOptions = Raw("open-sesame") },
			wantKind:  KindDownloadOptions,
		},
		{
			name:      "content_type_options_only_nosniff",
			configure: func(s *Settings) { s.ContentTypeOptions = Raw("sniff-away") },
			wantKind:  KindContentTypeOptions,
		},
		{
			name:      "xss_protection_grammar",
			configure: func(s *Settings) { s.XSSProtection = Raw("2; mode=block") },
			wantKind:  KindXSSProtection,
		},
		{
			name:      "hsts_grammar",
			configure: func(s *Settings) { s.HSTS = Raw("max-age=forever") },
			wantKind:  KindHSTS,
		},
		{
			name:      "hpkp_needs_pins",
			configure: func(s *Settings) { s.HPKP = &HPKPOptions{MaxAge: 1000} },
			wantKind:  KindHPKP,
		},
		{
			name:      "hpkp_needs_max_age",
			configure: func(s *Settings) { s.HPKP = &HPKPOptions{Pins: []string{"abc"}} },
			wantKind:  KindHPKP,
		},
		{
			name:      "cross_domain_policies_closed_set",
			configure: func(s *Settings) { s.CrossDomainPolicies = Raw("maybe") },
			wantKind:  KindCrossDomainPolicies,
		},
		{
			name:      "csp_empty_structured",
			configure: func(s *Settings) { s.CSP = &CSPOptions{Directives: NewDirectives()} },
			wantKind:  KindCSP,
		},
		{
			name:      "csp_raw_unknown_directive",
			configure: func(s *Settings) { s.CSP = Raw("bogus-src 'self'") },
			wantKind:  KindCSP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.configure)
			if p != nil {
				t.Fatal("expected nil policy on validation failure")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Kind != tt.wantKind {
				t.Errorf("error tagged %v, want %v", verr.Kind, tt.wantKind)
			}
		})
	}
}

func TestNewPolicyAcceptsValidValues(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*Settings)
	}{
		{"frame_options_deny", func(s *Settings) { s.FrameOptions = Raw("DENY") }},
		{"frame_options_allow_from", func(s *Settings) { s.FrameOptions = Raw("ALLOW-FROM https://example.com") }},
		{"frame_options_case_insensitive", func(s *Settings) { s.FrameOptions = Raw("sameorigin") }},
		{"hsts_full", func(s *Settings) { s.HSTS = Raw("max-age=31536000; includeSubDomains; preload") }},
		{"hsts_structured", func(s *Settings) { s.HSTS = &HSTSOptions{MaxAge: 24 * time.Hour} }},
		{"xss_disabled", func(s *Settings) { s.XSSProtection = Raw("0") }},
		{"download_options_case", func(s *Settings) { s.DownloadOptions = Raw("NoOpen") }},
		{"opt_out_everything", func(s *Settings) {
			s.CSP = OptOut{}
			s.HSTS = OptOut{}
			s.FrameOptions = OptOut{}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.configure); err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestOptOutSuppressesCachedDefault(t *testing.T) {
	p, err := NewPolicy(func(s *Settings) {
		s.FrameOptions = OptOut{}
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, present := p.DefaultHeaders()["X-Frame-Options"]; present {
		t.Error("opted-out header still in cached defaults")
	}
}

func TestHPKPRendering(t *testing.T) {
	p, err := NewPolicy(func(s *Settings) {
		s.HPKP = &HPKPOptions{
			MaxAge:            1000000,
			IncludeSubDomains: true,
			ReportURI:         "//example.com/uri-directive",
			Pins:              []string{"abc", "123"},
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	want := `max-age=1000000; pin-sha256="abc"; pin-sha256="123"; report-uri="//example.com/uri-directive"; includeSubDomains`
	if got := p.DefaultHeaders()["Public-Key-Pins"]; got != want {
		t.Errorf("Public-Key-Pins = %q, want %q", got, want)
	}
}

func TestHPKPReportOnlyName(t *testing.T) {
	p, err := NewPolicy(func(s *Settings) {
		s.HPKP = &HPKPOptions{MaxAge: 100, Pins: []string{"abc"}, ReportOnly: true}
	})
	if err != nil {
		t.Fatal(err)
	}
	headers := p.DefaultHeaders()
	if _, ok := headers["Public-Key-Pins-Report-Only"]; !ok {
		t.Errorf("expected report-only variant, got %v", headers)
	}
}

func TestCSPReportOnlyName(t *testing.T) {
	d := NewDirectives()
	if err := d.Set("default-src", "'self'"); err != nil {
		t.Fatal(err)
	}
	p, err := NewPolicy(func(s *Settings) {
		s.CSP = &CSPOptions{Directives: d, ReportOnly: true}
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.DefaultHeaders()["Content-Security-Policy-Report-Only"]; !ok {
		t.Error("expected Content-Security-Policy-Report-Only")
	}
}

func TestHSTSStructuredRendering(t *testing.T) {
	p, err := NewPolicy(func(s *Settings) {
		s.HSTS = &HSTSOptions{MaxAge: 365 * 24 * time.Hour, IncludeSubDomains: true, Preload: true}
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "max-age=31536000; includeSubDomains; preload"
	if got := p.DefaultHeaders()["Strict-Transport-Security"]; got != want {
		t.Errorf("Strict-Transport-Security = %q, want %q", got, want)
	}
}
