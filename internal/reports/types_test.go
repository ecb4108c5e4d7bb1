package reports

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	raw := `{
		"csp-report": {
			"document-uri": "https://example.com/page",
			"referrer": "https://example.com/",
			"violated-directive": "script-src 'self'",
			"effective-directive": "script-src",
			"original-policy": "default-src 'self'; script-src 'self'",
			"blocked-uri": "https://evil.example/x.js",
			"status-code": 200,
			"line-number": 12
		}
	}`

	report, err := Parse([]byte(raw), "test-agent")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if report.Body.DocumentURI != "https://example.com/page" {
		t.Errorf("document-uri = %q", report.Body.DocumentURI)
	}
	if report.Body.ViolatedDirective != "script-src 'self'" {
		t.Errorf("violated-directive = %q", report.Body.ViolatedDirective)
	}
	if report.Body.BlockedURI != "https://evil.example/x.js" {
		t.Errorf("blocked-uri = %q", report.Body.BlockedURI)
	}
	if report.Body.StatusCode != 200 {
		t.Errorf("status-code = %d", report.Body.StatusCode)
	}
	if report.UserAgent != "test-agent" {
		t.Errorf("user agent = %q", report.UserAgent)
	}
	if !strings.HasPrefix(report.ID, "rep_") {
		t.Errorf("report ID %q missing prefix", report.ID)
	}
	if report.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{"},
		{"missing envelope", `{"other": {}}`},
		{"empty body", `{"csp-report": {}}`},
		{"array body", `{"csp-report": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw), ""); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseDistinctIDs(t *testing.T) {
	raw := []byte(`{"csp-report": {"document-uri": "https://example.com/"}}`)
	a, err := Parse(raw, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse(raw, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("got duplicate report ID %q", a.ID)
	}
}
