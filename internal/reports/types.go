package reports

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Report is one ingested CSP violation report.
type Report struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Body       Body      `json:"body"`
}

// envelope is the wire format browsers send: the report nested under a
// "csp-report" key.
type envelope struct {
	Report Body `json:"csp-report"`
}

// Body carries the violation fields defined by the CSP reporting format.
type Body struct {
	DocumentURI        string `json:"document-uri"`
	Referrer           string `json:"referrer,omitempty"`
	ViolatedDirective  string `json:"violated-directive"`
	EffectiveDirective string `json:"effective-directive,omitempty"`
	OriginalPolicy     string `json:"original-policy,omitempty"`
	BlockedURI         string `json:"blocked-uri,omitempty"`
	Disposition        string `json:"disposition,omitempty"`
	StatusCode         int    `json:"status-code,omitempty"`
	SourceFile         string `json:"source-file,omitempty"`
	LineNumber         int    `json:"line-number,omitempty"`
	ColumnNumber       int    `json:"column-number,omitempty"`
}

// Parse decodes a report payload and assigns it an identifier.
func Parse(data []byte, userAgent string) (Report, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Report{}, fmt.Errorf("decode csp report: %w", err)
	}
	if env.Report.DocumentURI == "" && env.Report.ViolatedDirective == "" {
		return Report{}, fmt.Errorf("csp report missing document-uri and violated-directive")
	}
	return Report{
		ID:         newReportID(),
		ReceivedAt: time.Now().UTC(),
		UserAgent:  userAgent,
		Body:       env.Report,
	}, nil
}

func newReportID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "rep_fallback"
	}
	return "rep_" + hex.EncodeToString(b)
}
