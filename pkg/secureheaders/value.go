package secureheaders

import "time"

// Value is the configuration for a single header. It is a closed union:
// OptOut, a Raw string, or one of the kind-specific option structs
// (CSPOptions, HSTSOptions, HPKPOptions). A nil Value means "unset" and
// the header falls back to its built-in default.
type Value interface {
	headerValue()
}

// OptOut explicitly disables a header, even when a default exists.
// Distinct from leaving the header unset.
type OptOut struct{}

func (OptOut) headerValue() {}

// Raw configures a header with a literal value string. The string is still
// validated against the header's grammar.
type Raw string

func (Raw) headerValue() {}

// HSTSOptions is the structured configuration for Strict-Transport-Security.
type HSTSOptions struct {
	MaxAge            time.Duration
	IncludeSubDomains bool
	Preload           bool
}

func (*HSTSOptions) headerValue() {}

// HPKPOptions is the structured configuration for Public-Key-Pins.
// MaxAge is in seconds, pins are base64 SPKI sha256 digests emitted in the
// order given.
type HPKPOptions struct {
	MaxAge            int64
	Pins              []string
	ReportURI         string
	IncludeSubDomains bool
	ReportOnly        bool
}

func (*HPKPOptions) headerValue() {}

// CSPOptions is the structured configuration for Content-Security-Policy.
// ReportOnly switches the rendered header to the Report-Only variant.
type CSPOptions struct {
	Directives *Directives
	ReportOnly bool
}

func (*CSPOptions) headerValue() {}

// Header is one rendered name/value pair.
type Header struct {
	Name  string
	Value string
}
