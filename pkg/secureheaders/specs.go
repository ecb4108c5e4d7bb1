package secureheaders

import (
	"fmt"
	"regexp"
	"strings"
)

// Per-header value grammars. Validation runs eagerly when a policy is
// built and again when a per-request override is set; resolution assumes
// values it sees were already validated.
var (
	frameOptionsPattern  = regexp.MustCompile(`(?i)^(SAMEORIGIN$|DENY$|ALLOW-FROM[: ]\S+$)`)
	hstsPattern          = regexp.MustCompile(`(?i)^max-age=\d+(; includeSubDomains)?(; preload)?$`)
	xssProtectionPattern = regexp.MustCompile(`(?i)^[01](; mode=block)?(; report=\S+)?$`)
)

var crossDomainPolicyValues = map[string]struct{}{
	"all":             {},
	"none":            {},
	"master-only":     {},
	"by-content-type": {},
	"by-ftp-filename": {},
}

// validateValue checks a configuration value against the kind's grammar.
// A nil value (unset) and OptOut are always valid.
func validateValue(k Kind, v Value) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(OptOut); ok {
		return nil
	}
	switch k {
	case KindCSP:
		return validateCSP(v)
	case KindHSTS:
		return validateHSTS(v)
	case KindHPKP:
		return validateHPKP(v)
	case KindFrameOptions:
		return validateToken(k, v, frameOptionsPattern.MatchString, "SAMEORIGIN, DENY, or ALLOW-FROM <target>")
	case KindXSSProtection:
		return validateToken(k, v, xssProtectionPattern.MatchString, `"0", "1", or "1; mode=block"`)
	case KindContentTypeOptions:
		return validateToken(k, v, matchFold("nosniff"), `"nosniff"`)
	case KindDownloadOptions:
		return validateToken(k, v, matchFold("noopen"), `"noopen"`)
	case KindCrossDomainPolicies:
		return validateToken(k, v, matchCrossDomain, "none, master-only, by-content-type, by-ftp-filename, or all")
	default:
		return validationErrf(k, "unknown header kind")
	}
}

// renderValue produces the final header for a value. A nil value renders
// the built-in default. The second result is false when the header should
// be omitted (OptOut, or HPKP without configuration).
func renderValue(k Kind, v Value) (Header, bool) {
	if v == nil {
		def, ok := k.defaultValue()
		if !ok {
			return Header{}, false
		}
		return Header{Name: k.Name(), Value: def}, true
	}
	switch val := v.(type) {
	case OptOut:
		return Header{}, false
	case Raw:
		return Header{Name: k.Name(), Value: string(val)}, true
	case *CSPOptions:
		return renderCSPOptions(val), true
	case *HSTSOptions:
		return Header{Name: k.Name(), Value: renderHSTSOptions(val)}, true
	case *HPKPOptions:
		return renderHPKPOptions(val), true
	default:
		return Header{}, false
	}
}

func validateToken(k Kind, v Value, match func(string) bool, want string) error {
	raw, ok := v.(Raw)
	if !ok {
		return validationErrf(k, "expects a string value, got %T", v)
	}
	if !match(string(raw)) {
		return validationErrf(k, "invalid value %q, must be %s", string(raw), want)
	}
	return nil
}

func matchFold(want string) func(string) bool {
	return func(s string) bool { return strings.EqualFold(s, want) }
}

func matchCrossDomain(s string) bool {
	_, ok := crossDomainPolicyValues[strings.ToLower(s)]
	return ok
}

func validateCSP(v Value) error {
	switch val := v.(type) {
	case Raw:
		// Round-trip through the directive parser so raw strings obey the
		// same directive and token rules as structured config.
		if _, err := ParseDirectives(string(val)); err != nil {
			if verr, ok := err.(*ValidationError); ok {
				return verr
			}
			return validationErrf(KindCSP, "%v", err)
		}
		return nil
	case *CSPOptions:
		if val.Directives == nil || val.Directives.Len() == 0 {
			return validationErrf(KindCSP, "policy has no directives")
		}
		return nil
	default:
		return validationErrf(KindCSP, "expects a string or CSPOptions value, got %T", v)
	}
}

func validateHSTS(v Value) error {
	switch val := v.(type) {
	case Raw:
		if !hstsPattern.MatchString(string(val)) {
			return validationErrf(KindHSTS, "invalid value %q, must match max-age=<seconds>[; includeSubDomains][; preload]", string(val))
		}
		return nil
	case *HSTSOptions:
		if val.MaxAge <= 0 {
			return validationErrf(KindHSTS, "max-age must be positive")
		}
		return nil
	default:
		return validationErrf(KindHSTS, "expects a string or HSTSOptions value, got %T", v)
	}
}

func validateHPKP(v Value) error {
	opts, ok := v.(*HPKPOptions)
	if !ok {
		return validationErrf(KindHPKP, "expects an HPKPOptions value, got %T", v)
	}
	if opts.MaxAge <= 0 {
		return validationErrf(KindHPKP, "max-age must be positive")
	}
	if len(opts.Pins) == 0 {
		return validationErrf(KindHPKP, "at least one pin is required")
	}
	for _, pin := range opts.Pins {
		if strings.TrimSpace(pin) == "" {
			return validationErrf(KindHPKP, "empty pin digest")
		}
		if strings.ContainsAny(pin, `"; `) {
			return validationErrf(KindHPKP, "pin digest %q contains forbidden characters", pin)
		}
	}
	return nil
}

func renderCSPOptions(opts *CSPOptions) Header {
	name := KindCSP.Name()
	if opts.ReportOnly {
		name += "-Report-Only"
	}
	return Header{Name: name, Value: opts.Directives.Render()}
}

func renderHSTSOptions(opts *HSTSOptions) string {
	parts := []string{fmt.Sprintf("max-age=%d", int64(opts.MaxAge.Seconds()))}
	if opts.IncludeSubDomains {
		parts = append(parts, "includeSubDomains")
	}
	if opts.Preload {
		parts = append(parts, "preload")
	}
	return strings.Join(parts, "; ")
}

// renderHPKPOptions renders in fixed field order: max-age, pins, report-uri,
// then the includeSubDomains flag.
func renderHPKPOptions(opts *HPKPOptions) Header {
	name := KindHPKP.Name()
	if opts.ReportOnly {
		name += "-Report-Only"
	}
	parts := []string{fmt.Sprintf("max-age=%d", opts.MaxAge)}
	for _, pin := range opts.Pins {
		parts = append(parts, fmt.Sprintf("pin-sha256=%q", pin))
	}
	if opts.ReportURI != "" {
		parts = append(parts, fmt.Sprintf("report-uri=%q", opts.ReportURI))
	}
	if opts.IncludeSubDomains {
		parts = append(parts, "includeSubDomains")
	}
	return Header{Name: name, Value: strings.Join(parts, "; ")}
}
