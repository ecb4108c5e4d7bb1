package secureheaders

// Kind identifies one of the security response headers this package computes.
type Kind int

const (
	KindCSP Kind = iota
	KindHSTS
	KindHPKP
	KindFrameOptions
	KindXSSProtection
	KindContentTypeOptions
	KindDownloadOptions
	KindCrossDomainPolicies
)

// kindOrder is the fixed resolution and validation order.
var kindOrder = []Kind{
	KindCSP,
	KindHSTS,
	KindHPKP,
	KindFrameOptions,
	KindXSSProtection,
	KindContentTypeOptions,
	KindDownloadOptions,
	KindCrossDomainPolicies,
}

// Kinds returns every header kind in resolution order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Name returns the canonical response header name for the kind.
// CSP and HPKP switch to their Report-Only variants at render time when
// the configured value asks for it.
func (k Kind) Name() string {
	switch k {
	case KindCSP:
		return "Content-Security-Policy"
	case KindHSTS:
		return "Strict-Transport-Security"
	case KindHPKP:
		return "Public-Key-Pins"
	case KindFrameOptions:
		return "X-Frame-Options"
	case KindXSSProtection:
		return "X-XSS-Protection"
	case KindContentTypeOptions:
		return "X-Content-Type-Options"
	case KindDownloadOptions:
		return "X-Download-Options"
	case KindCrossDomainPolicies:
		return "X-Permitted-Cross-Domain-Policies"
	default:
		return "unknown"
	}
}

func (k Kind) String() string {
	return k.Name()
}

// defaultValue returns the built-in header value emitted when nothing is
// configured for the kind. HPKP has no safe default: publishing a wrong pin
// set can lock users out of a domain, so it is opt-in only.
func (k Kind) defaultValue() (string, bool) {
	switch k {
	case KindCSP:
		return "default-src 'self'", true
	case KindHSTS:
		return "max-age=631138519", true
	case KindHPKP:
		return "", false
	case KindFrameOptions:
		return "SAMEORIGIN", true
	case KindXSSProtection:
		return "1; mode=block", true
	case KindContentTypeOptions:
		return "nosniff", true
	case KindDownloadOptions:
		return "noopen", true
	case KindCrossDomainPolicies:
		return "none", true
	default:
		return "", false
	}
}
