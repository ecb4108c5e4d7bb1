package secureheaders

// Settings collects the configured value per header kind. A nil field means
// "use the built-in default"; assign OptOut{} to suppress a header
// entirely. HPKP is the exception: leaving it nil is equivalent to opting
// out, it is never enabled silently.
type Settings struct {
	CSP                 Value
	HSTS                Value
	HPKP                Value
	FrameOptions        Value
	XSSProtection       Value
	ContentTypeOptions  Value
	DownloadOptions     Value
	CrossDomainPolicies Value
}

func (s *Settings) value(k Kind) Value {
	switch k {
	case KindCSP:
		return s.CSP
	case KindHSTS:
		return s.HSTS
	case KindHPKP:
		return s.HPKP
	case KindFrameOptions:
		return s.FrameOptions
	case KindXSSProtection:
		return s.XSSProtection
	case KindContentTypeOptions:
		return s.ContentTypeOptions
	case KindDownloadOptions:
		return s.DownloadOptions
	case KindCrossDomainPolicies:
		return s.CrossDomainPolicies
	default:
		return nil
	}
}

// Policy is the process-wide header configuration. It is immutable after
// construction and safe for concurrent readers; replace it wholesale (see
// Resolver.SetPolicy) instead of mutating.
type Policy struct {
	values   map[Kind]Value
	defaults map[Kind]Header
}

// NewPolicy validates the settings produced by configure and builds a
// policy. Kinds are validated in fixed order and the first invalid value
// aborts construction with a kind-tagged ValidationError, leaving nothing
// partially applied. On success a rendered default header is cached per
// kind that is not opted out.
func NewPolicy(configure func(*Settings)) (*Policy, error) {
	var s Settings
	if configure != nil {
		configure(&s)
	}

	p := &Policy{
		values:   make(map[Kind]Value, len(kindOrder)),
		defaults: make(map[Kind]Header, len(kindOrder)),
	}

	for _, k := range kindOrder {
		v := s.value(k)
		if k == KindHPKP && v == nil {
			v = OptOut{}
		}
		if err := validateValue(k, v); err != nil {
			return nil, err
		}
		if v != nil {
			p.values[k] = v
		}
	}

	for _, k := range kindOrder {
		if h, ok := renderValue(k, p.values[k]); ok {
			p.defaults[k] = h
		}
	}

	return p, nil
}

// DefaultPolicy returns the policy produced by an empty configuration:
// every header at its built-in default, HPKP absent.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(nil)
	if err != nil {
		// An empty configuration is valid by construction.
		panic(err)
	}
	return p
}

// Value returns the configured value for a kind, nil when unset.
func (p *Policy) Value(k Kind) Value {
	return p.values[k]
}

// DefaultHeaders returns the cached rendered header per kind that is not
// opted out, keyed by header name.
func (p *Policy) DefaultHeaders() map[string]string {
	out := make(map[string]string, len(p.defaults))
	for _, h := range p.defaults {
		out[h.Name] = h.Value
	}
	return out
}

func (p *Policy) cachedDefault(k Kind) (Header, bool) {
	h, ok := p.defaults[k]
	return h, ok
}

// cspSeed returns the directive set per-request CSP merges start from: the
// configured CSP when structured, the parsed configured string when raw,
// otherwise the built-in default policy.
func (p *Policy) cspSeed() (*Directives, bool) {
	switch v := p.values[KindCSP].(type) {
	case *CSPOptions:
		return v.Directives.Clone(), v.ReportOnly
	case Raw:
		// Already validated at construction, the parse cannot fail.
		d, err := ParseDirectives(string(v))
		if err != nil {
			return defaultCSPDirectives(), false
		}
		return d, false
	default:
		return defaultCSPDirectives(), false
	}
}

func defaultCSPDirectives() *Directives {
	d := NewDirectives()
	d.set("default-src", []string{"'self'"})
	return d
}
