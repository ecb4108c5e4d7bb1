package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ShieldStack/server/pkg/secureheaders"
)

// HeadersConfig is the YAML surface for the security header policy.
// Per header: omit the section for the built-in default, set enabled: false
// to opt out, or configure a value. HPKP stays off unless configured.
type HeadersConfig struct {
	CSP                 *CSPConfig         `yaml:"csp"`
	HSTS                *HSTSConfig        `yaml:"hsts"`
	HPKP                *HPKPConfig        `yaml:"hpkp"`
	FrameOptions        *HeaderValueConfig `yaml:"frame_options"`
	XSSProtection       *HeaderValueConfig `yaml:"xss_protection"`
	ContentTypeOptions  *HeaderValueConfig `yaml:"content_type_options"`
	DownloadOptions     *HeaderValueConfig `yaml:"download_options"`
	CrossDomainPolicies *HeaderValueConfig `yaml:"cross_domain_policies"`
}

// HeaderValueConfig configures a simple string-valued header.
type HeaderValueConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Value   string `yaml:"value"`
}

// CSPConfig configures Content-Security-Policy.
type CSPConfig struct {
	Enabled    *bool        `yaml:"enabled"`
	Value      string       `yaml:"value"`
	Directives DirectiveMap `yaml:"directives"`
	ReportOnly bool         `yaml:"report_only"`
}

// HSTSConfig configures Strict-Transport-Security.
type HSTSConfig struct {
	Enabled           *bool    `yaml:"enabled"`
	Value             string   `yaml:"value"`
	MaxAge            Duration `yaml:"max_age"`
	IncludeSubdomains bool     `yaml:"include_subdomains"`
	Preload           bool     `yaml:"preload"`
}

// HPKPConfig configures Public-Key-Pins.
type HPKPConfig struct {
	Enabled           *bool    `yaml:"enabled"`
	MaxAge            int64    `yaml:"max_age"`
	Pins              []string `yaml:"pins"`
	ReportURI         string   `yaml:"report_uri"`
	IncludeSubdomains bool     `yaml:"include_subdomains"`
	ReportOnly        bool     `yaml:"report_only"`
}

// DirectiveMap decodes a YAML mapping of directive name to source list
// while preserving the document's key order. CSP render order is insertion
// order, so a plain Go map will not do.
type DirectiveMap struct {
	Names   []string
	Sources map[string][]string
}

// UnmarshalYAML decodes the mapping node pairwise to keep key order.
func (d *DirectiveMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("csp directives must be a mapping, got node kind %v", value.Kind)
	}
	d.Sources = make(map[string][]string, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var sources []string
		if err := value.Content[i+1].Decode(&sources); err != nil {
			return fmt.Errorf("csp directive %q: %w", name, err)
		}
		d.Names = append(d.Names, name)
		d.Sources[name] = sources
	}
	return nil
}

// BuildPolicy compiles the YAML configuration into a validated policy.
// Any invalid value surfaces here, at startup, as a kind-tagged
// secureheaders.ValidationError.
func (h HeadersConfig) BuildPolicy() (*secureheaders.Policy, error) {
	csp, err := h.cspValue()
	if err != nil {
		return nil, err
	}

	return secureheaders.NewPolicy(func(s *secureheaders.Settings) {
		s.CSP = csp
		s.HSTS = h.hstsValue()
		s.HPKP = h.hpkpValue()
		s.FrameOptions = simpleValue(h.FrameOptions)
		s.XSSProtection = simpleValue(h.XSSProtection)
		s.ContentTypeOptions = simpleValue(h.ContentTypeOptions)
		s.DownloadOptions = simpleValue(h.DownloadOptions)
		s.CrossDomainPolicies = simpleValue(h.CrossDomainPolicies)
	})
}

func (h HeadersConfig) cspValue() (secureheaders.Value, error) {
	c := h.CSP
	switch {
	case c == nil:
		return nil, nil
	case optedOut(c.Enabled):
		return secureheaders.OptOut{}, nil
	case len(c.Directives.Names) > 0:
		directives := secureheaders.NewDirectives()
		for _, name := range c.Directives.Names {
			if err := directives.Set(name, c.Directives.Sources[name]...); err != nil {
				return nil, err
			}
		}
		return &secureheaders.CSPOptions{Directives: directives, ReportOnly: c.ReportOnly}, nil
	case c.Value != "":
		return secureheaders.Raw(c.Value), nil
	default:
		return nil, nil
	}
}

func (h HeadersConfig) hstsValue() secureheaders.Value {
	c := h.HSTS
	switch {
	case c == nil:
		return nil
	case optedOut(c.Enabled):
		return secureheaders.OptOut{}
	case c.MaxAge.Duration > 0:
		return &secureheaders.HSTSOptions{
			MaxAge:            c.MaxAge.Duration,
			IncludeSubDomains: c.IncludeSubdomains,
			Preload:           c.Preload,
		}
	case c.Value != "":
		return secureheaders.Raw(c.Value)
	default:
		return nil
	}
}

func (h HeadersConfig) hpkpValue() secureheaders.Value {
	c := h.HPKP
	switch {
	case c == nil:
		return nil
	case optedOut(c.Enabled):
		return secureheaders.OptOut{}
	default:
		return &secureheaders.HPKPOptions{
			MaxAge:            c.MaxAge,
			Pins:              c.Pins,
			ReportURI:         c.ReportURI,
			IncludeSubDomains: c.IncludeSubdomains,
			ReportOnly:        c.ReportOnly,
		}
	}
}

func simpleValue(c *HeaderValueConfig) secureheaders.Value {
	switch {
	case c == nil:
		return nil
	case optedOut(c.Enabled):
		return secureheaders.OptOut{}
	case c.Value != "":
		return secureheaders.Raw(c.Value)
	default:
		return nil
	}
}

func optedOut(enabled *bool) bool {
	return enabled != nil && !*enabled
}
