package secureheaders

import (
	"fmt"
	"strings"
)

// SourceNone is the CSP sentinel meaning "no sources allowed". A directive
// whose base value is exactly [SourceNone] is treated as empty by Append:
// new sources replace it instead of joining it.
const SourceNone = "'none'"

// knownDirectives is the recognized CSP directive set. Merge and
// configuration operations reject names outside it.
var knownDirectives = map[string]struct{}{
	"base-uri":                  {},
	"block-all-mixed-content":   {},
	"child-src":                 {},
	"connect-src":               {},
	"default-src":               {},
	"font-src":                  {},
	"form-action":               {},
	"frame-ancestors":           {},
	"frame-src":                 {},
	"img-src":                   {},
	"manifest-src":              {},
	"media-src":                 {},
	"object-src":                {},
	"plugin-types":              {},
	"report-uri":                {},
	"sandbox":                   {},
	"script-src":                {},
	"style-src":                 {},
	"upgrade-insecure-requests": {},
	"worker-src":                {},
}

// normalizeDirective maps underscore spellings onto the canonical dashed
// form, so callers can write either script_src or script-src.
func normalizeDirective(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Directives is an insertion-ordered mapping from CSP directive name to its
// source token list. The zero value is not usable; construct with
// NewDirectives or ParseDirectives.
type Directives struct {
	order   []string
	sources map[string][]string
}

// NewDirectives returns an empty directive set.
func NewDirectives() *Directives {
	return &Directives{sources: make(map[string][]string)}
}

// Set assigns the source list for a directive, replacing any previous
// value. The name must be a recognized directive and every token must be a
// single header-safe word.
func (d *Directives) Set(name string, sources ...string) error {
	key := normalizeDirective(name)
	if _, ok := knownDirectives[key]; !ok {
		return &UnknownDirectiveError{Directive: name}
	}
	for _, src := range sources {
		if err := checkSourceToken(src); err != nil {
			return err
		}
	}
	if _, exists := d.sources[key]; !exists {
		d.order = append(d.order, key)
	}
	d.sources[key] = append([]string(nil), sources...)
	return nil
}

// Names returns the directive names in insertion order.
func (d *Directives) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Sources returns the token list for a directive, nil when absent.
func (d *Directives) Sources(name string) []string {
	src, ok := d.sources[normalizeDirective(name)]
	if !ok {
		return nil
	}
	return append([]string(nil), src...)
}

// Has reports whether the directive is present.
func (d *Directives) Has(name string) bool {
	_, ok := d.sources[normalizeDirective(name)]
	return ok
}

// Len returns the number of directives.
func (d *Directives) Len() int {
	return len(d.order)
}

// Clone returns a deep copy.
func (d *Directives) Clone() *Directives {
	if d == nil {
		return NewDirectives()
	}
	out := NewDirectives()
	out.order = append(out.order, d.order...)
	for key, src := range d.sources {
		out.sources[key] = append([]string(nil), src...)
	}
	return out
}

// Render produces the header value: directives in insertion order joined by
// "; ", tokens within a directive space-separated.
func (d *Directives) Render() string {
	parts := make([]string, 0, len(d.order))
	for _, key := range d.order {
		src := d.sources[key]
		if len(src) == 0 {
			// Valueless directives (upgrade-insecure-requests, sandbox).
			parts = append(parts, key)
			continue
		}
		parts = append(parts, key+" "+strings.Join(src, " "))
	}
	return strings.Join(parts, "; ")
}

// set stores a pre-normalized key without validation. Internal merge use.
func (d *Directives) set(key string, sources []string) {
	if _, exists := d.sources[key]; !exists {
		d.order = append(d.order, key)
	}
	d.sources[key] = sources
}

// Append merges additions into base with set-union semantics: per directive
// the result is the union of both token lists, first-seen order preserved,
// duplicates dropped. A base list of exactly [SourceNone] is replaced
// rather than joined. Neither input is mutated.
func Append(base, additions *Directives) *Directives {
	out := base.Clone()
	if additions == nil {
		return out
	}
	for _, key := range additions.order {
		add := additions.sources[key]
		existing, ok := out.sources[key]
		if !ok || isNoneSentinel(existing) {
			out.set(key, dedupe(add))
			continue
		}
		out.set(key, dedupe(append(append([]string(nil), existing...), add...)))
	}
	return out
}

// Override merges additions into base with replacement semantics: every
// directive present in additions wholly replaces the base list. Neither
// input is mutated.
func Override(base, additions *Directives) *Directives {
	out := base.Clone()
	if additions == nil {
		return out
	}
	for _, key := range additions.order {
		out.set(key, append([]string(nil), additions.sources[key]...))
	}
	return out
}

// ParseDirectives parses a rendered policy string ("default-src 'self';
// img-src data:") back into a directive set.
func ParseDirectives(policy string) (*Directives, error) {
	out := NewDirectives()
	for _, clause := range strings.Split(policy, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		fields := strings.Fields(clause)
		if err := out.Set(fields[0], fields[1:]...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// withNonce returns a copy of d carrying the nonce token. The nonce and a
// literal 'unsafe-inline' are appended to script-src, and to style-src when
// the policy already has one. 'unsafe-inline' is deliberate: user agents
// that understand nonces ignore it, older ones fall back to allowing the
// inline script the nonce was minted for.
func (d *Directives) withNonce(nonce string) *Directives {
	tokens := []string{fmt.Sprintf("'nonce-%s'", nonce), "'unsafe-inline'"}
	add := NewDirectives()
	add.set("script-src", tokens)
	if d.Has("style-src") {
		add.set("style-src", tokens)
	}
	return Append(d, add)
}

func isNoneSentinel(sources []string) bool {
	return len(sources) == 1 && sources[0] == SourceNone
}

func dedupe(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

func checkSourceToken(src string) error {
	if src == "" {
		return validationErrf(KindCSP, "empty source token")
	}
	if strings.ContainsAny(src, ";, \t\r\n") {
		return validationErrf(KindCSP, "source token %q contains forbidden characters", src)
	}
	return nil
}
