package secureheaders

import "fmt"

// ValidationError reports an invalid configuration value for one header
// kind. It is returned from NewPolicy and from per-request override
// setters; resolution itself never produces one.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Name(), e.Reason)
}

func validationErrf(k Kind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: k, Reason: fmt.Sprintf(format, args...)}
}

// DuplicateOverrideError reports a second attempt to set a single-use
// per-request override.
type DuplicateOverrideError struct {
	Kind Kind
}

func (e *DuplicateOverrideError) Error() string {
	return fmt.Sprintf("%s: header already overridden for this request", e.Kind.Name())
}

// UnknownDirectiveError reports a CSP directive name outside the
// recognized set.
type UnknownDirectiveError struct {
	Directive string
}

func (e *UnknownDirectiveError) Error() string {
	return fmt.Sprintf("unknown content security policy directive %q", e.Directive)
}
