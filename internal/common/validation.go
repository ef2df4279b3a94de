package common

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Rule returns an empty string when value passes, otherwise the reason.
type Rule func(value any) string

// Validator collects rule failures across fields so a record reports every
// problem at once.
type Validator struct {
	failures []FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order.
func (v *Validator) Field(name string, value any, rules ...Rule) *Validator {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			v.failures = append(v.failures, FieldError{Field: name, Value: value, Message: msg})
		}
	}
	return v
}

// Failures returns the collected failures.
func (v *Validator) Failures() []FieldError {
	return v.failures
}

// Error returns nil or an error wrapping ErrValidation with every message.
func (v *Validator) Error() error {
	if len(v.failures) == 0 {
		return nil
	}
	msgs := make([]string, len(v.failures))
	for i, f := range v.failures {
		msgs[i] = f.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Required rejects nil and blank strings.
func Required(value any) string {
	switch s := value.(type) {
	case nil:
		return "is required"
	case string:
		if strings.TrimSpace(s) == "" {
			return "is required"
		}
	}
	return ""
}

// IntRange requires an int within [min, max].
func IntRange(min, max int) Rule {
	return func(value any) string {
		n, ok := value.(int)
		switch {
		case !ok:
			return "must be an integer"
		case n < min || n > max:
			return fmt.Sprintf("must be between %d and %d", min, max)
		}
		return ""
	}
}

// MinInt requires an int of at least min.
func MinInt(min int) Rule {
	return func(value any) string {
		n, ok := value.(int)
		switch {
		case !ok:
			return "must be an integer"
		case n < min:
			return fmt.Sprintf("must be at least %d", min)
		}
		return ""
	}
}

// Matches requires a string matching re.
func Matches(re *regexp.Regexp) Rule {
	return func(value any) string {
		s, ok := value.(string)
		switch {
		case !ok:
			return "must be a string"
		case !re.MatchString(s):
			return "must match " + re.String()
		}
		return ""
	}
}
