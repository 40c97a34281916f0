package harvest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidOptions is the sentinel every ValidationError matches.
var ErrInvalidOptions = errors.New("invalid options")

// Options are the free-form settings a harvester or agent is built with.
type Options map[string]any

// Clone returns a copy of o. Slice values are copied so the clone can be
// handed to a request without later mutation leaking in.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		switch tv := v.(type) {
		case []string:
			out[k] = append([]string(nil), tv...)
		case []any:
			out[k] = append([]any(nil), tv...)
		case map[string]any:
			out[k] = map[string]any(Options(tv).Clone())
		default:
			out[k] = v
		}
	}
	return out
}

// Merge returns a copy of o overlaid with override. Keys in override win.
func (o Options) Merge(override Options) Options {
	out := o.Clone()
	for k, v := range override.Clone() {
		out[k] = v
	}
	return out
}

// String returns the string at key.
func (o Options) String(key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// StringOr returns the string at key, or fallback when unset or empty.
func (o Options) StringOr(key, fallback string) string {
	if s, ok := o.String(key); ok && s != "" {
		return s
	}
	return fallback
}

// Strings returns the value at key as a list. A single string is a list of
// one.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// OptionType names the accepted shape of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	TypeInt    OptionType = "int"
)

// OptionSpec describes one accepted option.
type OptionSpec struct {
	Type        OptionType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Multiple    bool       `json:"multiple,omitempty"`
	Description string     `json:"description,omitempty"`
}

// OptionSchema lists the options a harvester or agent accepts.
type OptionSchema map[string]OptionSpec

// Merge returns a schema holding the specs of s and other. Specs in other win.
func (s OptionSchema) Merge(other OptionSchema) OptionSchema {
	out := make(OptionSchema, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the option names in sorted order.
func (s OptionSchema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidationError lists every problem found in a set of options.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid options: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}

// Validate checks opts against s: required keys present, values of the
// declared type, lists only where Multiple is set, no unknown keys.
func (s OptionSchema) Validate(opts Options) error {
	var problems []string
	for _, key := range s.Keys() {
		spec := s[key]
		v, ok := opts[key]
		if !ok || v == nil {
			if spec.Required {
				problems = append(problems, fmt.Sprintf("%s is required", key))
			}
			continue
		}
		if msg := spec.check(v); msg != "" {
			problems = append(problems, fmt.Sprintf("%s %s", key, msg))
		}
	}

	unknown := make([]string, 0)
	for key := range opts {
		if _, ok := s[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		problems = append(problems, fmt.Sprintf("%s is not a recognized option", key))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (spec OptionSpec) check(v any) string {
	var items []any
	switch tv := v.(type) {
	case []any:
		items = tv
	case []string:
		for _, s := range tv {
			items = append(items, s)
		}
	default:
		return spec.checkScalar(v)
	}
	if !spec.Multiple {
		return "does not accept multiple values"
	}
	for _, item := range items {
		if msg := spec.checkScalar(item); msg != "" {
			return msg
		}
	}
	return ""
}

func (spec OptionSpec) checkScalar(v any) string {
	switch spec.Type {
	case TypeString, "":
		if _, ok := v.(string); !ok {
			return "must be a string"
		}
	case TypeInt:
		switch n := v.(type) {
		case int, int32, int64:
		case float64:
			if n != float64(int64(n)) {
				return "must be an integer"
			}
		default:
			return "must be an integer"
		}
	}
	return ""
}
