package record

import (
	"strings"

	"github.com/jlicht/krikri/internal/edtf"
)

// Kind identifies what a Value holds.
type Kind string

const (
	KindString     Kind = "string"
	KindDate       Kind = "date"
	KindIdentifier Kind = "identifier"
	KindResource   Kind = "resource"
)

// Value is a single field value: a scalar or a nested Record.
type Value struct {
	Kind       Kind              `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Date       *edtf.Date        `json:"date,omitempty"`
	Resource   *Record           `json:"resource,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// String returns a string value.
func String(s string) Value {
	return Value{Kind: KindString, Text: s}
}

// Identifier returns an identifier value.
func Identifier(id string) Value {
	return Value{Kind: KindIdentifier, Text: id}
}

// Date returns a date value.
func Date(d edtf.Date) Value {
	return Value{Kind: KindDate, Date: &d}
}

// Resource returns a value wrapping a nested record.
func Resource(r *Record) Value {
	return Value{Kind: KindResource, Resource: r}
}

// Strings wraps each s as a string value.
func Strings(ss ...string) []Value {
	values := make([]Value, 0, len(ss))
	for _, s := range ss {
		values = append(values, String(s))
	}
	return values
}

// IsZero reports whether v holds nothing.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// IsText reports whether v is a plain string value.
func (v Value) IsText() bool {
	return v.Kind == KindString
}

// IsResource reports whether v holds a nested record.
func (v Value) IsResource() bool {
	return v.Kind == KindResource && v.Resource != nil
}

// String renders the value as text. Resources render as an empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindDate:
		if v.Date == nil {
			return ""
		}
		return v.Date.String()
	case KindResource:
		return ""
	default:
		return v.Text
	}
}

// Attribute returns the named attribute.
func (v Value) Attribute(name string) (string, bool) {
	attr, ok := v.Attributes[name]
	return attr, ok
}

// HasAttribute reports whether the named attribute is set.
func (v Value) HasAttribute(name string) bool {
	_, ok := v.Attributes[name]
	return ok
}

// WithAttribute returns a copy of v with the attribute set.
func (v Value) WithAttribute(name, value string) Value {
	out := v.clone()
	if out.Attributes == nil {
		out.Attributes = make(map[string]string, 1)
	}
	out.Attributes[name] = value
	return out
}

// WithAttributesOf returns a copy of v carrying src's attributes, keeping any
// attributes v already sets.
func (v Value) WithAttributesOf(src Value) Value {
	if len(src.Attributes) == 0 {
		return v
	}
	out := v.clone()
	if out.Attributes == nil {
		out.Attributes = make(map[string]string, len(src.Attributes))
	}
	for k, a := range src.Attributes {
		if _, ok := out.Attributes[k]; !ok {
			out.Attributes[k] = a
		}
	}
	return out
}

func (v Value) matchesAttribute(name, want string) bool {
	got, ok := v.Attributes[name]
	return ok && strings.EqualFold(got, want)
}

func (v Value) clone() Value {
	out := v
	if v.Date != nil {
		d := *v.Date
		if v.Date.To != nil {
			to := *v.Date.To
			d.To = &to
		}
		out.Date = &d
	}
	if v.Resource != nil {
		out.Resource = v.Resource.Clone()
	}
	if v.Attributes != nil {
		out.Attributes = make(map[string]string, len(v.Attributes))
		for k, a := range v.Attributes {
			out.Attributes[k] = a
		}
	}
	return out
}
