package enrich

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich/parsedate"
)

// StripWhitespace collapses runs of whitespace in text values and trims the
// ends. Values left empty are removed.
var StripWhitespace = TransformFunc(func(v record.Value) []record.Value {
	if !v.IsText() {
		return []record.Value{v}
	}
	text := strings.Join(strings.Fields(v.Text), " ")
	if text == "" {
		return nil
	}
	return []record.Value{record.String(text).WithAttributesOf(v)}
})

// StripPunctuation trims punctuation from both ends of text values, keeping
// closing brackets and quotes that are balanced inside the value.
var StripPunctuation = TransformFunc(func(v record.Value) []record.Value {
	if !v.IsText() {
		return []record.Value{v}
	}
	text := strings.TrimLeftFunc(v.Text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && !strings.ContainsRune(`"'([`, r))
	})
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && !strings.ContainsRune(`"')]?!`, r))
	})
	if text == "" {
		return nil
	}
	return []record.Value{record.String(text).WithAttributesOf(v)}
})

// SplitOn splits text values on sep into one value per non-empty part.
func SplitOn(sep string) ValueTransform {
	return TransformFunc(func(v record.Value) []record.Value {
		if !v.IsText() {
			return []record.Value{v}
		}
		var out []record.Value
		for _, part := range strings.Split(v.Text, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, record.String(part).WithAttributesOf(v))
			}
		}
		return out
	})
}

var registry = map[string]func() ValueTransform{
	"parse_date":        func() ValueTransform { return parsedate.ParseDate{} },
	"strip_whitespace":  func() ValueTransform { return StripWhitespace },
	"strip_punctuation": func() ValueTransform { return StripPunctuation },
	"split_semicolon":   func() ValueTransform { return SplitOn(";") },
}

// Lookup returns the named transform.
func Lookup(name string) (ValueTransform, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return build(), nil
}

// LookupChain composes the named transforms in order.
func LookupChain(names ...string) (ValueTransform, error) {
	if len(names) == 0 {
		return nil, errors.New("no transforms named")
	}
	transforms := make([]ValueTransform, 0, len(names))
	for _, name := range names {
		t, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, t)
	}
	if len(transforms) == 1 {
		return transforms[0], nil
	}
	return Chain(transforms...), nil
}

// Names lists the registered transforms.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
