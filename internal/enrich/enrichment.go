// Package enrich applies value transforms to record fields. Enrichment never
// mutates its input: the record is cloned first and the clone is returned.
package enrich

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jlicht/krikri/internal/domain/record"
)

// ValueTransform maps one value to zero, one or many replacement values.
type ValueTransform interface {
	EnrichValue(v record.Value) []record.Value
}

// TransformFunc adapts a function to ValueTransform.
type TransformFunc func(v record.Value) []record.Value

// EnrichValue implements ValueTransform.
func (f TransformFunc) EnrichValue(v record.Value) []record.Value {
	return f(v)
}

// FieldChain is a path of field names, outermost first.
type FieldChain []string

// All selects every declared top-level field.
const All = "*"

// ParseChain splits a dotted path such as "sourceResource.date".
func ParseChain(path string) FieldChain {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return FieldChain(strings.Split(path, "."))
}

func (c FieldChain) String() string {
	return strings.Join(c, ".")
}

// FailurePolicy decides what happens to a value whose transform panicked.
type FailurePolicy string

const (
	// PolicyKeep logs the failure and keeps the original value.
	PolicyKeep FailurePolicy = "keep"
	// PolicyDrop logs the failure and removes the value.
	PolicyDrop FailurePolicy = "drop"
	// PolicyRecord keeps the value and reports the failure to the caller.
	PolicyRecord FailurePolicy = "record"
)

// ParsePolicy maps a configured name to a policy. Unknown names are an error.
func ParsePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyKeep:
		return PolicyKeep, nil
	case PolicyDrop:
		return PolicyDrop, nil
	case PolicyRecord:
		return PolicyRecord, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", name)
	}
}

// Failure describes a value a transform could not handle.
type Failure struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}

// Report collects failures recorded under PolicyRecord.
type Report struct {
	Failures []Failure `json:"failures,omitempty"`
}

// FieldEnrichment applies a transform over selected fields of a record.
type FieldEnrichment struct {
	Transform ValueTransform
	Policy    FailurePolicy
	Logger    *slog.Logger
}

// New returns a FieldEnrichment with the keep policy.
func New(t ValueTransform, logger *slog.Logger) *FieldEnrichment {
	return &FieldEnrichment{Transform: t, Policy: PolicyKeep, Logger: logger}
}

// Enrich returns an enriched copy of rec. With no chains, or the single
// chain "*", every declared field is enriched. Chains naming fields rec does
// not declare are no-ops.
func (e *FieldEnrichment) Enrich(rec *record.Record, chains ...FieldChain) *record.Record {
	out, _ := e.EnrichWithReport(rec, chains...)
	return out
}

// EnrichWithReport is Enrich, also returning failures recorded under
// PolicyRecord.
func (e *FieldEnrichment) EnrichWithReport(rec *record.Record, chains ...FieldChain) (*record.Record, Report) {
	var report Report
	if rec == nil {
		return nil, report
	}
	out := rec.Clone()

	if len(chains) == 0 || (len(chains) == 1 && chains[0].String() == All) {
		names := out.FieldNames()
		chains = make([]FieldChain, 0, len(names))
		for _, name := range names {
			chains = append(chains, FieldChain{name})
		}
	}
	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		e.enrichField(out, chain, chain.String(), &report)
	}
	return out, report
}

func (e *FieldEnrichment) enrichField(rec *record.Record, chain FieldChain, path string, report *Report) {
	field := chain[0]
	if !rec.Has(field) {
		return
	}
	values := rec.Field(field)

	if len(chain) > 1 {
		for _, nested := range values.Resources() {
			e.enrichField(nested, chain[1:], path, report)
		}
		return
	}

	enriched := make([]record.Value, 0, len(values))
	for _, v := range values {
		results, err := e.apply(v)
		if err != nil {
			switch e.policy() {
			case PolicyDrop:
				e.logger().Warn("enrichment failed, dropping value", "field", path, "value", v.String(), "error", err)
			case PolicyRecord:
				report.Failures = append(report.Failures, Failure{Field: path, Value: v.String(), Error: err.Error()})
				enriched = append(enriched, v)
			default:
				e.logger().Warn("enrichment failed, keeping value", "field", path, "value", v.String(), "error", err)
				enriched = append(enriched, v)
			}
			continue
		}
		for _, r := range results {
			if !r.IsZero() {
				enriched = append(enriched, r)
			}
		}
	}
	rec.SetField(field, enriched)
}

func (e *FieldEnrichment) apply(v record.Value) (out []record.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return e.Transform.EnrichValue(v), nil
}

func (e *FieldEnrichment) policy() FailurePolicy {
	if e.Policy == "" {
		return PolicyKeep
	}
	return e.Policy
}

func (e *FieldEnrichment) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Chain composes transforms left to right: every value produced by one
// transform is fed to the next.
func Chain(transforms ...ValueTransform) ValueTransform {
	return TransformFunc(func(v record.Value) []record.Value {
		current := []record.Value{v}
		for _, t := range transforms {
			next := make([]record.Value, 0, len(current))
			for _, c := range current {
				next = append(next, t.EnrichValue(c)...)
			}
			current = next
		}
		return current
	})
}
