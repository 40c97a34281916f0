package record

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Record is a nested, field-oriented metadata item. Reading a field that was
// never set yields an empty ValueArray.
type Record struct {
	fields map[string][]Value
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: make(map[string][]Value)}
}

// Field returns a copy of the values held at name.
func (r *Record) Field(name string) ValueArray {
	if r == nil {
		return ValueArray{}
	}
	values := r.fields[name]
	out := make(ValueArray, len(values))
	copy(out, values)
	return out
}

// Has reports whether name is a declared field, even if it holds no values.
func (r *Record) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fields[name]
	return ok
}

// SetField replaces the values at name. Setting no values keeps the field
// declared but empty.
func (r *Record) SetField(name string, values []Value) {
	if r.fields == nil {
		r.fields = make(map[string][]Value)
	}
	stored := make([]Value, len(values))
	copy(stored, values)
	r.fields[name] = stored
}

// Add appends values to name.
func (r *Record) Add(name string, values ...Value) {
	if r.fields == nil {
		r.fields = make(map[string][]Value)
	}
	r.fields[name] = append(r.fields[name], values...)
}

// Remove undeclares name.
func (r *Record) Remove(name string) {
	delete(r.fields, name)
}

// FieldNames returns the declared fields in sorted order.
func (r *Record) FieldNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{fields: make(map[string][]Value, len(r.fields))}
	for name, values := range r.fields {
		cloned := make([]Value, len(values))
		for i, v := range values {
			cloned[i] = v.clone()
		}
		out.fields[name] = cloned
	}
	return out
}

// MarshalJSON encodes the record as an object of field arrays.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := make(map[string][]Value)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

// ValueArray is the ordered set of values held by a field.
type ValueArray []Value

// Values returns the text of each value.
func (a ValueArray) Values() []string {
	out := make([]string, 0, len(a))
	for _, v := range a {
		out = append(out, v.String())
	}
	return out
}

// Field descends through nested resources, collecting the values found at
// the given path from every resource in a.
func (a ValueArray) Field(names ...string) ValueArray {
	current := a
	for _, name := range names {
		next := ValueArray{}
		for _, v := range current {
			if v.IsResource() {
				next = append(next, v.Resource.Field(name)...)
			}
		}
		current = next
	}
	return current
}

// Select returns the values for which keep reports true.
func (a ValueArray) Select(keep func(Value) bool) ValueArray {
	out := ValueArray{}
	for _, v := range a {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// MatchAttribute returns the values whose attribute name equals want,
// ignoring case.
func (a ValueArray) MatchAttribute(name, want string) ValueArray {
	return a.Select(func(v Value) bool { return v.matchesAttribute(name, want) })
}

// Resources returns the nested records held by a.
func (a ValueArray) Resources() []*Record {
	var out []*Record
	for _, v := range a {
		if v.IsResource() {
			out = append(out, v.Resource)
		}
	}
	return out
}

// Entity is anything an Activity generates and the store can load.
type Entity interface {
	EntityID() string
	GeneratedByActivity() string
}

// OriginalRecord is a harvested item: the verbatim upstream payload plus
// the fields parsed from it.
type OriginalRecord struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	SourceID      string     `json:"source_id"`
	Datestamp     string     `json:"datestamp,omitempty"`
	SetSpecs      []string   `json:"set_specs,omitempty"`
	Deleted       bool       `json:"deleted,omitempty"`
	Content       string     `json:"content"`
	ContentType   string     `json:"content_type"`
	Record        *Record    `json:"record"`
	GeneratedBy   string     `json:"generated_by,omitempty"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
}

// EntityID implements Entity.
func (o *OriginalRecord) EntityID() string { return o.ID }

// GeneratedByActivity implements Entity.
func (o *OriginalRecord) GeneratedByActivity() string { return o.GeneratedBy }

// Loaded reports whether o carries content rather than only its identifier.
func (o *OriginalRecord) Loaded() bool {
	return strings.TrimSpace(o.Content) != ""
}

// IsInvalidated reports whether a later activity invalidated o.
func (o *OriginalRecord) IsInvalidated() bool {
	return o.InvalidatedAt != nil
}

// Aggregation is an enriched record derived from an OriginalRecord.
type Aggregation struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	DerivedFrom   string     `json:"derived_from,omitempty"`
	Record        *Record    `json:"record"`
	GeneratedBy   string     `json:"generated_by,omitempty"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
}

// EntityID implements Entity.
func (a *Aggregation) EntityID() string { return a.ID }

// GeneratedByActivity implements Entity.
func (a *Aggregation) GeneratedByActivity() string { return a.GeneratedBy }

// Loaded reports whether a carries a record rather than only its identifier.
func (a *Aggregation) Loaded() bool {
	return a.Record != nil
}
