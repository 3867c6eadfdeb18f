package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one stored document. The "id" field is the primary key.
type Record map[string]Value

// Fields is a partial set of field assignments used by updates.
type Fields map[string]Value

// FieldID is the primary-key field present on every record.
const FieldID = "id"

// ID returns the record's identifier, or "" when absent.
func (r Record) ID() string {
	s, _ := r.String(FieldID)
	return s
}

// String returns a text field. ok is false when the field is absent, null,
// or not a string.
func (r Record) String(field string) (string, bool) {
	s, ok := r[field].(String)
	return string(s), ok
}

// Number returns a numeric field, 0 when absent or not numeric.
func (r Record) Number(field string) float64 {
	n, _ := r[field].(Number)
	return float64(n)
}

// Bool returns a boolean field and whether it was present as a bool.
func (r Record) Bool(field string) (bool, bool) {
	b, ok := r[field].(Bool)
	return bool(b), ok
}

// Has reports whether field is present and not null.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && !IsNull(v)
}

// SortedKeys returns the field names in canonical order.
func (r Record) SortedKeys() []string {
	return sortedKeys(r)
}

// Clone returns a shallow copy. Values are immutable scalars, so shallow is enough.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with fields applied on top.
func (r Record) Merge(fields Fields) Record {
	out := r.Clone()
	for k, v := range fields {
		if v == nil {
			v = Null{}
		}
		out[k] = v
	}
	return out
}

// Native converts the record into a map of plain Go values.
func (r Record) Native() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = Native(v)
	}
	return out
}

// MarshalJSON emits canonical JSON so stored bodies and snapshots are stable.
func (r Record) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r)
}

// UnmarshalJSON decodes a flat JSON object. Nested arrays or objects are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record must be a JSON object")
	}
	rec, err := FromMap(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// FromMap converts a map of plain Go values into a Record.
func FromMap(m map[string]any) (Record, error) {
	rec := make(Record, len(m))
	for k, v := range m {
		val, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		rec[k] = val
	}
	return rec, nil
}

// FieldsFromMap converts a map of plain Go values into update Fields.
func FieldsFromMap(m map[string]any) (Fields, error) {
	rec, err := FromMap(m)
	if err != nil {
		return nil, err
	}
	return Fields(rec), nil
}

// SortedKeys returns the field names in canonical order.
func (f Fields) SortedKeys() []string {
	return sortedKeys(f)
}

// MarshalJSON emits canonical JSON.
func (f Fields) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(Record(f))
}
