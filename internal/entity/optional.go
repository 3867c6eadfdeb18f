package entity

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/sprintledger/internal/record"
)

// Optional is a tri-state field: absent, explicit null, or a value.
// encoding/json only calls UnmarshalJSON for keys that are present, so the
// zero value means absent.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Nil returns a set Optional holding an explicit null.
func Nil[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Present reports whether the field was supplied with a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON implements json.Marshaler. Absent fields marshal as null;
// use omitzero on the containing struct to drop them.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsZero lets omitzero drop absent fields.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// fieldSetter accumulates record fields from Optionals.
type fieldSetter struct {
	fields record.Fields
}

func newFieldSetter() *fieldSetter {
	return &fieldSetter{fields: make(record.Fields)}
}

func setString(s *fieldSetter, name string, o Optional[string]) {
	if !o.Set {
		return
	}
	if o.Null {
		s.fields[name] = record.Null{}
		return
	}
	s.fields[name] = record.String(o.Value)
}

func setNumber(s *fieldSetter, name string, o Optional[Number]) {
	if !o.Set {
		return
	}
	if o.Null {
		s.fields[name] = record.Null{}
		return
	}
	s.fields[name] = record.Number(o.Value)
}

func setCount(s *fieldSetter, name string, o Optional[Count]) {
	if !o.Set {
		return
	}
	if o.Null {
		s.fields[name] = record.Null{}
		return
	}
	s.fields[name] = record.Number(o.Value)
}

func setDateTime(s *fieldSetter, name string, o Optional[DateTime]) {
	if !o.Set {
		return
	}
	if o.Null {
		s.fields[name] = record.Null{}
		return
	}
	s.fields[name] = record.String(o.Value)
}
