package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Filter is an equality conjunction over top-level fields.
// An empty filter matches every record. A Null value matches records where
// the field is null or absent.
type Filter map[string]Value

// Eq builds a single-field filter.
func Eq(field string, v Value) Filter {
	return Filter{field: v}
}

// And returns a copy of f with field = v added.
func (f Filter) And(field string, v Value) Filter {
	out := make(Filter, len(f)+1)
	for k, val := range f {
		out[k] = val
	}
	out[field] = v
	return out
}

// Matches reports whether rec satisfies every clause of f.
func (f Filter) Matches(rec Record) bool {
	for field, want := range f {
		got, ok := rec[field]
		if IsNull(want) {
			if ok && !IsNull(got) {
				return false
			}
			continue
		}
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// SortedKeys returns the filter fields in canonical order.
func (f Filter) SortedKeys() []string {
	return sortedKeys(f)
}

// String renders the filter deterministically for logs.
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.SortedKeys() {
		parts = append(parts, k+"="+describe(f[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidField is returned by adapters for field names that cannot be
// safely addressed in a query path.
var ErrInvalidField = errors.New("invalid field name")

// ValidateField checks that name is a plain identifier.
func ValidateField(name string) error {
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// Validate checks every field name in f.
func (f Filter) Validate() error {
	for k := range f {
		if err := ValidateField(k); err != nil {
			return err
		}
	}
	return nil
}
