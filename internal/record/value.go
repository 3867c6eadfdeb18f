package record

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the scalar types a record field can hold.
type Value interface {
	recordValue()
}

// Null represents an explicit JSON null.
type Null struct{}

func (Null) recordValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text field.
type String string

func (String) recordValue() {}

// Number is a numeric field. Hours are fractional, so the model keeps float64.
type Number float64

func (Number) recordValue() {}

// Bool is a boolean field.
type Bool bool

func (Bool) recordValue() {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal compares two values by type and content.
// nil and Null are equal to each other.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	return a == b
}

// ToValue converts a plain Go value into a Value.
// Accepts nil, string, bool, all integer kinds, float32 and float64.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case *string:
		if val == nil {
			return Null{}, nil
		}
		return String(*val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case float32:
		return ToValue(float64(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number %v", val)
		}
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse number %q: %w", val.String(), err)
		}
		return ToValue(f)
	default:
		return nil, fmt.Errorf("unsupported field type %T", v)
	}
}

// MustValue is ToValue for literals known to be valid. Panics otherwise.
func MustValue(v any) Value {
	val, err := ToValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Native returns the plain Go value for v (nil, string, float64, bool).
func Native(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// sortedKeys orders keys by UTF-16 code units (RFC 8785 ordering).
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

func describe(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Number:
		return fmt.Sprintf("%g", float64(val))
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", v), "record.")
	}
}
