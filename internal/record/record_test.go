package record

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"string", String("hello"), `"hello"`},
		{"html not escaped", String("<a&b>"), `"<a&b>"`},
		{"integer number", Number(8), "8"},
		{"fractional number", Number(1.5), "1.5"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"bool", Bool(true), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalValueRejectsNonFinite(t *testing.T) {
	_, err := MarshalValue(Number(math.Inf(1)))
	assert.Error(t, err)
	_, err = MarshalValue(Number(math.NaN()))
	assert.Error(t, err)
}

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	rec := Record{
		"title":  String("Login"),
		"id":     String("t1"),
		"hours":  Number(4),
		"sprint": Null{},
	}
	got, err := MarshalCanonical(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"hours":4,"id":"t1","sprint":null,"title":"Login"}`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	got, err := MarshalCanonical(Record{"name": String("e\u0301")})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"\u00e9\"}", string(got))
}

func TestRecordUnmarshalJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"id":"a","hours":2.5,"done":true,"sprintId":null}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "a", rec.ID())
	assert.Equal(t, 2.5, rec.Number("hours"))
	done, ok := rec.Bool("done")
	assert.True(t, ok)
	assert.True(t, done)
	assert.False(t, rec.Has("sprintId"))
	assert.Contains(t, rec, "sprintId")
}

func TestRecordUnmarshalJSONRejectsNested(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"id":"a","tags":["x"]}`), &rec)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`null`), &rec)
	assert.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	rec := Record{"id": String("x"), "actualHours": Number(12.25), "assignee": Null{}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestRecordMergeDoesNotMutate(t *testing.T) {
	rec := Record{"id": String("x"), "status": String("New")}
	merged := rec.Merge(Fields{"status": String("Done"), "sprintId": nil})

	assert.Equal(t, String("New"), rec["status"])
	assert.Equal(t, String("Done"), merged["status"])
	assert.Equal(t, Null{}, merged["sprintId"])
}

func TestToValue(t *testing.T) {
	v, err := ToValue(3)
	require.NoError(t, err)
	assert.Equal(t, Number(3), v)

	v, err = ToValue(json.Number("1.25"))
	require.NoError(t, err)
	assert.Equal(t, Number(1.25), v)

	var s *string
	v, err = ToValue(s)
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)

	_, err = ToValue([]string{"a"})
	assert.Error(t, err)

	_, err = ToValue(math.NaN())
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("1"), Number(1)))
	assert.False(t, Equal(Null{}, String("")))
}
