package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	rec := Record{
		"id":         String("e1"),
		"taskId":     String("b1"),
		"isBugEntry": Bool(true),
		"sprintId":   Null{},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty matches all", Filter{}, true},
		{"single equal", Eq("taskId", String("b1")), true},
		{"single mismatch", Eq("taskId", String("t1")), false},
		{"conjunction", Eq("taskId", String("b1")).And("isBugEntry", Bool(true)), true},
		{"conjunction mismatch", Eq("taskId", String("b1")).And("isBugEntry", Bool(false)), false},
		{"null matches null", Eq("sprintId", Null{}), true},
		{"null matches absent", Eq("projectId", Null{}), true},
		{"null does not match value", Eq("taskId", Null{}), false},
		{"absent field with value", Eq("projectId", String("p1")), false},
		{"type sensitive", Eq("isBugEntry", String("true")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}

func TestFilterAndCopies(t *testing.T) {
	base := Eq("a", String("1"))
	_ = base.And("b", String("2"))
	assert.Len(t, base, 1)
}

func TestFilterString(t *testing.T) {
	f := Filter{"taskId": String("t1"), "isBugEntry": Bool(true), "x": Null{}}
	assert.Equal(t, `{isBugEntry=true, taskId="t1", x=null}`, f.String())
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{"sprintId": Null{}}.Validate())

	err := Filter{"a'); DROP": String("x")}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidField))

	assert.Error(t, ValidateField("$.a"))
	assert.Error(t, ValidateField(""))
}
