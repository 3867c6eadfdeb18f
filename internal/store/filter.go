package store

import (
	"fmt"
	"strings"

	"github.com/roach88/sprintledger/internal/record"
)

// compileWhere turns a filter into a parameterized WHERE clause.
//
// The JSON path is inlined as a literal so the v1 expression indexes apply.
// This is safe only because every field name passes record.ValidateField
// first; values are never interpolated.
func compileWhere(collection string, filter record.Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}

	for _, field := range filter.SortedKeys() {
		if err := record.ValidateField(field); err != nil {
			return "", nil, err
		}
		path := "'$." + field + "'"

		switch v := filter[field].(type) {
		case nil, record.Null:
			// absent and JSON null both extract as SQL NULL
			clauses = append(clauses, fmt.Sprintf("json_extract(body, %s) IS NULL", path))
		case record.Bool:
			clauses = append(clauses, fmt.Sprintf("json_type(body, %s) = ?", path))
			if v {
				args = append(args, "true")
			} else {
				args = append(args, "false")
			}
		case record.String:
			clauses = append(clauses, fmt.Sprintf("json_type(body, %s) = 'text' AND json_extract(body, %s) = ?", path, path))
			args = append(args, string(v))
		case record.Number:
			clauses = append(clauses, fmt.Sprintf("json_type(body, %s) IN ('integer', 'real') AND json_extract(body, %s) = ?", path, path))
			args = append(args, float64(v))
		default:
			return "", nil, fmt.Errorf("unsupported filter value %T for %q", v, field)
		}
	}

	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}
