package postgres

import (
	"fmt"
	"strings"

	"github.com/roach88/sprintledger/internal/record"
)

// compileWhere turns a filter into a WHERE clause with $n placeholders.
// Field names are bound as parameters too; validation keeps them to plain
// identifiers so they round-trip through logs unambiguously.
func compileWhere(collection string, filter record.Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, field := range filter.SortedKeys() {
		if err := record.ValidateField(field); err != nil {
			return "", nil, err
		}
		value := filter[field]
		if record.IsNull(value) {
			key := next(field)
			clauses = append(clauses, fmt.Sprintf("(body -> %s::text IS NULL OR body -> %s::text = 'null'::jsonb)", key, key))
			continue
		}
		encoded, err := record.MarshalValue(value)
		if err != nil {
			return "", nil, fmt.Errorf("filter %q: %w", field, err)
		}
		key := next(field)
		clauses = append(clauses, fmt.Sprintf("body -> %s::text = %s::text::jsonb", key, next(string(encoded))))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}
