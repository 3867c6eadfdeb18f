package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sprintledger/internal/record"
)

// Find implements record.Store.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, collection string, filter record.Filter) ([]record.Record, error) {
	where, args, err := compileWhere(collection, filter)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT body FROM records "+where+" ORDER BY seq ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	out := make([]record.Record, 0)
	for rows.Next() {
		rec, err := scanBody(rows)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// GetOne implements record.Store.
func (s *Store) GetOne(ctx context.Context, collection, id string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?", collection, id)
	rec, err := scanBody(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, record.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Insert implements record.Store.
func (s *Store) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, fmt.Errorf("insert %s: record has no id", collection)
	}
	body, err := record.MarshalCanonical(rec)
	if err != nil {
		return nil, fmt.Errorf("insert %s/%s: marshal: %w", collection, id, err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO records (collection, id, body) VALUES (?, ?, ?)",
		collection, id, string(body)); err != nil {
		return nil, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return rec.Clone(), nil
}

// UpdateFields implements record.Store.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields record.Fields) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT seq, body FROM records WHERE collection = ? AND id = ?", collection, id)
		var seq int64
		var body string
		if err := row.Scan(&seq, &body); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("update %s/%s: %w", collection, id, record.ErrNotFound)
			}
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if err := rewrite(ctx, tx, seq, body, fields); err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// UpdateMany implements record.Store.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter record.Filter, fields record.Fields) (int, error) {
	where, args, err := compileWhere(collection, filter)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}

	n := 0
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT seq, body FROM records "+where+" ORDER BY seq ASC", args...)
		if err != nil {
			return err
		}
		type match struct {
			seq  int64
			body string
		}
		var matches []match
		for rows.Next() {
			var m match
			if err := rows.Scan(&m.seq, &m.body); err != nil {
				rows.Close()
				return err
			}
			matches = append(matches, m)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, m := range matches {
			if err := rewrite(ctx, tx, m.seq, m.body, fields); err != nil {
				return err
			}
		}
		n = len(matches)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	return n, nil
}

// DeleteOne implements record.Store.
func (s *Store) DeleteOne(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, record.ErrNotFound)
	}
	return nil
}

// DeleteMany implements record.Store.
func (s *Store) DeleteMany(ctx context.Context, collection string, filter record.Filter) (int, error) {
	where, args, err := compileWhere(collection, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM records "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return int(affected), nil
}

// Count returns the number of records in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func rewrite(ctx context.Context, tx *sql.Tx, seq int64, body string, fields record.Fields) error {
	var rec record.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	next := rec.Merge(fields)
	next[record.FieldID] = rec[record.FieldID]
	merged, err := record.MarshalCanonical(next)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE records SET body = ? WHERE seq = ?", string(merged), seq); err != nil {
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBody(row scanner) (record.Record, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		return nil, err
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return rec, nil
}
