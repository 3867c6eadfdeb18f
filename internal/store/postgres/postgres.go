// Package postgres provides a record.Store over PostgreSQL JSONB documents.
//
// Layout matches the SQLite adapter: one records table keyed by
// (collection, id), ordered by a BIGSERIAL seq. Partial updates use the
// jsonb concatenation operator so each call is a single statement.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/record"
)

//go:embed schema.sql
var schemaSQL string

var _ record.Store = (*Store)(nil)

// Store is a record.Store backed by a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects to dsn, verifies the connection, and applies the schema.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("driver", "postgres").Msg("record store ready")
	return &Store{Pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

// Ping implements record.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Find implements record.Store.
func (s *Store) Find(ctx context.Context, collection string, filter record.Filter) ([]record.Record, error) {
	where, args, err := compileWhere(collection, filter)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	rows, err := s.Pool.Query(ctx, "SELECT body::text FROM records "+where+" ORDER BY seq ASC", args...)
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
	row := s.Pool.QueryRow(ctx,
		"SELECT body::text FROM records WHERE collection = $1 AND id = $2", collection, id)
	rec, err := scanBody(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if _, err := s.Pool.Exec(ctx,
		"INSERT INTO records (collection, id, body) VALUES ($1, $2, $3::text::jsonb)",
		collection, id, string(body)); err != nil {
		return nil, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return rec.Clone(), nil
}

// UpdateFields implements record.Store.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields record.Fields) error {
	patch, err := record.MarshalCanonical(record.Record(fields))
	if err != nil {
		return fmt.Errorf("update %s/%s: marshal: %w", collection, id, err)
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE records
		SET body = body || $3::text::jsonb || jsonb_build_object('id', id)
		WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, record.ErrNotFound)
	}
	return nil
}

// UpdateMany implements record.Store.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter record.Filter, fields record.Fields) (int, error) {
	where, args, err := compileWhere(collection, filter)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	patch, err := record.MarshalCanonical(record.Record(fields))
	if err != nil {
		return 0, fmt.Errorf("update %s: marshal: %w", collection, err)
	}
	args = append(args, string(patch))
	stmt := fmt.Sprintf("UPDATE records SET body = body || $%d::text::jsonb || jsonb_build_object('id', id) %s",
		len(args), where)

	tag, err := s.Pool.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOne implements record.Store.
func (s *Store) DeleteOne(ctx context.Context, collection, id string) error {
	tag, err := s.Pool.Exec(ctx, "DELETE FROM records WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
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
	tag, err := s.Pool.Exec(ctx, "DELETE FROM records "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanBody(row pgx.Row) (record.Record, error) {
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
