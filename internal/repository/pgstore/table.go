// Package pgstore implements the repository contracts on PostgreSQL, keeping
// each entity as a JSONB document keyed by id.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

const uniqueViolation = "23505"

// Table is a generic repository over one JSONB document table.
type Table[T any] struct {
	db   *sql.DB
	name string
	idOf func(*T) string
}

// NewTable wraps the named table. name must be a trusted identifier.
func NewTable[T any](db *sql.DB, name string, idOf func(*T) string) *Table[T] {
	return &Table[T]{db: db, name: name, idOf: idOf}
}

func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	row := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, t.name), id)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	return decode[T](raw)
}

func (t *Table[T]) FindOne(ctx context.Context, filter repository.Filter) (*T, error) {
	where, args := whereClause(filter)
	docs, err := t.query(ctx, fmt.Sprintf(`SELECT doc FROM %s %s %s LIMIT 1`, t.name, where, newestFirst), args...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, repository.ErrNotFound
	}
	return &docs[0], nil
}

func (t *Table[T]) Find(ctx context.Context, filter repository.Filter) ([]T, error) {
	where, args := whereClause(filter)
	return t.query(ctx, fmt.Sprintf(`SELECT doc FROM %s %s %s`, t.name, where, newestFirst), args...)
}

func (t *Table[T]) Insert(ctx context.Context, doc *T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = t.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, t.name), t.idOf(doc), string(raw))
	if err != nil {
		return t.wrap("insert into", err)
	}
	return nil
}

func (t *Table[T]) Replace(ctx context.Context, id string, doc *T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = $2 WHERE id = $1`, t.name), id, string(raw))
	if err != nil {
		return t.wrap("update", err)
	}
	return affectedOrNotFound(res)
}

func (t *Table[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb WHERE id = $1`, t.name), id, string(raw))
	if err != nil {
		return t.wrap("update", err)
	}
	return affectedOrNotFound(res)
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.name), id)
	if err != nil {
		return t.wrap("delete from", err)
	}
	return affectedOrNotFound(res)
}

// conditionalExec runs an UPDATE whose WHERE clause carries a condition on
// top of id = $1. Zero affected rows means ErrConditionFailed if the row
// exists and ErrNotFound otherwise.
func (t *Table[T]) conditionalExec(ctx context.Context, query string, args ...any) error {
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return t.wrap("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, t.name), args[0]).Scan(&exists)
	if err != nil {
		return fmt.Errorf("select from %s: %w", t.name, err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConditionFailed
}

func (t *Table[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	defer rows.Close()

	docs := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		doc, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (t *Table[T]) wrap(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s %s: %w", op, t.name, err)
}

const newestFirst = `ORDER BY (doc->>'createdAt')::timestamptz DESC, id DESC`

// whereClause renders filter as doc->>key = value predicates with bound parameters.
func whereClause(filter repository.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		preds = append(preds, fmt.Sprintf("doc->>($%d::text) = $%d", len(args)+1, len(args)+2))
		args = append(args, k, filter[k])
	}
	return "WHERE " + strings.Join(preds, " AND "), args
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func decode[T any](raw []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}
