package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"cogbot/internal/domain"
	"cogbot/internal/domain/entities"
	"cogbot/internal/ports/output"
)

var _ output.Repository[entities.GuildSetting] = (*DocumentRepository[entities.GuildSetting])(nil)

const (
	findDocumentQuery = `SELECT id, body, created_at, updated_at
FROM documents
WHERE collection = $1 AND id = $2`

	upsertDocumentQuery = `INSERT INTO documents (collection, id, body, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, now(), now())
ON CONFLICT (collection, id) DO UPDATE
SET body = EXCLUDED.body,
    updated_at = CASE WHEN documents.body IS DISTINCT FROM EXCLUDED.body
                      THEN now() ELSE documents.updated_at END
RETURNING id, body, created_at, updated_at`

	deleteDocumentQuery = `DELETE FROM documents WHERE collection = $1 AND id = $2`

	listDocumentsQuery = `SELECT id, body, created_at, updated_at
FROM documents
WHERE collection = $1 AND starts_with(id, $2)
ORDER BY id`
)

type documentRow struct {
	ID        string    `db:"id"`
	Body      []byte    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DocumentRepository stores entities of one collection as JSONB documents.
// Every call is bounded by the repository timeout.
type DocumentRepository[T output.Document] struct {
	db         *sqlx.DB
	collection string
	timeout    time.Duration
}

func NewDocumentRepository[T output.Document](db *sqlx.DB, collection string, timeout time.Duration) *DocumentRepository[T] {
	return &DocumentRepository[T]{db: db, collection: collection, timeout: timeout}
}

func (r *DocumentRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row documentRow
	if err := r.db.GetContext(ctx, &row, findDocumentQuery, r.collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s %q: %w", r.collection, id, domain.ErrNotFound)
		}
		return zero, r.fail(ctx, "find", err)
	}
	return r.decode(row)
}

func (r *DocumentRepository[T]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	body, err := json.Marshal(entity)
	if err != nil {
		return zero, &domain.PersistenceError{Op: "encode", Collection: r.collection, Err: err}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row documentRow
	if err := r.db.GetContext(ctx, &row, upsertDocumentQuery, r.collection, entity.DocumentID(), string(body)); err != nil {
		return zero, r.fail(ctx, "upsert", err)
	}
	return r.decode(row)
}

func (r *DocumentRepository[T]) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, deleteDocumentQuery, r.collection, id)
	if err != nil {
		return false, r.fail(ctx, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.fail(ctx, "delete", err)
	}
	return n > 0, nil
}

func (r *DocumentRepository[T]) List(ctx context.Context, prefix string) ([]T, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, listDocumentsQuery, r.collection, prefix); err != nil {
		return nil, r.fail(ctx, "list", err)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *DocumentRepository[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *DocumentRepository[T]) decode(row documentRow) (T, error) {
	var v T
	if err := json.Unmarshal(row.Body, &v); err != nil {
		return v, &domain.PersistenceError{Op: "decode", Collection: r.collection, Err: fmt.Errorf("document %q: %w", row.ID, err)}
	}
	return v, nil
}

// fail wraps a driver error. Drivers do not agree on the error they return
// when the deadline passes, so the call context is checked as well.
func (r *DocumentRepository[T]) fail(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return &domain.PersistenceError{Op: op, Collection: r.collection, Err: err}
}
