// Package memory is a process-local Repository used when no database is
// configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

// Repository keeps JSON copies so callers never share memory with the store.
type Repository[T output.Document] struct {
	collection string

	mu   sync.RWMutex
	docs map[string][]byte
}

func NewRepository[T output.Document](collection string) *Repository[T] {
	return &Repository[T]{collection: collection, docs: make(map[string][]byte)}
}

func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if err := r.check(ctx, "find"); err != nil {
		return zero, err
	}
	r.mu.RLock()
	body, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%s %q: %w", r.collection, id, domain.ErrNotFound)
	}
	return r.decode(body)
}

func (r *Repository[T]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := r.check(ctx, "upsert"); err != nil {
		return zero, err
	}
	body, err := json.Marshal(entity)
	if err != nil {
		return zero, &domain.PersistenceError{Op: "encode", Collection: r.collection, Err: err}
	}
	r.mu.Lock()
	r.docs[entity.DocumentID()] = body
	r.mu.Unlock()
	return r.decode(body)
}

func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.check(ctx, "delete"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.docs[id]
	delete(r.docs, id)
	return ok, nil
}

func (r *Repository[T]) List(ctx context.Context, prefix string) ([]T, error) {
	if err := r.check(ctx, "list"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	ids := slices.Sorted(maps.Keys(r.docs))
	var bodies [][]byte
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			bodies = append(bodies, r.docs[id])
		}
	}
	r.mu.RUnlock()

	out := make([]T, 0, len(bodies))
	for _, body := range bodies {
		v, err := r.decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Len returns the number of stored documents.
func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *Repository[T]) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return &domain.PersistenceError{Op: op, Collection: r.collection, Err: err}
	}
	return nil
}

func (r *Repository[T]) decode(body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, &domain.PersistenceError{Op: "decode", Collection: r.collection, Err: err}
	}
	return v, nil
}
