package output

import "context"

// Document is any entity persisted through a Repository.
type Document interface {
	DocumentID() string
}

// Repository is the persistence contract shared by every entity type.
//
// FindByID returns domain.ErrNotFound when no record exists. Every other
// failure is a *domain.PersistenceError; a deadline hit is a
// PersistenceError whose cause matches domain.ErrTimeout.
type Repository[T Document] interface {
	FindByID(ctx context.Context, id string) (T, error)
	// Upsert is idempotent: writing the same entity twice leaves the same state.
	Upsert(ctx context.Context, entity T) (T, error)
	// Delete reports whether a record existed and was removed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns every record whose ID starts with prefix, ordered by ID.
	List(ctx context.Context, prefix string) ([]T, error)
}
