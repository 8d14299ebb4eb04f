package repository

import "context"

// Entity is anything stored under an opaque unique key.
type Entity interface {
	EntityID() string
}

// Repository is the persistence capability consumed by the engine and
// processor. Implementations are fallible on every call; the backing
// store is always canonical.
type Repository[T Entity] interface {
	Save(ctx context.Context, entity T) error
	FindByID(ctx context.Context, id string) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id string) error
}
