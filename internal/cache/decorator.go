package cache

import (
	"context"

	"notifyhub/internal/repository"
	"notifyhub/pkg/metrics"
)

// CachedRepository is a read-through/write-through decorator over any
// Repository. Coherence rules:
//
//   - Save writes the store first; the cache is updated only on success.
//   - FindByID serves hits without touching the store; only a found
//     result populates the cache, so a miss is never cached and entities
//     created elsewhere become visible on the next read.
//   - FindAll always bypasses the cache to avoid stale aggregate views.
//   - Delete removes from the store first, then evicts unconditionally.
//
// No successful write is ever cache-only; eviction or crash can only
// force an extra store read, never lose data.
type CachedRepository[T repository.Entity] struct {
	store repository.Repository[T]
	cache Cache[T]
}

var _ repository.Repository[repository.Entity] = (*CachedRepository[repository.Entity])(nil)

func NewCachedRepository[T repository.Entity](store repository.Repository[T], cache Cache[T]) *CachedRepository[T] {
	return &CachedRepository[T]{
		store: store,
		cache: cache,
	}
}

func (r *CachedRepository[T]) Save(ctx context.Context, entity T) error {
	if err := r.store.Save(ctx, entity); err != nil {
		return err
	}
	r.cache.Set(ctx, entity.EntityID(), entity)
	return nil
}

func (r *CachedRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	if v, ok := r.cache.Get(ctx, id); ok {
		metrics.RecordCacheRequest("hit")
		return v, nil
	}
	metrics.RecordCacheRequest("miss")

	v, err := r.store.FindByID(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	r.cache.Set(ctx, id, v)
	return v, nil
}

func (r *CachedRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.store.FindAll(ctx)
}

func (r *CachedRepository[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Evict(ctx, id)
	return nil
}
