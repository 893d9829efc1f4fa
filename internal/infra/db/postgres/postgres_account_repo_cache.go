package postgres

import (
	"context"
	"encoding/json"
	"time"

	"contentforge/internal/domain/model"
	"contentforge/internal/domain/ports/repository"
	"contentforge/internal/infra/metrics"
	red "contentforge/internal/infra/redis"
)

var _ repository.AccountRepository = (*accountRepoCacheDecorator)(nil)

// accountRepoCacheDecorator caches reads by id. Writes invalidate first so a
// concurrent reader can at worst re-fetch, never see a stale counter.
type accountRepoCacheDecorator struct {
	inner repository.AccountRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewAccountRepoCacheDecorator(inner repository.AccountRepository, cache red.RedisClient, ttl time.Duration) repository.AccountRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &accountRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func accountCacheKey(id string) string { return "account:id:" + id }

func (d *accountRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	_ = d.cache.Del(ctx, accountCacheKey(a.ID))
	return d.inner.Save(ctx, tx, a)
}

func (d *accountRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	key := accountCacheKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var a model.Account
		if json.Unmarshal([]byte(val), &a) == nil {
			metrics.IncCacheRequest("account", "hit")
			return &a, nil
		}
	}

	metrics.IncCacheRequest("account", "miss")
	a, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(a); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return a, nil
}

// FindByIDForUpdate always goes to the database: the point is the row lock.
func (d *accountRepoCacheDecorator) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return d.inner.FindByIDForUpdate(ctx, tx, id)
}
