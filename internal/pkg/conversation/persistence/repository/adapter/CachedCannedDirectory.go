package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	cache "go-deskline/internal/infrastructure/cache/port"
	"go-deskline/internal/pkg/conversation/domain"
	repository "go-deskline/internal/pkg/conversation/persistence/repository/port"
)

const cannedCacheKey = "deskline:canned_responses"

// CachedCannedDirectory wraps a CannedDirectory with a shared TTL cache.
// Every open conversation view loads the dictionary once; the cache keeps
// that from hammering the database when many views open at once. Cache
// failures fall through to the inner directory, never to the caller.
type CachedCannedDirectory struct {
	inner repository.CannedDirectory
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedCannedDirectory(inner repository.CannedDirectory, c cache.Cache, ttl time.Duration) *CachedCannedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCannedDirectory{inner: inner, cache: c, ttl: ttl}
}

var _ repository.CannedDirectory = (*CachedCannedDirectory)(nil)

func (d *CachedCannedDirectory) Responses(ctx context.Context) ([]domain.CannedResponse, error) {
	if d.cache != nil {
		raw, err := d.cache.Get(ctx, cannedCacheKey)
		if err == nil {
			var out []domain.CannedResponse
			if err := json.Unmarshal([]byte(raw), &out); err == nil {
				return out, nil
			}
			// poisoned entry; refetch below
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Printf("canned directory: cache read: %v", err)
		}
	}

	out, err := d.inner.Responses(ctx)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := d.cache.Set(ctx, cannedCacheKey, string(raw), d.ttl); err != nil {
				log.Printf("canned directory: cache write: %v", err)
			}
		}
	}
	return out, nil
}
