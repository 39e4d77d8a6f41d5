package store

import (
	"context"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/patrickmn/go-cache"
)

// CachedScheduleSource resolves slots of a date from an upstream source and
// keeps them for the refresh interval.
type CachedScheduleSource struct {
	cache    *cache.Cache
	upstream func(ctx context.Context, date string) ([]domain.ResolvedSlot, error)
}

// NewCachedStoreSource resolves from a local store.
func NewCachedStoreSource(store port.ScheduleStore, resolver port.ScheduleResolver, ttl time.Duration) *CachedScheduleSource {
	return &CachedScheduleSource{
		cache: cache.New(ttl, 2*ttl),
		upstream: func(ctx context.Context, date string) ([]domain.ResolvedSlot, error) {
			entries, err := store.Load()
			if err != nil {
				return nil, err
			}
			return resolver.Resolve(entries, date), nil
		},
	}
}

// NewCachedSource wraps any source, typically the remote schedule API.
func NewCachedSource(source port.ScheduleSource, ttl time.Duration) *CachedScheduleSource {
	return &CachedScheduleSource{
		cache:    cache.New(ttl, 2*ttl),
		upstream: source.ResolvedSlots,
	}
}

func (s *CachedScheduleSource) ResolvedSlots(ctx context.Context, date string) ([]domain.ResolvedSlot, error) {
	if v, ok := s.cache.Get(date); ok {
		return v.([]domain.ResolvedSlot), nil
	}
	slots, err := s.upstream(ctx, date)
	if err != nil {
		return nil, err
	}
	s.cache.Set(date, slots, cache.DefaultExpiration)
	return slots, nil
}

// Invalidate drops every cached date, the next call hits the upstream.
func (s *CachedScheduleSource) Invalidate() {
	s.cache.Flush()
}

// ensure interface compliance
var _ port.ScheduleSource = (*CachedScheduleSource)(nil)
