package stores

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/sudocache"
)

// CachedIdentityStore is a ristretto-backed read-through cache in
// front of another IdentityStore. Lookup errors are never cached.
type CachedIdentityStore struct {
	inner sudocache.IdentityStore
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedIdentityStore(inner sudocache.IdentityStore, numCounters, maxCost, bufferItems int64, ttl time.Duration) (*CachedIdentityStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &CachedIdentityStore{inner: inner, cache: cache, ttl: ttl}, nil
}

func (s *CachedIdentityStore) LookupUser(ctx context.Context, username string) (*sudocache.UserInfo, error) {
	if v, ok := s.cache.Get(username); ok {
		if info, ok := v.(*sudocache.UserInfo); ok {
			dup := &sudocache.UserInfo{UID: info.UID, Groups: append([]string(nil), info.Groups...)}
			return dup, nil
		}
	}
	info, err := s.inner.LookupUser(ctx, username)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithTTL(username, info, 1, s.ttl)
	return info, nil
}

// Invalidate drops a cached user, e.g. after a refresh cycle changed
// its memberships.
func (s *CachedIdentityStore) Invalidate(username string) {
	s.cache.Del(username)
}

// Wait blocks until pending cache writes are applied. Mostly for
// tests, which need deterministic hits.
func (s *CachedIdentityStore) Wait() {
	s.cache.Wait()
}

func (s *CachedIdentityStore) Close() {
	s.cache.Close()
}
