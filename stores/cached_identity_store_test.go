package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oarkflow/sudocache"
)

// countingIdentityStore records how often the backing store is hit.
type countingIdentityStore struct {
	mu      sync.Mutex
	lookups int
	users   map[string]*sudocache.UserInfo
}

func (s *countingIdentityStore) LookupUser(ctx context.Context, username string) (*sudocache.UserInfo, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	info, ok := s.users[username]
	if !ok {
		return nil, sudocache.ErrUserNotFound
	}
	return info, nil
}

func (s *countingIdentityStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func newCountingStore() *countingIdentityStore {
	return &countingIdentityStore{users: map[string]*sudocache.UserInfo{
		"alice": {UID: 1000, Groups: []string{"wheel"}},
	}}
}

func TestCachedIdentityStoreHit(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	cached, err := NewCachedIdentityStore(inner, 1<<12, 1<<20, 64, time.Minute)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	defer cached.Close()

	info, err := cached.LookupUser(ctx, "alice")
	if err != nil || info.UID != 1000 {
		t.Fatalf("first lookup: %+v, %v", info, err)
	}
	cached.Wait()

	info, err = cached.LookupUser(ctx, "alice")
	if err != nil || info.UID != 1000 {
		t.Fatalf("second lookup: %+v, %v", info, err)
	}
	if got := inner.count(); got != 1 {
		t.Fatalf("backing store hit %d times, want 1", got)
	}
}

func TestCachedIdentityStoreErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	cached, err := NewCachedIdentityStore(inner, 1<<12, 1<<20, 64, time.Minute)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	defer cached.Close()

	if _, err := cached.LookupUser(ctx, "nobody"); !errors.Is(err, sudocache.ErrUserNotFound) {
		t.Fatalf("got err %v, want ErrUserNotFound", err)
	}
	cached.Wait()
	if _, err := cached.LookupUser(ctx, "nobody"); !errors.Is(err, sudocache.ErrUserNotFound) {
		t.Fatalf("got err %v, want ErrUserNotFound", err)
	}
	if got := inner.count(); got != 2 {
		t.Fatalf("failed lookups must reach the backing store every time, got %d", got)
	}
}

func TestCachedIdentityStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	cached, err := NewCachedIdentityStore(inner, 1<<12, 1<<20, 64, time.Minute)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	defer cached.Close()

	if _, err := cached.LookupUser(ctx, "alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	cached.Wait()
	cached.Invalidate("alice")

	if _, err := cached.LookupUser(ctx, "alice"); err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if got := inner.count(); got != 2 {
		t.Fatalf("invalidate should force a fresh lookup, got %d hits", got)
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	cfg := sudocache.DefaultConfig()
	st, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	rule := sudocache.NewRule()
	rule.Set(sudocache.AttrName, "r")
	if err := st.Records.StoreRecord(ctx, "sudorules", "r", rule); err != nil {
		t.Fatalf("store record: %v", err)
	}
	out, err := st.Records.SearchRecords(ctx, "sudorules", "")
	if err != nil || len(out) != 1 {
		t.Fatalf("search: %v, %v", out, err)
	}
}

func TestOpenWrapsIdentityCache(t *testing.T) {
	cfg := sudocache.DefaultConfig()
	cfg.Store.RistrettoNumCounter = 1 << 12
	cfg.Store.RistrettoMaxCost = 1 << 20
	cfg.Store.RistrettoBuffer = 64

	st, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if _, ok := st.Identity.(*CachedIdentityStore); !ok {
		t.Fatalf("expected ristretto-cached identity store, got %T", st.Identity)
	}
}
