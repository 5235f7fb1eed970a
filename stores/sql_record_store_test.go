package stores

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/sudocache"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLRecordStoreUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewSQLRecordStore(newTestDB(t))

	rule := sudocache.NewRule()
	rule.Set(sudocache.AttrObjectClass, sudocache.RuleObjectClass)
	rule.Set(sudocache.AttrName, "rule1")
	rule.Set(sudocache.AttrUser, "alice")
	if err := store.StoreRecord(ctx, "sudorules", "rule1", rule); err != nil {
		t.Fatalf("store record: %v", err)
	}

	// overwrite under the same name
	rule.Set(sudocache.AttrUser, "bob")
	if err := store.StoreRecord(ctx, "sudorules", "rule1", rule); err != nil {
		t.Fatalf("store record again: %v", err)
	}

	all, err := store.SearchRecords(ctx, "sudorules", "")
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after upsert, got %d", len(all))
	}
	if got := all[0].GetFirst(sudocache.AttrUser); got != "bob" {
		t.Fatalf("sudoUser=%q, want bob", got)
	}

	matched, err := store.SearchRecords(ctx, "sudorules", "(sudoUser=bob)")
	if err != nil {
		t.Fatalf("search filtered: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected filtered match, got %d", len(matched))
	}

	none, err := store.SearchRecords(ctx, "sudorules", "(sudoUser=nobody)")
	if err != nil {
		t.Fatalf("search no match: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestSQLRecordStoreSubtreeIsolationAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSQLRecordStore(newTestDB(t))

	rule := sudocache.NewRule()
	rule.Set(sudocache.AttrName, "r")
	if err := store.StoreRecord(ctx, "one", "r", rule); err != nil {
		t.Fatalf("store record: %v", err)
	}
	if err := store.StoreRecord(ctx, "two", "r", rule); err != nil {
		t.Fatalf("store record: %v", err)
	}
	if err := store.SetFlag(ctx, "one", sudocache.AttrRefreshed, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	if err := store.DeleteSubtree(ctx, "one"); err != nil {
		t.Fatalf("delete subtree: %v", err)
	}
	left, err := store.SearchRecords(ctx, "one", "")
	if err != nil || len(left) != 0 {
		t.Fatalf("subtree one should be empty: %v, %v", left, err)
	}
	flag, err := store.GetFlag(ctx, "one", sudocache.AttrRefreshed)
	if err != nil || flag {
		t.Fatalf("flag should be gone with its subtree: %v, %v", flag, err)
	}
	other, err := store.SearchRecords(ctx, "two", "")
	if err != nil || len(other) != 1 {
		t.Fatalf("subtree two must be untouched: %v, %v", other, err)
	}
}

func TestSQLRecordStoreFlags(t *testing.T) {
	ctx := context.Background()
	store := NewSQLRecordStore(newTestDB(t))

	flag, err := store.GetFlag(ctx, "sudorules", sudocache.AttrRefreshed)
	if err != nil {
		t.Fatalf("get absent flag: %v", err)
	}
	if flag {
		t.Fatalf("absent flag must read false")
	}

	if err := store.SetFlag(ctx, "sudorules", sudocache.AttrRefreshed, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	flag, err = store.GetFlag(ctx, "sudorules", sudocache.AttrRefreshed)
	if err != nil || !flag {
		t.Fatalf("expected true after set: %v, %v", flag, err)
	}

	if err := store.SetFlag(ctx, "sudorules", sudocache.AttrRefreshed, false); err != nil {
		t.Fatalf("overwrite flag: %v", err)
	}
	flag, err = store.GetFlag(ctx, "sudorules", sudocache.AttrRefreshed)
	if err != nil || flag {
		t.Fatalf("expected false after overwrite: %v, %v", flag, err)
	}
}

func TestSQLRecordStoreLastUpdated(t *testing.T) {
	ctx := context.Background()
	store := NewSQLRecordStore(newTestDB(t))

	last, err := store.LastUpdated(ctx, "sudorules")
	if err != nil {
		t.Fatalf("last updated on empty subtree: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("empty subtree should report zero time, got %v", last)
	}

	rule := sudocache.NewRule()
	rule.Set(sudocache.AttrName, "r")
	if err := store.StoreRecord(ctx, "sudorules", "r", rule); err != nil {
		t.Fatalf("store record: %v", err)
	}
	last, err = store.LastUpdated(ctx, "sudorules")
	if err != nil {
		t.Fatalf("last updated: %v", err)
	}
	if last.IsZero() || time.Since(last) > time.Hour {
		t.Fatalf("unexpected last updated %v", last)
	}
}

func TestSQLIdentityStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLIdentityStore(db)

	if err := store.SaveUser(ctx, "alice", 1000, []string{"wheel", "admins"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	info, err := store.LookupUser(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if info.UID != 1000 || len(info.Groups) != 2 || info.Groups[0] != "wheel" {
		t.Fatalf("unexpected user info %+v", info)
	}

	if _, err := store.LookupUser(ctx, "nobody"); !errors.Is(err, sudocache.ErrUserNotFound) {
		t.Fatalf("got err %v, want ErrUserNotFound", err)
	}

	// cache end to end on the SQL backend
	cache := sudocache.NewCache(NewSQLRecordStore(db), store)
	uid, groups, err := cache.UserInfo(ctx, "alice")
	if err != nil || uid != 1000 || len(groups) != 2 {
		t.Fatalf("cache user info: %d %v %v", uid, groups, err)
	}
}
