package sudocache

import "context"

// UserInfo is the identity store's view of a user: the numeric id and
// the names of the groups the user belongs to.
type UserInfo struct {
	UID    uint64   `json:"uid"`
	Groups []string `json:"groups"`
}

// RecordStore is the opaque keyed store the cache persists rules in.
// Records are keyed by name within a named subtree; searching takes a
// predicate in the filter grammar (empty selects everything). The
// store serializes concurrent callers itself.
type RecordStore interface {
	StoreRecord(ctx context.Context, subtree, name string, rule *Rule) error
	DeleteRecord(ctx context.Context, subtree, name string) error
	SearchRecords(ctx context.Context, subtree, filter string) ([]*Rule, error)
	DeleteSubtree(ctx context.Context, subtree string) error
	GetFlag(ctx context.Context, subtree, attr string) (bool, error)
	SetFlag(ctx context.Context, subtree, attr string, value bool) error
}

// IdentityStore resolves usernames. An unknown user yields an error
// wrapping ErrUserNotFound; a user without recorded group memberships
// yields an empty group list, not an error.
type IdentityStore interface {
	LookupUser(ctx context.Context, username string) (*UserInfo, error)
}
