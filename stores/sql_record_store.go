package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/sudocache"
)

// SQLRecordStore persists rule records in SQL (squealx). Records are
// stored as ordered attribute JSON keyed by (subtree, name); the
// search predicate is evaluated in Go on the decoded records, since
// the filter grammar belongs to the cache, not to SQL.
type SQLRecordStore struct {
	db *squealx.DB
}

func NewSQLRecordStore(db *squealx.DB) *SQLRecordStore {
	return &SQLRecordStore{db: db}
}

func (s *SQLRecordStore) StoreRecord(ctx context.Context, subtree, name string, rule *sudocache.Rule) error {
	attrs, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", name, err)
	}
	now := time.Now()
	q := `INSERT INTO rules(subtree, name, attrs_json, created_at, updated_at)
	      VALUES(:subtree, :name, :attrs_json, :now, :now)
	      ON CONFLICT(subtree, name) DO UPDATE SET attrs_json = :attrs_json, updated_at = :now`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"subtree":    subtree,
		"name":       name,
		"attrs_json": string(attrs),
		"now":        now,
	})
	return err
}

func (s *SQLRecordStore) DeleteRecord(ctx context.Context, subtree, name string) error {
	q := `DELETE FROM rules WHERE subtree = :subtree AND name = :name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"subtree": subtree, "name": name})
	return err
}

func (s *SQLRecordStore) SearchRecords(ctx context.Context, subtree, filter string) ([]*sudocache.Rule, error) {
	var match sudocache.Filter
	if filter != "" {
		var err error
		match, err = sudocache.ParseFilter(filter)
		if err != nil {
			return nil, fmt.Errorf("search records: %w", err)
		}
	}

	q := `SELECT attrs_json FROM rules WHERE subtree = :subtree ORDER BY rowid`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"subtree": subtree})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([]*sudocache.Rule, 0)
	for r.Next() {
		var attrs string
		if err := r.Scan(&attrs); err != nil {
			return nil, err
		}
		rule := sudocache.NewRule()
		if err := json.Unmarshal([]byte(attrs), rule); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		if match == nil || match.Match(rule) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *SQLRecordStore) DeleteSubtree(ctx context.Context, subtree string) error {
	if _, err := s.db.NamedExecContext(ctx, `DELETE FROM rules WHERE subtree = :subtree`,
		map[string]any{"subtree": subtree}); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM subtree_flags WHERE subtree = :subtree`,
		map[string]any{"subtree": subtree})
	return err
}

func (s *SQLRecordStore) GetFlag(ctx context.Context, subtree, attr string) (bool, error) {
	q := `SELECT value FROM subtree_flags WHERE subtree = :subtree AND attr = :attr`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"subtree": subtree, "attr": attr})
	if err != nil {
		return false, err
	}
	defer r.Close()
	if !r.Next() {
		// absent flag reads as false
		return false, nil
	}
	var value int
	if err := r.Scan(&value); err != nil {
		return false, err
	}
	return value != 0, nil
}

func (s *SQLRecordStore) SetFlag(ctx context.Context, subtree, attr string, value bool) error {
	q := `INSERT INTO subtree_flags(subtree, attr, value) VALUES(:subtree, :attr, :value)
	      ON CONFLICT(subtree, attr) DO UPDATE SET value = :value`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"subtree": subtree,
		"attr":    attr,
		"value":   boolToInt(value),
	})
	return err
}

// LastUpdated returns the most recent rule write in the subtree, or a
// zero time when the subtree is empty.
func (s *SQLRecordStore) LastUpdated(ctx context.Context, subtree string) (time.Time, error) {
	q := `SELECT MAX(updated_at) FROM rules WHERE subtree = :subtree`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"subtree": subtree})
	if err != nil {
		return time.Time{}, err
	}
	defer r.Close()
	if !r.Next() {
		return time.Time{}, nil
	}
	var raw any
	if err := r.Scan(&raw); err != nil {
		return time.Time{}, err
	}
	if raw == nil {
		return time.Time{}, nil
	}
	if t, ok := scanTime(raw); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unreadable updated_at value %v", raw)
}

// SQLIdentityStore resolves usernames from the users table.
type SQLIdentityStore struct {
	db *squealx.DB
}

func NewSQLIdentityStore(db *squealx.DB) *SQLIdentityStore {
	return &SQLIdentityStore{db: db}
}

func (s *SQLIdentityStore) LookupUser(ctx context.Context, username string) (*sudocache.UserInfo, error) {
	q := `SELECT uid, groups_json FROM users WHERE username = :username`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"username": username})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%s: %w", username, sudocache.ErrUserNotFound)
	}
	var uid uint64
	var groupsJSON string
	if err := r.Scan(&uid, &groupsJSON); err != nil {
		return nil, err
	}
	groups := make([]string, 0)
	if err := json.Unmarshal([]byte(groupsJSON), &groups); err != nil {
		return nil, fmt.Errorf("decode groups for %s: %w", username, err)
	}
	return &sudocache.UserInfo{UID: uid, Groups: groups}, nil
}

// SaveUser upserts a user entry, mainly for refresh tooling and tests.
func (s *SQLIdentityStore) SaveUser(ctx context.Context, username string, uid uint64, groups []string) error {
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	q := `INSERT INTO users(username, uid, groups_json) VALUES(:username, :uid, :groups_json)
	      ON CONFLICT(username) DO UPDATE SET uid = :uid, groups_json = :groups_json`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"username":    username,
		"uid":         uid,
		"groups_json": string(groupsJSON),
	})
	return err
}
