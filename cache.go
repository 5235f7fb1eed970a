package sudocache

import (
	"context"
	"fmt"
	"time"

	"github.com/oarkflow/sudocache/logger"
)

// Cache is the rule cache for one subtree of the record store. It
// holds no state of its own: every call is a short-lived transaction
// against the backing stores.
type Cache struct {
	records  RecordStore
	identity IdentityStore
	subtree  string
	logger   logger.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger installs a logger on the cache.
func WithLogger(l logger.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// WithSubtree stores rules under the given subtree instead of the
// default RuleSubtree.
func WithSubtree(subtree string) CacheOption {
	return func(c *Cache) { c.subtree = subtree }
}

func NewCache(records RecordStore, identity IdentityStore, opts ...CacheOption) *Cache {
	c := &Cache{
		records:  records,
		identity: identity,
		subtree:  RuleSubtree,
		logger:   logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subtree returns the cache subtree this Cache operates on.
func (c *Cache) Subtree() string { return c.subtree }

// SaveRule stamps the rule with the sudo rule object class and its
// name and upserts it under that name. A later save with the same
// name overwrites the previous record.
func (c *Cache) SaveRule(ctx context.Context, name string, rule *Rule) error {
	c.logger.Debug("adding sudo rule", "name", name, "subtree", c.subtree)

	rule.Set(AttrObjectClass, RuleObjectClass)
	rule.Set(AttrName, name)

	if err := c.records.StoreRecord(ctx, c.subtree, name, rule); err != nil {
		return fmt.Errorf("store rule %s: %w", name, err)
	}
	return nil
}

// PurgeAll deletes the whole rule subtree, rules and flags included.
func (c *Cache) PurgeAll(ctx context.Context) error {
	c.logger.Debug("purging all sudo rules", "subtree", c.subtree)

	if err := c.records.DeleteSubtree(ctx, c.subtree); err != nil {
		return fmt.Errorf("delete subtree %s: %w", c.subtree, err)
	}
	return nil
}

// PurgeMatching deletes the rules matched by the filter, one by one
// by name. An empty filter purges everything; matching nothing is
// success with zero deletions. A matched record without a name is
// skipped so one malformed record cannot block the rest.
func (c *Cache) PurgeMatching(ctx context.Context, filter string) error {
	if filter == "" {
		return c.PurgeAll(ctx)
	}

	matches, err := c.records.SearchRecords(ctx, c.subtree, filter)
	if err != nil {
		return fmt.Errorf("search rules: %w", err)
	}
	if len(matches) == 0 {
		c.logger.Debug("no rules matched", "subtree", c.subtree, "filter", filter)
		return nil
	}

	for _, rule := range matches {
		name := rule.Name()
		if name == "" {
			c.logger.Warn("matched a rule without a name, skipping", "subtree", c.subtree)
			continue
		}
		if err := c.records.DeleteRecord(ctx, c.subtree, name); err != nil {
			return fmt.Errorf("delete rule %s: %w", name, err)
		}
	}
	return nil
}

// GetRefreshed reports whether a full refresh has ever completed for
// this subtree. An untouched subtree reads as false.
func (c *Cache) GetRefreshed(ctx context.Context) (bool, error) {
	refreshed, err := c.records.GetFlag(ctx, c.subtree, AttrRefreshed)
	if err != nil {
		return false, fmt.Errorf("get refreshed flag: %w", err)
	}
	return refreshed, nil
}

// SetRefreshed records whether a full refresh has completed.
func (c *Cache) SetRefreshed(ctx context.Context, refreshed bool) error {
	if err := c.records.SetFlag(ctx, c.subtree, AttrRefreshed, refreshed); err != nil {
		return fmt.Errorf("set refreshed flag: %w", err)
	}
	return nil
}

// UserInfo resolves a username into its uid and group names through
// the identity store. A user without a recorded uid is an error; a
// user without groups gets an empty list.
func (c *Cache) UserInfo(ctx context.Context, username string) (uint64, []string, error) {
	info, err := c.identity.LookupUser(ctx, username)
	if err != nil {
		c.logger.Error("error looking up user", "username", username, "error", err.Error())
		return 0, nil, fmt.Errorf("look up user %s: %w", username, err)
	}
	if info.UID == 0 {
		c.logger.Error("a user with no uid", "username", username)
		return 0, nil, fmt.Errorf("user %s: %w", username, ErrMissingUID)
	}

	groups := make([]string, len(info.Groups))
	copy(groups, info.Groups)
	return info.UID, groups, nil
}

// ActiveRules is the query-time path: it builds the identity filter,
// searches the subtree with it and keeps only the rules valid at the
// given instant (zero means now).
func (c *Cache) ActiveRules(ctx context.Context, id Identity, now time.Time) ([]*Rule, error) {
	filter := BuildIdentityFilter(id)

	rules, err := c.records.SearchRecords(ctx, c.subtree, filter.String())
	if err != nil {
		return nil, fmt.Errorf("search rules: %w", err)
	}
	return FilterRulesByTime(rules, now)
}
