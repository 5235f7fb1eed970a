package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/sudocache"
)

// RedisRecordStore keeps each subtree in a Redis hash of name ->
// attribute JSON (key: sudorules:{subtree}), with subtree flags in a
// sibling hash (key: sudoflags:{subtree}). Search evaluates the
// predicate in Go over the decoded records; results come back in name
// order since Redis hashes are unordered.
type RedisRecordStore struct {
	client  *redis.Client
	ruleFmt string
	flagFmt string
}

func NewRedisRecordStore(client *redis.Client) *RedisRecordStore {
	return &RedisRecordStore{client: client, ruleFmt: "sudorules:%s", flagFmt: "sudoflags:%s"}
}

func (r *RedisRecordStore) ruleKey(subtree string) string {
	return fmt.Sprintf(r.ruleFmt, subtree)
}

func (r *RedisRecordStore) flagKey(subtree string) string {
	return fmt.Sprintf(r.flagFmt, subtree)
}

func (r *RedisRecordStore) StoreRecord(ctx context.Context, subtree, name string, rule *sudocache.Rule) error {
	attrs, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", name, err)
	}
	return r.client.HSet(ctx, r.ruleKey(subtree), name, string(attrs)).Err()
}

func (r *RedisRecordStore) DeleteRecord(ctx context.Context, subtree, name string) error {
	return r.client.HDel(ctx, r.ruleKey(subtree), name).Err()
}

func (r *RedisRecordStore) SearchRecords(ctx context.Context, subtree, filter string) ([]*sudocache.Rule, error) {
	var match sudocache.Filter
	if filter != "" {
		var err error
		match, err = sudocache.ParseFilter(filter)
		if err != nil {
			return nil, fmt.Errorf("search records: %w", err)
		}
	}

	entries, err := r.client.HGetAll(ctx, r.ruleKey(subtree)).Result()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*sudocache.Rule, 0, len(entries))
	for _, name := range names {
		rule := sudocache.NewRule()
		if err := json.Unmarshal([]byte(entries[name]), rule); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", name, err)
		}
		if match == nil || match.Match(rule) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *RedisRecordStore) DeleteSubtree(ctx context.Context, subtree string) error {
	return r.client.Del(ctx, r.ruleKey(subtree), r.flagKey(subtree)).Err()
}

func (r *RedisRecordStore) GetFlag(ctx context.Context, subtree, attr string) (bool, error) {
	value, err := r.client.HGet(ctx, r.flagKey(subtree), attr).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

func (r *RedisRecordStore) SetFlag(ctx context.Context, subtree, attr string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return r.client.HSet(ctx, r.flagKey(subtree), attr, v).Err()
}
