package sudocache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRecordStore implements RecordStore in memory for tests and
// single-process use. Records keep their insertion order per subtree.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	subtrees map[string]*memorySubtree
}

type memorySubtree struct {
	order []string
	rules map[string]*Rule
	flags map[string]bool
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{subtrees: make(map[string]*memorySubtree)}
}

func (s *MemoryRecordStore) subtree(name string) *memorySubtree {
	st, ok := s.subtrees[name]
	if !ok {
		st = &memorySubtree{rules: make(map[string]*Rule), flags: make(map[string]bool)}
		s.subtrees[name] = st
	}
	return st
}

func (s *MemoryRecordStore) StoreRecord(ctx context.Context, subtree, name string, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.subtree(subtree)
	if _, ok := st.rules[name]; !ok {
		st.order = append(st.order, name)
	}
	st.rules[name] = rule.Clone()
	return nil
}

func (s *MemoryRecordStore) DeleteRecord(ctx context.Context, subtree, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subtrees[subtree]
	if !ok {
		return nil
	}
	if _, ok := st.rules[name]; !ok {
		return nil
	}
	delete(st.rules, name)
	for i, n := range st.order {
		if n == name {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryRecordStore) SearchRecords(ctx context.Context, subtree, filter string) ([]*Rule, error) {
	var match Filter
	if filter != "" {
		var err error
		match, err = ParseFilter(filter)
		if err != nil {
			return nil, fmt.Errorf("search records: %w", err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Rule, 0)
	st, ok := s.subtrees[subtree]
	if !ok {
		return result, nil
	}
	for _, name := range st.order {
		rule := st.rules[name]
		if match == nil || match.Match(rule) {
			result = append(result, rule.Clone())
		}
	}
	return result, nil
}

func (s *MemoryRecordStore) DeleteSubtree(ctx context.Context, subtree string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subtrees, subtree)
	return nil
}

func (s *MemoryRecordStore) GetFlag(ctx context.Context, subtree, attr string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subtrees[subtree]
	if !ok {
		return false, nil
	}
	return st.flags[attr], nil
}

func (s *MemoryRecordStore) SetFlag(ctx context.Context, subtree, attr string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subtree(subtree).flags[attr] = value
	return nil
}

// MemoryIdentityStore implements IdentityStore in memory.
type MemoryIdentityStore struct {
	mu    sync.RWMutex
	users map[string]*UserInfo
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{users: make(map[string]*UserInfo)}
}

func (s *MemoryIdentityStore) AddUser(username string, uid uint64, groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &UserInfo{UID: uid, Groups: append([]string(nil), groups...)}
}

func (s *MemoryIdentityStore) LookupUser(ctx context.Context, username string) (*UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", username, ErrUserNotFound)
	}
	dup := &UserInfo{UID: info.UID, Groups: append([]string(nil), info.Groups...)}
	return dup, nil
}
