package rbac

import (
	"context"
	"sort"
	"sync"
)

// Store persists which permissions are granted to which actor.
// SyncPermissions replaces the whole set atomically: concurrent readers observe
// either the previous complete set or the new one.
type Store interface {
	PermissionNames(ctx context.Context, actorID int64) ([]string, error)
	HasPermission(ctx context.Context, actorID int64, name string) (bool, error)
	SyncPermissions(ctx context.Context, actorID int64, names []string) error
}

// MemoryStore keeps assignments in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[int64]map[string]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[int64]map[string]struct{})}
}

// PermissionNames returns the actor's granted names in sorted order.
func (s *MemoryStore) PermissionNames(_ context.Context, actorID int64) ([]string, error) {
	s.mu.RLock()
	set := s.grants[actorID]
	s.mu.RUnlock()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasPermission reports whether name is granted to actorID.
func (s *MemoryStore) HasPermission(_ context.Context, actorID int64, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[actorID][name]
	return ok, nil
}

// SyncPermissions swaps in a freshly built set; published sets are never mutated.
func (s *MemoryStore) SyncPermissions(_ context.Context, actorID int64, names []string) error {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(set) == 0 {
		delete(s.grants, actorID)
		return nil
	}
	s.grants[actorID] = set
	return nil
}
