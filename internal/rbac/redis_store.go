package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "souq:rbac:actor"

// RedisStore keeps each actor's permissions in a Redis set.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(actorID int64) string {
	return fmt.Sprintf("%s:%d:permissions", redisKeyPrefix, actorID)
}

// PermissionNames returns the actor's granted names in sorted order.
func (s *RedisStore) PermissionNames(ctx context.Context, actorID int64) ([]string, error) {
	names, err := s.client.SMembers(ctx, redisKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("rbac: redis members: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// HasPermission reports whether name is granted to actorID.
func (s *RedisStore) HasPermission(ctx context.Context, actorID int64, name string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, redisKey(actorID), name).Result()
	if err != nil {
		return false, fmt.Errorf("rbac: redis is member: %w", err)
	}
	return ok, nil
}

// SyncPermissions replaces the set with DEL + SADD inside MULTI/EXEC.
func (s *RedisStore) SyncPermissions(ctx context.Context, actorID int64, names []string) error {
	key := redisKey(actorID)
	members := make([]any, 0, len(names))
	for _, name := range names {
		members = append(members, name)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rbac: redis sync: %w", err)
	}
	return nil
}
