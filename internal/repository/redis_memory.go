package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAlertMemory keeps the alert memory in a Redis set. Archives are merged
// into <key>:archive:<YYYY-MM> and <key>:rotated holds the last rotated month.
// The same client also provides the instance lock.
type RedisAlertMemory struct {
	cli        redis.UniversalClient
	key        string
	rotatedKey string
	lockKey    string
	lockTTL    time.Duration
	token      string
}

func NewRedisAlertMemory(cli redis.UniversalClient, key string, lockTTL time.Duration) *RedisAlertMemory {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}
	return &RedisAlertMemory{
		cli:        cli,
		key:        key,
		rotatedKey: key + ":rotated",
		lockKey:    key + ":lock",
		lockTTL:    lockTTL,
		token:      uuid.NewString(),
	}
}

var (
	_ repository.AlertMemoryStore = (*RedisAlertMemory)(nil)
	_ repository.InstanceLock     = (*RedisAlertMemory)(nil)
)

func (s *RedisAlertMemory) Backend() string { return "redis" }

func (s *RedisAlertMemory) Load(ctx context.Context) (models.SeenDates, error) {
	members, err := s.cli.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", s.key, err)
	}
	return models.NewSeenDates(members...), nil
}

// Save replaces the set in one transaction.
func (s *RedisAlertMemory) Save(ctx context.Context, seen models.SeenDates) error {
	dates := seen.Sorted()
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(dates) > 0 {
			members := make([]interface{}, len(dates))
			for i, d := range dates {
				members[i] = d
			}
			pipe.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisAlertMemory) ArchiveKey(month string) string {
	return s.key + ":archive:" + month
}

// Archive unions the set into the month snapshot, deletes it and records the
// month in one transaction. A month already rotated is left alone.
func (s *RedisAlertMemory) Archive(ctx context.Context, month string) (models.MemoryArchive, error) {
	arch := models.MemoryArchive{Month: month}
	last, err := s.cli.Get(ctx, s.rotatedKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return arch, fmt.Errorf("get %s: %w", s.rotatedKey, err)
	}
	if last == month {
		arch.AlreadyRotated = true
		return arch, nil
	}

	members, err := s.cli.SMembers(ctx, s.key).Result()
	if err != nil {
		return arch, fmt.Errorf("smembers %s: %w", s.key, err)
	}
	loc := s.ArchiveKey(month)
	_, err = s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(members) > 0 {
			pipe.SUnionStore(ctx, loc, loc, s.key)
			pipe.Del(ctx, s.key)
		}
		pipe.Set(ctx, s.rotatedKey, month, 0)
		return nil
	})
	if err != nil {
		return arch, fmt.Errorf("archive %s: %w", s.key, err)
	}
	if len(members) > 0 {
		arch.Location = loc
		arch.Dates = models.NewSeenDates(members...).Sorted()
	}
	return arch, nil
}

// Acquire takes the single-instance lock with SET NX.
func (s *RedisAlertMemory) Acquire(ctx context.Context) (bool, error) {
	ok, err := s.cli.SetNX(ctx, s.lockKey, s.token, s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", s.lockKey, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Refresh extends the lock TTL; false means the lock expired or was taken over.
func (s *RedisAlertMemory) Refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, s.cli, []string{s.lockKey}, s.token, s.lockTTL.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("refresh %s: %w", s.lockKey, err)
	}
	return n == 1, nil
}

// Release drops the lock only when this instance still holds it.
func (s *RedisAlertMemory) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, s.cli, []string{s.lockKey}, s.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", s.lockKey, err)
	}
	return nil
}
