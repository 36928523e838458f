package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Distributed locks
// ============================================================================
//
// The wallet row is the one shared mutable resource in the system: two
// concurrent withdrawals for the same user must serialize before either
// reads the balance. The optimistic version column on the wallet catches
// races that slip through, but the lock keeps contention (and retry churn)
// off the database.
//
// Redis locking recipe:
//
//	acquire: SET key value NX EX timeout
//	  NX guarantees mutual exclusion, EX guards against a crashed holder,
//	  value identifies the holder so release can't delete someone else's lock
//	release: Lua script checks value then deletes, atomically
//
// Lock keys:
//
//	wallet:lock:user:<userID>    one per wallet, so different users never wait
//	                             on each other
//	group:lock:<groupID>         serializes group membership/payout/dissolve;
//	                             member contribute calls take only their own
//	                             wallet lock plus an atomic pool increment,
//	                             so contributions from different members run
//	                             in parallel
//
// ============================================================================

var (
	ErrLockFailed = errors.New("failed to acquire lock")
)

// Handle is a held lock that can be released.
type Handle interface {
	Unlock(ctx context.Context) error
}

// Manager hands out named locks. The redis implementation is used in
// production; the in-process implementation backs tests and single-node
// deployments.
type Manager interface {
	// Acquire blocks (with bounded retries) until the named lock is held.
	Acquire(ctx context.Context, key, holder string) (Handle, error)
}

// WalletKey returns the lock key serializing all mutations of one wallet.
func WalletKey(userID int64) string {
	return fmt.Sprintf("wallet:lock:user:%d", userID)
}

// GroupKey returns the lock key serializing group lifecycle transitions.
func GroupKey(groupID int64) string {
	return fmt.Sprintf("group:lock:%d", groupID)
}

// ============================================================================
// Redis implementation
// ============================================================================

type RedisManager struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisManager(client *redis.Client) *RedisManager {
	return &RedisManager{
		client:        client,
		expiration:    30 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

func (m *RedisManager) Acquire(ctx context.Context, key, holder string) (Handle, error) {
	l := &DistributedLock{
		client:     m.client,
		key:        key,
		value:      holder,
		expiration: m.expiration,
	}
	if err := l.Lock(ctx, m.retryInterval, m.maxRetries); err != nil {
		return nil, err
	}
	return l, nil
}

// DistributedLock is one redis-backed lock instance.
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // holder identity, verified on release
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts a single non-blocking acquire.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock acquires with retries.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if (and only if) we still hold it. The check and
// delete run in one Lua script: if our lock expired and someone else
// acquired it, the value no longer matches and nothing is deleted.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}
