package utils

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/venturelab/accelerator_backend/config"
)

var (
	entityLockMu sync.Mutex
	entityLocks  = make(map[string]*sync.Mutex)
)

// LockEntity serializes state transitions on a single entity. The in-process
// mutex is the real guard; the Redis lock is a best-effort optimization for
// multi-worker deployments (reliability must not depend on Redis — the store's
// precondition re-check is what keeps the state machine safe).
//
// The returned release function must be called before any slow external call:
// oracle calls are never made while holding an entity lock.
func LockEntity(ctx context.Context, key string) (release func()) {
	entityLockMu.Lock()
	mu, ok := entityLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		entityLocks[key] = mu
	}
	entityLockMu.Unlock()

	mu.Lock()

	var rlock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		if l, err := locker.Obtain(ctx, "entitylock:"+key, 10*time.Second, nil); err == nil {
			rlock = l
		}
	}

	return func() {
		if rlock != nil {
			_ = rlock.Release(context.Background())
		}
		mu.Unlock()
	}
}
