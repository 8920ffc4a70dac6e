// Package dedup keeps every (event, deployment, token) combination to at most
// one decision, across any number of workers.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// Acquisition is the result of TryAcquire.
type Acquisition struct {
	Acquired    bool
	AlreadyHeld bool
}

// LockKey is the distributed lock key for a combination.
func LockKey(eventID, deploymentID, token string) string {
	return fmt.Sprintf("signal:%s:%s:%s", eventID, deploymentID, domain.NormalizeToken(token))
}

// Guard is the distributed processing lock. It is safe for concurrent use.
type Guard struct {
	locks domain.LockManager
	ttl   time.Duration

	mu      sync.Mutex
	unlocks map[string]func()
}

// NewGuard creates a Guard whose locks expire after ttl. ttl must cover a
// full oracle round trip so a live worker never loses its lock.
func NewGuard(locks domain.LockManager, ttl time.Duration) *Guard {
	return &Guard{
		locks:   locks,
		ttl:     ttl,
		unlocks: make(map[string]func()),
	}
}

// TryAcquire attempts to take the lock for key. A lock held elsewhere is not
// an error: the job belongs to someone else.
func (g *Guard) TryAcquire(ctx context.Context, key string) (Acquisition, error) {
	unlock, err := g.locks.Acquire(ctx, key, g.ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return Acquisition{AlreadyHeld: true}, nil
		}
		return Acquisition{}, fmt.Errorf("dedup: acquire %s: %w", key, err)
	}

	g.mu.Lock()
	g.unlocks[key] = unlock
	g.mu.Unlock()
	return Acquisition{Acquired: true}, nil
}

// Release frees key if this process holds it. Releasing an unheld key is a
// no-op.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	unlock, ok := g.unlocks[key]
	delete(g.unlocks, key)
	g.mu.Unlock()

	if ok {
		unlock()
	}
}
