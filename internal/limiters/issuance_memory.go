package limiters

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneAfter is how long an idle key's bucket survives before pruning.
// A full bucket carries no throttling state, so dropping it is harmless.
const pruneAfter = 2 * time.Hour

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryIssuanceLimiter approximates the fixed window with one token bucket
// per (identity, purpose) key: refill rate Window/MaxPerWindow, burst
// MaxPerWindow. Suits single-process deployments paired with [stores.MemoryStore].
type MemoryIssuanceLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	config  IssuanceConfig

	lastPrune time.Time
}

// NewMemoryIssuanceLimiter creates an in-process issuance limiter.
func NewMemoryIssuanceLimiter(cfg IssuanceConfig) *MemoryIssuanceLimiter {
	return &MemoryIssuanceLimiter{
		buckets:   make(map[string]*bucketEntry),
		config:    cfg,
		lastPrune: time.Now(),
	}
}

func (l *MemoryIssuanceLimiter) Allow(_ context.Context, identity, purpose string) error {
	if l == nil || l.config.MaxPerWindow <= 0 {
		return nil
	}

	key := purpose + "\x00" + identity
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{
			limiter: rate.NewLimiter(
				rate.Every(l.config.Window/time.Duration(l.config.MaxPerWindow)),
				l.config.MaxPerWindow,
			),
		}
		l.buckets[key] = entry
	}
	entry.lastSeen = now

	if !entry.limiter.Allow() {
		return ErrIssuanceLimited
	}
	return nil
}

func (l *MemoryIssuanceLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < pruneAfter {
		return
	}
	for key, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > pruneAfter {
			delete(l.buckets, key)
		}
	}
	l.lastPrune = now
}
