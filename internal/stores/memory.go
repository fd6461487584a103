package stores

import (
	"context"
	"crypto/subtle"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryShardCount = 16

type memoryEntry struct {
	rec     *CodeRecord
	purgeAt int64
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// MemoryStore is an in-process [CodeStore]. Keys are spread over fixed
// shards so operations on unrelated identities do not contend on one lock;
// within a shard every operation runs under the shard mutex, which gives the
// same per-key serialization the Redis scripts provide.
//
// MemoryStore keeps expired records until their retention deadline; run
// [MemoryStore.SweepExpired] periodically (the engine sweeper does) or the
// map grows with every issued code.
type MemoryStore struct {
	shards [memoryShardCount]memoryShard
}

// NewMemoryStore creates an empty in-process code store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*memoryEntry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%memoryShardCount]
}

func memoryKey(identity, purpose string) string {
	return purpose + "\x00" + identity
}

func (s *MemoryStore) Put(_ context.Context, identity, purpose string, rec *CodeRecord, retention time.Duration) error {
	key := memoryKey(identity, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.entries[key] = &memoryEntry{
		rec:     cloneCodeRecord(rec),
		purgeAt: rec.ExpiresAt + int64(retention/time.Second),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity, purpose string) (*CodeRecord, error) {
	key := memoryKey(identity, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if time.Now().Unix() > entry.purgeAt {
		delete(shard.entries, key)
		return nil, ErrCodeNotFound
	}
	return cloneCodeRecord(entry.rec), nil
}

func (s *MemoryStore) Verify(
	_ context.Context,
	identity, purpose string,
	providedHash [32]byte,
	maxAttempts int,
	lockFor time.Duration,
	now time.Time,
) (*CodeRecord, error) {
	key := memoryKey(identity, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return nil, ErrCodeNotFound
	}
	rec := entry.rec

	nowUnix := now.Unix()
	if nowUnix > entry.purgeAt {
		delete(shard.entries, key)
		return nil, ErrCodeNotFound
	}
	if nowUnix > rec.ExpiresAt {
		return nil, ErrCodeExpired
	}
	if rec.LockedUntil > nowUnix {
		return nil, &LockedError{Until: time.Unix(rec.LockedUntil, 0)}
	}

	if subtle.ConstantTimeCompare(rec.CodeHash[:], providedHash[:]) == 1 {
		delete(shard.entries, key)
		return cloneCodeRecord(rec), nil
	}

	rec.Attempts++
	if int(rec.Attempts) >= maxAttempts {
		rec.LockedUntil = nowUnix + int64(lockFor/time.Second)
		return nil, &LockedError{Until: time.Unix(rec.LockedUntil, 0)}
	}
	return nil, &MismatchError{AttemptsLeft: maxAttempts - int(rec.Attempts)}
}

func (s *MemoryStore) Delete(_ context.Context, identity, purpose string, id uuid.UUID) error {
	key := memoryKey(identity, purpose)
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if ok && entry.rec.ID == id {
		delete(shard.entries, key)
	}
	return nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	nowUnix := now.Unix()
	removed := 0

	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, entry := range shard.entries {
			if nowUnix > entry.purgeAt {
				delete(shard.entries, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed, nil
}
