package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// verifyCodeLua atomically performs the verify step against one record.
//
// KEYS[1] = record key
// ARGV[1] = current unix timestamp (seconds)
// ARGV[2] = provided hash (32 raw bytes)
// ARGV[3] = max attempts
// ARGV[4] = lock duration (seconds)
//
// Replies with the raw record bytes on a match (after deleting the key), or
// an error reply: "not_found", "corrupt", "expired", "locked:<unix>",
// "locked_now:<unix>", "mismatch:<attempts_left>".
//
// Field offsets are 1-based mirrors of the layout documented in codes.go.
var verifyCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
if string.len(data) ~= 75 or string.byte(data, 1) ~= 1 then
  return {err='corrupt'}
end

local function be(s, off, n)
  local v = 0
  for i = 0, n - 1 do
    v = v * 256 + string.byte(s, off + i)
  end
  return v
end

local function tobe(v, n)
  local out = ''
  for i = n - 1, 0, -1 do
    out = out .. string.char(math.floor(v / 256 ^ i) % 256)
  end
  return out
end

local now = tonumber(ARGV[1])
local providedHash = ARGV[2]
local maxAttempts = tonumber(ARGV[3])
local lockFor = tonumber(ARGV[4])

local attempts = be(data, 2, 2)
local expiresAt = be(data, 12, 8)
local lockedUntil = be(data, 20, 8)

if now > expiresAt then
  return {err='expired'}
end
if lockedUntil > now then
  return {err='locked:' .. tostring(lockedUntil)}
end

if string.sub(data, 44, 75) == providedHash then
  redis.call('DEL', KEYS[1])
  return data
end

attempts = attempts + 1
local newLocked = lockedUntil
if attempts >= maxAttempts then
  newLocked = now + lockFor
end

local updated = string.sub(data, 1, 1) .. tobe(attempts, 2) .. string.sub(data, 4, 19) .. tobe(newLocked, 8) .. string.sub(data, 28, 75)
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], updated, 'PX', ttl)
else
  redis.call('SET', KEYS[1], updated)
end

if newLocked > lockedUntil then
  return {err='locked_now:' .. tostring(newLocked)}
end
return {err='mismatch:' .. tostring(maxAttempts - attempts)}
`)

// deleteCodeIfLua deletes the record only while it still carries the given
// record ID (ARGV[1], 16 raw bytes).
var deleteCodeIfLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return 0
end
if string.len(data) == 75 and string.sub(data, 28, 43) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore is a [CodeStore] backed by a single logical Redis database.
// Per-key atomicity comes from Redis single-threaded script execution, which
// makes it linearizable across processes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed code store under the given key prefix.
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ogc"
	}
	return &RedisStore{redis: redisClient, prefix: prefix}
}

func (s *RedisStore) key(identity, purpose string) string {
	return s.prefix + ":" + purpose + ":" + identity
}

func (s *RedisStore) Put(ctx context.Context, identity, purpose string, rec *CodeRecord, retention time.Duration) error {
	encoded, err := encodeCodeRecord(rec)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(rec.ExpiresAt, 0)) + retention
	if ttl <= 0 {
		return fmt.Errorf("%w: record already past retention", errRecordCorrupt)
	}

	if err := s.redis.Set(ctx, s.key(identity, purpose), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identity, purpose string) (*CodeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identity, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeCodeRecord(data)
}

func (s *RedisStore) Verify(
	ctx context.Context,
	identity, purpose string,
	providedHash [32]byte,
	maxAttempts int,
	lockFor time.Duration,
	now time.Time,
) (*CodeRecord, error) {
	res, err := verifyCodeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(identity, purpose)},
		now.Unix(),
		string(providedHash[:]),
		maxAttempts,
		int64(lockFor/time.Second),
	).Result()
	if err != nil {
		return nil, mapVerifyScriptError(err)
	}

	data, ok := res.(string)
	if !ok {
		return nil, errRecordCorrupt
	}
	return decodeCodeRecord([]byte(data))
}

func (s *RedisStore) Delete(ctx context.Context, identity, purpose string, id uuid.UUID) error {
	err := deleteCodeIfLua.Run(
		ctx,
		s.redis,
		[]string{s.key(identity, purpose)},
		string(id[:]),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SweepExpired is a no-op: Put sets the key TTL to expiry plus retention, so
// Redis collects expired records itself.
func (s *RedisStore) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func mapVerifyScriptError(err error) error {
	msg := err.Error()
	switch {
	case msg == "not_found":
		return ErrCodeNotFound
	case msg == "expired":
		return ErrCodeExpired
	case msg == "corrupt":
		return errRecordCorrupt
	case strings.HasPrefix(msg, "locked_now:"):
		return lockedErrorFromScript(strings.TrimPrefix(msg, "locked_now:"))
	case strings.HasPrefix(msg, "locked:"):
		return lockedErrorFromScript(strings.TrimPrefix(msg, "locked:"))
	case strings.HasPrefix(msg, "mismatch:"):
		left, convErr := strconv.Atoi(strings.TrimPrefix(msg, "mismatch:"))
		if convErr != nil {
			return errRecordCorrupt
		}
		return &MismatchError{AttemptsLeft: left}
	case errors.Is(err, redis.Nil):
		return ErrCodeNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func lockedErrorFromScript(raw string) error {
	until, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errRecordCorrupt
	}
	return &LockedError{Until: time.Unix(until, 0)}
}
