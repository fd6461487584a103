package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const codeRecordVersionV1 = 1

// Encoded layout, offsets in bytes:
//
//	0      version
//	1..2   attempts (big-endian uint16)
//	3..10  issuedAt (big-endian int64, unix seconds)
//	11..18 expiresAt
//	19..26 lockedUntil (0 = never locked)
//	27..42 record ID (16 raw uuid bytes)
//	43..74 code hash (sha256)
//
// The Lua verify script in redis.go decodes these offsets directly; keep the
// two in sync when changing the layout.
const encodedRecordSize = 75

var (
	// ErrCodeNotFound indicates no record exists for the key, or it was
	// already consumed or collected.
	ErrCodeNotFound = errors.New("code record not found")
	// ErrCodeExpired indicates the record exists but its expiry has passed.
	ErrCodeExpired = errors.New("code record expired")
	// ErrCodeMismatch indicates the provided digest did not match.
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrCodeLocked indicates the key is locked out after repeated failures.
	ErrCodeLocked = errors.New("code verification locked")
	// ErrStoreUnavailable indicates the backend could not be reached.
	ErrStoreUnavailable = errors.New("code store unavailable")

	errRecordCorrupt = errors.New("code record corrupt")
)

// MismatchError wraps [ErrCodeMismatch] with the number of attempts left
// before the key locks.
type MismatchError struct {
	AttemptsLeft int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("code mismatch, %d attempts left", e.AttemptsLeft)
}

func (e *MismatchError) Unwrap() error { return ErrCodeMismatch }

// LockedError wraps [ErrCodeLocked] with the moment the lock clears.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("code verification locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrCodeLocked }

// CodeRecord is one outstanding verification challenge for an
// (identity, purpose) key.
type CodeRecord struct {
	ID          uuid.UUID
	CodeHash    [32]byte
	IssuedAt    int64
	ExpiresAt   int64
	LockedUntil int64
	Attempts    uint16
}

// CodeStore holds at most one record per (identity, purpose) key.
//
// Implementations must make Put, Verify, and Delete atomic per key: a Put
// replaces any prior record wholesale (discarding its attempts and lock), and
// Verify applies expiry, lockout, attempt accounting, and consume-on-match as
// one indivisible step.
type CodeStore interface {
	// Put replaces the record for the key. retention is how long past
	// rec.ExpiresAt the record stays resident before collection.
	Put(ctx context.Context, identity, purpose string, rec *CodeRecord, retention time.Duration) error

	// Get returns the current record, expired or not. ErrCodeNotFound when
	// absent or collected.
	Get(ctx context.Context, identity, purpose string) (*CodeRecord, error)

	// Verify matches providedHash against the stored digest and advances the
	// record state. On match the record is deleted (consumed) and returned.
	// Otherwise one of ErrCodeNotFound, ErrCodeExpired, *LockedError, or
	// *MismatchError is returned; a mismatch that reaches maxAttempts sets
	// the lock and reports *LockedError instead.
	Verify(ctx context.Context, identity, purpose string, providedHash [32]byte, maxAttempts int, lockFor time.Duration, now time.Time) (*CodeRecord, error)

	// Delete removes the record only while it still carries id. Used to roll
	// back an issue whose delivery failed without destroying a record that
	// has since superseded it. Idempotent.
	Delete(ctx context.Context, identity, purpose string, id uuid.UUID) error

	// SweepExpired removes records past their retention deadline and returns
	// how many were removed. Backends that collect via TTL may no-op.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func encodeCodeRecord(rec *CodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(encodedRecordSize)

	buf.WriteByte(codeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.LockedUntil); err != nil {
		return nil, err
	}
	buf.Write(rec.ID[:])
	buf.Write(rec.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	if len(data) != encodedRecordSize {
		return nil, errRecordCorrupt
	}

	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errRecordCorrupt
	}

	rec := &CodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.LockedUntil); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, rec.ID[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, rec.CodeHash[:]); err != nil {
		return nil, err
	}

	return rec, nil
}

func cloneCodeRecord(rec *CodeRecord) *CodeRecord {
	out := *rec
	return &out
}
