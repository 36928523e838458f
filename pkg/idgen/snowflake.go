package idgen

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Snowflake ID generator
// ============================================================================
//
// Transaction and dispute numbers must be:
//  1. globally unique
//  2. roughly increasing, so the database index stays friendly
//  3. cheap to generate under concurrency
//  4. opaque about business volume
//
// 64-bit layout:
//
//	0 - 41 bits timestamp - 10 bits worker id - 12 bits sequence
//	|   |                   |                   |
//	|   |                   |                   +-- per-millisecond sequence (0-4095)
//	|   |                   +-- worker id (0-1023)
//	|   +-- millisecond timestamp (~69 years of range)
//	+-- sign bit, always 0
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake generates ids from the layout above.
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets up the default generator. Call once at startup.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be within 0-%d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{
			workerID:  workerID,
			timestamp: 0,
			sequence:  0,
		}
	})
}

// NextID returns the next id from the default generator.
func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

// Generate produces one id.
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		// same millisecond, bump the sequence
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

// GenerateTxnNo returns a ledger entry number.
// Format: TXN + yyyyMMddHHmmss + last 8 digits of a snowflake id,
// e.g. TXN2024011514305212345678.
func GenerateTxnNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("TXN%s%08d", timestamp, id%100000000)
}

// GenerateDisputeNo returns a dispute case number.
func GenerateDisputeNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("DSP%s%08d", timestamp, id%100000000)
}

// GenerateJoinCode returns a short human-shareable group invite token.
// Derived from a uuid so collisions are a non-issue at this scale; the
// unique index on the groups table is the final guard.
func GenerateJoinCode() string {
	u := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:8])
}

// GenerateVerificationCode returns a wallet unfreeze verification code.
func GenerateVerificationCode() string {
	u := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:6])
}
