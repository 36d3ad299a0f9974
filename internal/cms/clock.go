package cms

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// TimestampIDGenerator produces record ids of the form
// "<base36 unix millis>-<base36 random>". Ids sort roughly by creation time
// and are safe to use as storage keys.
type TimestampIDGenerator struct {
	Clock Clock
}

func (g TimestampIDGenerator) New() string {
	var now time.Time
	if g.Clock != nil {
		now = g.Clock.Now()
	} else {
		now = time.Now()
	}

	u := uuid.New()
	random := binary.BigEndian.Uint64(u[8:])

	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + strconv.FormatUint(random, 36)
}

// FormatTime renders an instant the way it is stored inside records.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses an instant stored by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NextTimestamp returns now, unless now does not come after prev, in which
// case it returns the smallest step after prev. updatedAt must strictly
// advance on every write even when the clock is coarse or stalled.
func NextTimestamp(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}
