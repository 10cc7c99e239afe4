package deathchest

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Item is an opaque item stack stored in a death chest. Dragonfly's item.Stack
// satisfies it.
type Item interface {
	Empty() bool
}

// Owner identifies the player a death chest belongs to.
type Owner struct {
	UUID uuid.UUID
	// Name is the display name at the time of death. It may be empty if the
	// name is unknown, in which case no hologram is shown.
	Name string
}

// Chest is the record of a materialized death chest.
type Chest struct {
	ID        ulid.ULID
	Key       LocationKey
	Owner     Owner
	CreatedAt time.Time
	// BreakTime is the number of seconds after CreatedAt the chest breaks, or
	// zero if it never breaks on its own.
	BreakTime int
	// Items is the number of stacks that were put into the chest.
	Items int
}

// Remaining returns the number of whole seconds left before the chest breaks,
// never less than zero.
func (c Chest) Remaining(now time.Time) int {
	if c.BreakTime <= 0 {
		return 0
	}
	left := c.CreatedAt.Add(time.Duration(c.BreakTime) * time.Second).Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// newChestID generates a new ULID for a chest.
func newChestID(now time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy)
}

// realItems returns the items that are neither nil nor empty.
func realItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it == nil || it.Empty() {
			continue
		}
		out = append(out, it)
	}
	return out
}
