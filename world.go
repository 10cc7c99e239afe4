package deathchest

import "github.com/go-gl/mathgl/mgl64"

// World is the part of the host world a death chest touches. Implementations
// must be safe for use from the scheduler's tick goroutine.
type World interface {
	// PlaceContainer puts a chest at key and fills it with items. Items that
	// did not fit are returned.
	PlaceContainer(key LocationKey, items []Item) (overflow []Item, err error)
	// IsContainer reports whether the block at key is still a chest.
	IsContainer(key LocationKey) (bool, error)
	// TakeContents removes and returns everything stored in the chest at key.
	TakeContents(key LocationKey) ([]Item, error)
	// RemoveBlock replaces the block at key with air.
	RemoveBlock(key LocationKey) error
	// SpawnFalling spawns a falling chest at from that is expected to land on target.
	SpawnFalling(target LocationKey, from mgl64.Vec3) (FallingEntity, error)
	// DropItems drops items at key. velocityScale scales the usual random
	// velocity of dropped items.
	DropItems(key LocationKey, items []Item, velocityScale float64) error
	// PlayEffect shows the destruction particles of a chest at key.
	PlayEffect(key LocationKey) error
	// PlaySound plays the chest break sound at key.
	PlaySound(key LocationKey, caps Capabilities) error
}

// FallState is a snapshot of a falling chest entity.
type FallState struct {
	// Valid is false once the entity was removed from the world.
	Valid    bool
	OnGround bool
	Position mgl64.Vec3
}

// FallingEntity is a chest entity falling towards its target.
type FallingEntity interface {
	State() FallState
	Remove() error
}

// Broadcaster sends a message to every online player.
type Broadcaster interface {
	Broadcast(msg string)
}
