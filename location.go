package deathchest

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Location is a raw position in a named world, usually where a player died.
type Location struct {
	World string
	Pos   mgl64.Vec3
}

// LocationKey is the canonical block-level identity of a death chest. Two
// locations refer to the same chest if and only if their keys are equal.
type LocationKey struct {
	World string
	Pos   cube.Pos
}

// KeyOf canonicalizes a location by flooring each coordinate. It returns false
// if the location has no world.
func KeyOf(loc Location) (LocationKey, bool) {
	if loc.World == "" {
		return LocationKey{}, false
	}
	return LocationKey{World: loc.World, Pos: cube.PosFromVec3(loc.Pos)}, true
}

// Centre returns the centre of the bottom face of the block at the key.
func (k LocationKey) Centre() mgl64.Vec3 {
	return k.Pos.Vec3Middle().Sub(mgl64.Vec3{0, 0.5, 0})
}

// Location converts the key back into a location at the block's corner.
func (k LocationKey) Location() Location {
	return Location{World: k.World, Pos: k.Pos.Vec3()}
}

// Below returns the key of the block directly under k.
func (k LocationKey) Below() LocationKey {
	return LocationKey{World: k.World, Pos: k.Pos.Side(cube.FaceDown)}
}

// String formats the key as world(x, y, z).
func (k LocationKey) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", k.World, k.Pos.X(), k.Pos.Y(), k.Pos.Z())
}
