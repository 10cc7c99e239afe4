package deathchest

import "github.com/df-mc/dragonfly/server/block/cube"

// BlockKind is the coarse classification of a block used when looking for a
// place to put a chest.
type BlockKind uint8

const (
	// BlockSolid is any block a chest can stand on.
	BlockSolid BlockKind = iota
	// BlockAir is an empty block.
	BlockAir
	// BlockLiquid is water, lava or any other liquid.
	BlockLiquid
	// BlockReplaceable is a block such as tall grass that a chest may replace.
	BlockReplaceable
)

// BlockProbe gives read-only access to the blocks of one world.
type BlockProbe interface {
	// Block classifies the block at pos.
	Block(pos cube.Pos) BlockKind
	// Bounds returns the lowest and highest valid Y coordinate.
	Bounds() (minY, maxY int)
}

// SafeLocation resolves loc to a block where a chest can be placed. A Y below
// the world floor is clamped to one above the floor. If the block at that
// position is liquid or air, the column is searched downwards and then upwards
// for a free block standing on a solid one. When nothing is found, the clamped
// position is returned. A nil probe only canonicalizes loc.
func SafeLocation(probe BlockProbe, loc Location) LocationKey {
	key, _ := KeyOf(loc)
	if probe == nil {
		return key
	}
	minY, maxY := probe.Bounds()
	if key.Pos.Y() < minY {
		key.Pos[1] = minY + 1
	}
	if key.Pos.Y() > maxY {
		key.Pos[1] = maxY
	}

	switch probe.Block(key.Pos) {
	case BlockLiquid, BlockAir:
	default:
		return key
	}

	x, z := key.Pos.X(), key.Pos.Z()
	for y := key.Pos.Y(); y > minY; y-- {
		if standable(probe, cube.Pos{x, y, z}) {
			return LocationKey{World: key.World, Pos: cube.Pos{x, y, z}}
		}
	}
	for y := key.Pos.Y() + 1; y <= maxY; y++ {
		if standable(probe, cube.Pos{x, y, z}) {
			return LocationKey{World: key.World, Pos: cube.Pos{x, y, z}}
		}
	}
	return key
}

// standable reports whether pos is free and the block below it is solid.
func standable(probe BlockProbe, pos cube.Pos) bool {
	switch probe.Block(pos) {
	case BlockAir, BlockReplaceable:
	default:
		return false
	}
	return probe.Block(pos.Side(cube.FaceDown)) == BlockSolid
}
