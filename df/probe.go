package df

import (
	"github.com/df-mc/dragonfly/server/block"
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"

	"github.com/oriumgames/deathchest"
)

// txProbe reads blocks through a transaction that is already open, such as
// the one a player handler runs in.
type txProbe struct {
	tx *world.Tx
}

// Probe returns a BlockProbe reading through tx. It must only be used while
// tx is valid.
func Probe(tx *world.Tx) deathchest.BlockProbe {
	return txProbe{tx: tx}
}

func (p txProbe) Block(pos cube.Pos) deathchest.BlockKind {
	return classify(p.tx.Block(pos))
}

func (p txProbe) Bounds() (minY, maxY int) {
	r := p.tx.World().Range()
	return r.Min(), r.Max()
}

// classify maps a block to the kind used for finding a chest location.
func classify(b world.Block) deathchest.BlockKind {
	switch b.(type) {
	case nil, block.Air:
		return deathchest.BlockAir
	case world.Liquid:
		return deathchest.BlockLiquid
	}
	if r, ok := b.(block.Replaceable); ok && r.ReplaceableBy(block.NewChest()) {
		return deathchest.BlockReplaceable
	}
	return deathchest.BlockSolid
}
