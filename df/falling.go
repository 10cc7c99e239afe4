package df

import (
	"github.com/df-mc/dragonfly/server/block"
	"github.com/df-mc/dragonfly/server/entity"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/oriumgames/deathchest"
)

// fallingChest is a falling block entity shaped like a chest.
type fallingChest struct {
	worlds *Worlds
	world  string
	handle *world.EntityHandle
}

// SpawnFalling spawns a falling chest at from, above target.
func (w *Worlds) SpawnFalling(target deathchest.LocationKey, from mgl64.Vec3) (deathchest.FallingEntity, error) {
	return exec(w, target.World, func(tx *world.Tx) (deathchest.FallingEntity, error) {
		h := entity.NewFallingBlock(world.EntitySpawnOpts{Position: from}, block.NewChest())
		tx.AddEntity(h)
		return &fallingChest{worlds: w, world: target.World, handle: h}, nil
	})
}

// State reads the entity in a world transaction. An entity that cannot be
// read is reported as invalid.
func (f *fallingChest) State() deathchest.FallState {
	st, err := exec(f.worlds, f.world, func(tx *world.Tx) (deathchest.FallState, error) {
		e, ok := f.handle.Entity(tx)
		if !ok {
			return deathchest.FallState{}, nil
		}
		st := deathchest.FallState{Valid: true, Position: e.Position()}
		if g, ok := e.(interface{ OnGround() bool }); ok {
			st.OnGround = g.OnGround()
		}
		return st, nil
	})
	if err != nil {
		// A world that cannot be reached has no entity to follow.
		return deathchest.FallState{}
	}
	return st
}

// Remove despawns the entity if it still exists.
func (f *fallingChest) Remove() error {
	_, err := exec(f.worlds, f.world, func(tx *world.Tx) (struct{}, error) {
		if e, ok := f.handle.Entity(tx); ok {
			tx.RemoveEntity(e)
		}
		return struct{}{}, nil
	})
	return err
}
