// Package df connects death chests to a Dragonfly server: it implements the
// world, hologram and broadcast interfaces on top of Dragonfly worlds and
// provides the player handler that creates chests when players die.
package df

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/block"
	"github.com/df-mc/dragonfly/server/entity"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/dragonfly/server/world/particle"
	"github.com/df-mc/dragonfly/server/world/sound"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/oriumgames/deathchest"
)

// ExecTimeout is the longest a call waits for a world transaction.
const ExecTimeout = 2 * time.Second

// ErrExecTimeout is returned when a world transaction did not start within
// ExecTimeout. The transaction is dropped and has no effect.
var ErrExecTimeout = errors.New("world transaction timed out")

// Worlds implements deathchest.World and deathchest.HologramBackend over a set
// of Dragonfly worlds, looked up by name. Every call runs in its own world
// transaction.
type Worlds struct {
	log *slog.Logger

	mu     sync.RWMutex
	worlds map[string]*world.World
}

// Compile-time checks.
var (
	_ deathchest.World           = (*Worlds)(nil)
	_ deathchest.HologramBackend = (*Worlds)(nil)
)

// NewWorlds creates a Worlds holding ws.
func NewWorlds(log *slog.Logger, ws ...*world.World) *Worlds {
	if log == nil {
		log = slog.Default()
	}
	w := &Worlds{log: log, worlds: make(map[string]*world.World, len(ws))}
	for _, wld := range ws {
		w.Add(wld)
	}
	return w
}

// Add makes wld available under its name.
func (w *Worlds) Add(wld *world.World) {
	if wld == nil {
		return
	}
	w.mu.Lock()
	w.worlds[wld.Name()] = wld
	w.mu.Unlock()
}

// Remove forgets the world with the given name.
func (w *Worlds) Remove(name string) {
	w.mu.Lock()
	delete(w.worlds, name)
	w.mu.Unlock()
}

func (w *Worlds) world(name string) (*world.World, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	wld, ok := w.worlds[name]
	return wld, ok
}

// exec runs fn in a transaction of the named world and waits for its result
// for at most ExecTimeout.
func exec[T any](w *Worlds, name string, fn func(tx *world.Tx) (T, error)) (T, error) {
	wld, ok := w.world(name)
	if !ok {
		var zero T
		return zero, oops.With("world", name).Wrap(deathchest.ErrWorldUnavailable)
	}
	v, err := await(func(f world.ExecFunc) { wld.Exec(f) }, ExecTimeout, fn)
	if errors.Is(err, ErrExecTimeout) {
		return v, oops.With("world", name).Wrap(err)
	}
	return v, err
}

// execResult is the outcome of a transaction run by await.
type execResult[T any] struct {
	v   T
	err error
}

// await queues fn through run and waits for its result for at most timeout.
// The transaction and the waiter race for a single claim: once the waiter has
// given up, fn is never run, and once fn has started the waiter reports its
// result. A timeout means fn never ran.
func await[T any](run func(world.ExecFunc), timeout time.Duration, fn func(tx *world.Tx) (T, error)) (T, error) {
	var claimed atomic.Bool
	res := make(chan execResult[T], 1)
	run(func(tx *world.Tx) {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		v, err := fn(tx)
		res <- execResult[T]{v, err}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-res:
		return r.v, r.err
	case <-timer.C:
		if claimed.CompareAndSwap(false, true) {
			var zero T
			return zero, oops.With("timeout", timeout.String()).Wrap(ErrExecTimeout)
		}
		// The transaction is already running fn.
		r := <-res
		return r.v, r.err
	}
}

// PlaceContainer sets a chest at key and fills it with items. Stacks that do
// not fit are returned.
func (w *Worlds) PlaceContainer(key deathchest.LocationKey, items []deathchest.Item) ([]deathchest.Item, error) {
	return exec(w, key.World, func(tx *world.Tx) ([]deathchest.Item, error) {
		tx.SetBlock(key.Pos, block.NewChest(), nil)
		c, ok := tx.Block(key.Pos).(block.Chest)
		if !ok {
			return nil, deathchest.ErrNotContainer
		}
		inv := c.Inventory(tx, key.Pos)

		var overflow []deathchest.Item
		for _, it := range items {
			st, ok := it.(item.Stack)
			if !ok {
				continue
			}
			n, _ := inv.AddItem(st)
			if n < st.Count() {
				overflow = append(overflow, st.Grow(-n))
			}
		}
		return overflow, nil
	})
}

// IsContainer reports whether the block at key is a chest.
func (w *Worlds) IsContainer(key deathchest.LocationKey) (bool, error) {
	return exec(w, key.World, func(tx *world.Tx) (bool, error) {
		_, ok := tx.Block(key.Pos).(block.Chest)
		return ok, nil
	})
}

// TakeContents empties the chest at key and returns what it held.
func (w *Worlds) TakeContents(key deathchest.LocationKey) ([]deathchest.Item, error) {
	return exec(w, key.World, func(tx *world.Tx) ([]deathchest.Item, error) {
		c, ok := tx.Block(key.Pos).(block.Chest)
		if !ok {
			return nil, deathchest.ErrNotContainer
		}
		inv := c.Inventory(tx, key.Pos)
		stacks := inv.Items()
		inv.Clear()

		items := make([]deathchest.Item, 0, len(stacks))
		for _, st := range stacks {
			items = append(items, st)
		}
		return items, nil
	})
}

// RemoveBlock replaces the block at key with air.
func (w *Worlds) RemoveBlock(key deathchest.LocationKey) error {
	_, err := exec(w, key.World, func(tx *world.Tx) (struct{}, error) {
		tx.SetBlock(key.Pos, block.Air{}, nil)
		return struct{}{}, nil
	})
	return err
}

// DropItems spawns the items as item entities in the middle of key, thrown
// with a small random velocity.
func (w *Worlds) DropItems(key deathchest.LocationKey, items []deathchest.Item, velocityScale float64) error {
	_, err := exec(w, key.World, func(tx *world.Tx) (struct{}, error) {
		pos := key.Pos.Vec3Middle()
		for _, it := range items {
			st, ok := it.(item.Stack)
			if !ok || st.Empty() {
				continue
			}
			vel := mgl64.Vec3{rand.Float64()*0.2 - 0.1, 0.2, rand.Float64()*0.2 - 0.1}.Mul(velocityScale)
			tx.AddEntity(entity.NewItem(world.EntitySpawnOpts{Position: pos, Velocity: vel}, st))
		}
		return struct{}{}, nil
	})
	return err
}

// PlayEffect shows chest break particles at key.
func (w *Worlds) PlayEffect(key deathchest.LocationKey) error {
	_, err := exec(w, key.World, func(tx *world.Tx) (struct{}, error) {
		tx.AddParticle(key.Pos.Vec3Middle(), particle.BlockBreak{Block: block.NewChest()})
		return struct{}{}, nil
	})
	return err
}

// PlaySound plays the chest break sound at key, or the chest close sound if
// the client has no block breaking sounds.
func (w *Worlds) PlaySound(key deathchest.LocationKey, caps deathchest.Capabilities) error {
	_, err := exec(w, key.World, func(tx *world.Tx) (struct{}, error) {
		var s world.Sound = sound.ChestClose{}
		if caps.BlockSounds {
			s = sound.BlockBreaking{Block: block.NewChest()}
		}
		tx.PlaySound(key.Pos.Vec3Middle(), s)
		return struct{}{}, nil
	})
	return err
}
