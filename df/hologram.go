package df

import (
	"github.com/df-mc/dragonfly/server/entity"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/oriumgames/deathchest"
)

// textLine is a hologram line backed by a text entity.
type textLine struct {
	world  string
	handle *world.EntityHandle
}

func asTextLine(line deathchest.HologramLine) (textLine, error) {
	l, ok := line.(textLine)
	if !ok {
		return textLine{}, oops.Errorf("unexpected hologram line %T", line)
	}
	return l, nil
}

// Spawn adds a text entity showing text at pos.
func (w *Worlds) Spawn(worldName string, pos mgl64.Vec3, text string) (deathchest.HologramLine, error) {
	return exec(w, worldName, func(tx *world.Tx) (deathchest.HologramLine, error) {
		h := entity.NewText(text, pos)
		tx.AddEntity(h)
		return textLine{world: worldName, handle: h}, nil
	})
}

// SetText changes the name tag of the text entity of line.
func (w *Worlds) SetText(line deathchest.HologramLine, text string) error {
	l, err := asTextLine(line)
	if err != nil {
		return err
	}
	_, err = exec(w, l.world, func(tx *world.Tx) (struct{}, error) {
		e, ok := l.handle.Entity(tx)
		if !ok {
			return struct{}{}, nil
		}
		if t, ok := e.(interface{ SetNameTag(string) }); ok {
			t.SetNameTag(text)
		}
		return struct{}{}, nil
	})
	return err
}

// Despawn removes the text entity of line.
func (w *Worlds) Despawn(line deathchest.HologramLine) error {
	l, err := asTextLine(line)
	if err != nil {
		return err
	}
	_, err = exec(w, l.world, func(tx *world.Tx) (struct{}, error) {
		if e, ok := l.handle.Entity(tx); ok {
			tx.RemoveEntity(e)
		}
		return struct{}{}, nil
	})
	return err
}
