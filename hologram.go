package deathchest

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"
)

// HologramLine is an opaque handle to one line of floating text created by a
// HologramBackend.
type HologramLine any

// HologramBackend spawns and maintains floating text in the host world.
type HologramBackend interface {
	Spawn(world string, pos mgl64.Vec3, text string) (HologramLine, error)
	SetText(line HologramLine, text string) error
	Despawn(line HologramLine) error
}

// Hologram is the floating label above one death chest.
type Hologram struct {
	Key   LocationKey
	Owner string
	lines []HologramLine
}

// Holograms manages the countdown labels shown above death chests, at most one
// per location.
type Holograms struct {
	backend  HologramBackend
	settings *Settings
	caps     Capabilities
	log      *slog.Logger

	// active maps LocationKey to *Hologram
	active sync.Map
}

// NewHolograms creates a hologram manager. A nil backend disables holograms.
func NewHolograms(backend HologramBackend, settings *Settings, caps Capabilities, log *slog.Logger) *Holograms {
	if log == nil {
		log = slog.Default()
	}
	return &Holograms{backend: backend, settings: settings, caps: caps, log: log}
}

// Enabled reports whether holograms are configured and supported.
func (h *Holograms) Enabled() bool {
	return h != nil && h.backend != nil && h.caps.Holograms && h.settings.Config().Hologram.Enabled
}

// Create shows the label for a chest owned by owner at key with seconds left.
// Nothing is shown if holograms are disabled, the owner name is unknown or a
// label already exists at key. Lines spawned before a failure are despawned.
func (h *Holograms) Create(key LocationKey, owner string, seconds int) error {
	if !h.Enabled() || owner == "" {
		return nil
	}
	if _, ok := h.active.Load(key); ok {
		return nil
	}
	cfg := h.settings.Config()

	pos := key.Pos.Vec3().Add(mgl64.Vec3{0.5, cfg.Hologram.Height + 1.0, 0.5})
	holo := &Hologram{Key: key, Owner: owner}
	for i, text := range hologramLines(cfg, owner, seconds) {
		linePos := pos.Sub(mgl64.Vec3{0, float64(i) * cfg.Hologram.LineSpacing, 0})
		line, err := h.backend.Spawn(key.World, linePos, text)
		if err != nil {
			h.despawn(holo)
			return oops.Code(CodeWorldMutation).With("key", key.String()).Wrapf(err, "spawning hologram")
		}
		holo.lines = append(holo.lines, line)
	}
	h.active.Store(key, holo)
	return nil
}

// Update sets the countdown line of the label at key. It does nothing if there
// is no label at key.
func (h *Holograms) Update(key LocationKey, seconds int) error {
	v, ok := h.active.Load(key)
	if !ok {
		return nil
	}
	holo := v.(*Hologram)
	if len(holo.lines) < 2 {
		return nil
	}
	if err := h.backend.SetText(holo.lines[1], countdownLine(h.settings.Config(), seconds)); err != nil {
		return oops.Code(CodeWorldMutation).With("key", key.String()).Wrapf(err, "updating hologram")
	}
	return nil
}

// Remove despawns and forgets the label at key. Removing a missing label is a
// no-op.
func (h *Holograms) Remove(key LocationKey) error {
	v, ok := h.active.LoadAndDelete(key)
	if !ok {
		return nil
	}
	if err := h.despawn(v.(*Hologram)); err != nil {
		return oops.Code(CodeTeardownStep).With("key", key.String()).With("step", "hologram").Wrap(err)
	}
	return nil
}

// Has reports whether a label exists at key.
func (h *Holograms) Has(key LocationKey) bool {
	_, ok := h.active.Load(key)
	return ok
}

// ActiveCount returns the number of labels currently shown.
func (h *Holograms) ActiveCount() int {
	n := 0
	h.active.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear despawns every label. Errors are logged.
func (h *Holograms) Clear() {
	h.active.Range(func(k, _ any) bool {
		if err := h.Remove(k.(LocationKey)); err != nil {
			logError(h.log, "removing hologram", err)
		}
		return true
	})
}

func (h *Holograms) despawn(holo *Hologram) error {
	var errs []error
	for _, line := range holo.lines {
		if err := h.backend.Despawn(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
