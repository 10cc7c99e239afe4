package deathchest

import (
	"log/slog"
	"time"
)

// Builder configures a Manager before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	opts Options
}

// NewBuilder creates a new death chest builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// World sets the world chests are placed in.
func (b *Builder) World(w World) *Builder {
	b.opts.World = w
	return b
}

// Scheduler sets the scheduler all chest tasks run on.
func (b *Builder) Scheduler(s Scheduler) *Builder {
	b.opts.Scheduler = s
	return b
}

// Settings sets the configuration source.
func (b *Builder) Settings(s *Settings) *Builder {
	b.opts.Settings = s
	return b
}

// Config sets a fixed configuration. It is ignored if Settings is also called.
func (b *Builder) Config(cfg Config) *Builder {
	if b.opts.Settings == nil {
		b.opts.Settings = NewSettings(cfg, b.opts.Logger)
	}
	return b
}

// Holograms sets the backend used for countdown holograms.
func (b *Builder) Holograms(h HologramBackend) *Builder {
	b.opts.Holograms = h
	return b
}

// Broadcaster sets where chest announcements are sent.
func (b *Builder) Broadcaster(br Broadcaster) *Builder {
	b.opts.Broadcaster = br
	return b
}

// Capabilities sets the capabilities of the host.
func (b *Builder) Capabilities(c Capabilities) *Builder {
	b.opts.Capabilities = c
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.opts.Logger = l
	return b
}

// Clock sets the function used to read the current time.
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.opts.Now = now
	return b
}

// Init creates the Manager.
func (b *Builder) Init() (*Manager, error) {
	return NewManager(b.opts)
}
