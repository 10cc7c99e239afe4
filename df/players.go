package df

import (
	"strings"
	"sync"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/oriumgames/deathchest"
)

// Players tracks online players and implements deathchest.Broadcaster.
type Players struct {
	// handles maps uuid.UUID to *world.EntityHandle
	handles sync.Map
}

var _ deathchest.Broadcaster = (*Players)(nil)

// NewPlayers creates an empty player list.
func NewPlayers() *Players {
	return &Players{}
}

// Add starts tracking p.
func (ps *Players) Add(p *player.Player) {
	ps.handles.Store(p.UUID(), p.H())
}

// Remove stops tracking p.
func (ps *Players) Remove(p *player.Player) {
	ps.handles.Delete(p.UUID())
}

// Count returns the number of tracked players.
func (ps *Players) Count() int {
	n := 0
	ps.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Broadcast sends msg to every tracked player. Messages are delivered
// asynchronously, so Broadcast may be called from inside a transaction.
func (ps *Players) Broadcast(msg string) {
	ps.handles.Range(func(k, v any) bool {
		h := v.(*world.EntityHandle)
		id := k.(uuid.UUID)
		go func() {
			ok := h.ExecWorld(func(tx *world.Tx, e world.Entity) {
				if p, ok := e.(*player.Player); ok {
					p.Message(msg)
				}
			})
			if !ok {
				ps.handles.CompareAndDelete(id, h)
			}
		}()
		return true
	})
}

// Permissions decides which death chest permissions a player has. Every
// player has the permissions matching the default patterns; admins have all
// of them.
type Permissions struct {
	defaults []glob.Glob
	admins   map[string]struct{}
}

// DefaultPermissions are granted to every player unless configured otherwise.
var DefaultPermissions = []string{deathchest.PermCreate, deathchest.PermBreak}

// NewPermissions compiles the default permission patterns, such as
// "deathchest.*", and records the admin player names.
func NewPermissions(defaults, admins []string) (*Permissions, error) {
	p := &Permissions{admins: make(map[string]struct{}, len(admins))}
	for _, pattern := range defaults {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code(deathchest.CodeConfigInvalid).With("pattern", pattern).Wrap(err)
		}
		p.defaults = append(p.defaults, g)
	}
	for _, name := range admins {
		p.admins[strings.ToLower(name)] = struct{}{}
	}
	return p, nil
}

// Has reports whether the player with the given name has perm.
func (p *Permissions) Has(name, perm string) bool {
	if p == nil {
		return perm != deathchest.PermAdmin
	}
	if _, ok := p.admins[strings.ToLower(name)]; ok {
		return true
	}
	for _, g := range p.defaults {
		if g.Match(perm) {
			return true
		}
	}
	return false
}
