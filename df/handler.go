package df

import (
	"errors"
	"log/slog"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"

	"github.com/oriumgames/deathchest"
)

// Deps are the shared objects every player Handler uses.
type Deps struct {
	Manager     *deathchest.Manager
	Commands    *deathchest.Commands
	Players     *Players
	Permissions *Permissions
	Logger      *slog.Logger
}

// Handler creates death chests for a player and protects them from being
// mined. Events it does not handle, and the ones it lets through, are passed
// on to the handler the player had before Attach.
//
// Handlers are executed synchronously by Dragonfly within the player's world
// transaction, so chests are only requested here and placed later on the
// scheduler's tick goroutine.
type Handler struct {
	player.Handler
	deps Deps
}

// Compile-time check that Handler implements player.Handler.
var _ player.Handler = (*Handler)(nil)

// Attach installs a Handler on p, chained in front of its current handler,
// and starts tracking p for broadcasts.
func Attach(p *player.Player, deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	next := p.Handler()
	if next == nil {
		next = player.NopHandler{}
	}
	h := &Handler{Handler: next, deps: deps}
	if deps.Players != nil {
		deps.Players.Add(p)
	}
	p.Handle(h)
	return h
}

// handlerOf extracts the death chest handler from a player.
// Returns nil if the player doesn't have one.
func handlerOf(p *player.Player) *Handler {
	h, _ := p.Handler().(*Handler)
	return h
}

// HandleDeath stores the inventory of p in a death chest. The inventory is
// only kept out of the default drops if the chest was accepted.
func (h *Handler) HandleDeath(p *player.Player, src world.DamageSource, keepInv *bool) {
	h.Handler.HandleDeath(p, src, keepInv)
	if *keepInv || !h.deps.Permissions.Has(p.Name(), deathchest.PermCreate) {
		return
	}

	tx := p.Tx()
	items := collectItems(p)
	err := h.deps.Manager.Create(deathchest.CreateRequest{
		Location: deathchest.Location{World: tx.World().Name(), Pos: p.Position()},
		Owner:    deathchest.Owner{UUID: p.UUID(), Name: p.Name()},
		Items:    items,
		Probe:    Probe(tx),
	})
	switch {
	case errors.Is(err, deathchest.ErrNoItems), errors.Is(err, deathchest.ErrWorldDisabled):
		return
	case err != nil:
		h.deps.Logger.Warn("death chest not created, items drop normally", "player", p.Name(), "error", err)
		return
	}

	*keepInv = true
	p.Inventory().Clear()
	p.Armour().Clear()
	p.SetHeldItems(item.Stack{}, item.Stack{})
}

// collectItems returns everything p carries.
func collectItems(p *player.Player) []deathchest.Item {
	var items []deathchest.Item
	for _, st := range p.Inventory().Items() {
		items = append(items, st)
	}
	for _, st := range p.Armour().Items() {
		items = append(items, st)
	}
	if _, off := p.HeldItems(); !off.Empty() {
		items = append(items, off)
	}
	return items
}

// HandleStartBreak breaks a death chest as soon as a player starts mining it.
func (h *Handler) HandleStartBreak(ctx *player.Context, pos cube.Pos) {
	p := ctx.Val()
	key := deathchest.LocationKey{World: p.Tx().World().Name(), Pos: pos}
	if !h.deps.Manager.IsDeathChest(key) {
		h.Handler.HandleStartBreak(ctx, pos)
		return
	}
	ctx.Cancel()
	h.requestBreak(p, key)
}

// HandleBlockBreak keeps death chests from being mined like normal chests,
// which would drop a chest item and bypass the countdown.
func (h *Handler) HandleBlockBreak(ctx *player.Context, pos cube.Pos, drops *[]item.Stack, xp *int) {
	p := ctx.Val()
	key := deathchest.LocationKey{World: p.Tx().World().Name(), Pos: pos}
	if !h.deps.Manager.IsDeathChest(key) {
		h.Handler.HandleBlockBreak(ctx, pos, drops, xp)
		return
	}
	ctx.Cancel()
	h.requestBreak(p, key)
}

// requestBreak breaks the chest at key for p if p is allowed to.
func (h *Handler) requestBreak(p *player.Player, key deathchest.LocationKey) {
	settings := h.deps.Manager.Settings()
	if !settings.Config().AllowInstantBreak {
		p.Message(settings.Message("&cDeath chests cannot be broken, wait for them to break on their own."))
		return
	}
	if !h.deps.Permissions.Has(p.Name(), deathchest.PermBreak) {
		p.Message(settings.Message("&cYou do not have permission to break death chests."))
		return
	}
	if err := h.deps.Manager.RequestBreak(key); err != nil {
		h.deps.Logger.Warn("could not break death chest", "key", key.String(), "player", p.Name(), "error", err)
	}
}

// HandleQuit stops tracking p.
func (h *Handler) HandleQuit(p *player.Player) {
	if h.deps.Players != nil {
		h.deps.Players.Remove(p)
	}
	h.Handler.HandleQuit(p)
}
