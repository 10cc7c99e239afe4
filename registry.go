package deathchest

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dropVelocityScale scales the velocity of items dropped by a breaking chest.
const dropVelocityScale = 0.3

// Options configures a Manager.
type Options struct {
	World       World
	Scheduler   Scheduler
	Settings    *Settings
	Holograms   HologramBackend
	Broadcaster Broadcaster
	// Capabilities of the host, usually from DetectCapabilities.
	Capabilities Capabilities
	Logger       *slog.Logger
	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

// Manager is the location-keyed registry of death chests. It creates chests,
// drives their falling animation and countdown, and breaks them.
//
// Create, RequestBreak, the lookups and Shutdown may be called from any
// goroutine. Everything that changes the world runs on the scheduler's tick
// goroutine.
type Manager struct {
	world       World
	sched       Scheduler
	settings    *Settings
	holograms   *Holograms
	broadcaster Broadcaster
	caps        Capabilities
	log         *slog.Logger
	now         func() time.Time

	// chests maps LocationKey to *chestEntry
	chests sync.Map
	// pending maps LocationKey to *pendingFall
	pending sync.Map
	// clusters maps LocationKey to *TaskCluster
	clusters sync.Map

	shutdown atomic.Bool
	// lifecycle is held for reading while a chest is reserved or placed, and
	// for writing by Shutdown to wait for those to finish.
	lifecycle sync.RWMutex
}

// chestEntry is a registered chest together with its break claim.
type chestEntry struct {
	Chest
	breaking atomic.Bool
}

// CreateRequest describes a death chest to create.
type CreateRequest struct {
	Location Location
	Owner    Owner
	Items    []Item
	// Probe is used to find a safe place for the chest. It may be nil.
	Probe BlockProbe
}

// ShutdownReport summarises a Shutdown.
type ShutdownReport struct {
	// Attempts is the number of chests and falling chests that were handled.
	Attempts int
	// Errors holds the failures encountered, if any.
	Errors []error
}

// NewManager creates a manager. World, Scheduler and Settings are required.
func NewManager(opts Options) (*Manager, error) {
	if opts.World == nil || opts.Scheduler == nil || opts.Settings == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("world, scheduler and settings are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		world:       opts.World,
		sched:       opts.Scheduler,
		settings:    opts.Settings,
		holograms:   NewHolograms(opts.Holograms, opts.Settings, opts.Capabilities, opts.Logger),
		broadcaster: opts.Broadcaster,
		caps:        opts.Capabilities,
		log:         opts.Logger,
		now:         opts.Now,
	}, nil
}

// Create accepts a death chest request. The chest is placed on a later tick,
// after its falling animation if that is enabled. A nil error means the
// request was accepted and the items are now owned by the manager.
func (m *Manager) Create(req CreateRequest) error {
	err := m.create(req)
	if err != nil {
		if oopsErr, ok := oops.AsOops(err); ok {
			if code, ok := oopsErr.Code().(string); ok {
				ChestsRejected.WithLabelValues(code).Inc()
			}
		}
	}
	return err
}

func (m *Manager) create(req CreateRequest) error {
	owner := req.Owner.UUID.String()
	items := realItems(req.Items)
	if len(items) == 0 {
		return oops.Code(CodeNoItems).With("owner", owner).Wrap(ErrNoItems)
	}
	if req.Location.World == "" {
		return oops.Code(CodeInvalidLocation).With("owner", owner).Wrap(ErrInvalidLocation)
	}
	if m.settings.WorldDisabled(req.Location.World) {
		return oops.Code(CodeWorldDisabled).With("owner", owner).With("world", req.Location.World).Wrap(ErrWorldDisabled)
	}

	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()
	if m.shutdown.Load() {
		return oops.Code(CodeShuttingDown).With("owner", owner).Wrap(ErrShuttingDown)
	}

	key := SafeLocation(req.Probe, req.Location)
	cfg := m.settings.Config()
	pf := &pendingFall{
		key:     key,
		owner:   req.Owner,
		items:   items,
		mode:    ModeStatic,
		ceiling: cfg.Falling.TimeoutTicks,
	}

	// Reserve the key before checking for a chest: a chest is always stored
	// before its pending record is removed, so one of the two checks sees it.
	if _, loaded := m.pending.LoadOrStore(key, pf); loaded {
		return oops.Code(CodeOccupied).With("key", key.String()).With("owner", owner).Wrap(ErrOccupied)
	}
	if _, ok := m.chests.Load(key); ok {
		m.pending.CompareAndDelete(key, pf)
		return oops.Code(CodeOccupied).With("key", key.String()).With("owner", owner).Wrap(ErrOccupied)
	}

	fn := func() { m.materialize(pf) }
	if cfg.Falling.Enabled && m.caps.FallingBlocks {
		height := cfg.Falling.Height
		pf.mode, fn = ModeFalling, func() { m.startFall(pf, height) }
	}

	pf.mu.Lock()
	id, err := m.sched.After(1, fn)
	pf.task = id
	pf.mu.Unlock()
	if err != nil {
		m.pending.CompareAndDelete(key, pf)
		return oops.Code(CodeScheduleFailed).With("key", key.String()).With("owner", owner).Wrap(err)
	}

	m.log.Debug("death chest accepted", "key", key.String(), "owner", owner, "items", len(items), "mode", pf.mode)

	if cfg.Announce && m.broadcaster != nil {
		m.broadcaster.Broadcast(createdMessage(cfg, req.Owner.Name, cfg.BreakTime))
	}
	return nil
}

// materialize places the chest of pf and registers it. It runs on the tick
// goroutine and does nothing if pf already finished.
func (m *Manager) materialize(pf *pendingFall) {
	if !pf.finish() {
		return
	}
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()

	key := pf.key
	if m.shutdown.Load() {
		m.pending.CompareAndDelete(key, pf)
		return
	}
	cfg := m.settings.Config()

	overflow, err := m.world.PlaceContainer(key, pf.items)
	if err != nil {
		m.rollback(pf, err)
		return
	}
	if len(overflow) > 0 {
		if cfg.Overflow == OverflowSpill {
			if err := m.world.DropItems(key, overflow, 1); err != nil {
				logError(m.log, "dropping overflow items", oops.Code(CodeWorldMutation).With("key", key.String()).Wrap(err))
			}
		}
		m.log.Warn("death chest overflow", "key", key.String(), "items", len(overflow), "policy", cfg.Overflow)
	}

	entry := &chestEntry{Chest: Chest{
		ID:        newChestID(m.now()),
		Key:       key,
		Owner:     pf.owner,
		CreatedAt: m.now(),
		BreakTime: cfg.BreakTime,
		Items:     len(pf.items) - len(overflow),
	}}
	m.chests.Store(key, entry)
	m.pending.CompareAndDelete(key, pf)
	ActiveChests.Inc()
	ChestsCreated.WithLabelValues(pf.mode).Inc()

	if m.holograms.Enabled() {
		id, err := m.sched.After(2, func() { m.showHologram(key, entry.ID) })
		if err != nil {
			logError(m.log, "scheduling hologram", oops.Code(CodeScheduleFailed).With("key", key.String()).Wrap(err))
		} else {
			m.cluster(key).add(id)
		}
	}
	if err := m.scheduleBreak(key, entry.Chest); err != nil {
		m.log.Warn("death chest will not break on its own", "key", key.String(), "error", err)
	}
	m.log.Debug("death chest placed", "key", key.String(), "owner", pf.owner.UUID.String(), "items", entry.Items)
}

// rollback undoes a failed placement. The items are dropped at the location
// so nothing is lost.
func (m *Manager) rollback(pf *pendingFall, cause error) {
	key := pf.key
	err := oops.Code(CodeWorldMutation).With("key", key.String()).With("owner", pf.owner.UUID.String()).Wrapf(cause, "placing death chest")
	logError(m.log, "death chest rolled back", err)
	Rollbacks.Inc()

	m.cancelAll(key)
	if err := m.holograms.Remove(key); err != nil {
		logError(m.log, "removing hologram during rollback", err)
	}
	m.pending.CompareAndDelete(key, pf)

	if err := m.world.DropItems(key, pf.items, 1); err != nil {
		logError(m.log, "dropping items after rollback", oops.Code(CodeWorldMutation).With("key", key.String()).Wrap(err))
	}
}

// showHologram creates the hologram of the chest id at key, if it is still there.
func (m *Manager) showHologram(key LocationKey, id ulid.ULID) {
	entry, ok := m.entry(key)
	if !ok || entry.ID != id {
		return
	}
	if err := m.holograms.Create(key, entry.Owner.Name, entry.BreakTime); err != nil {
		m.log.Warn("could not create hologram", "key", key.String(), "error", err)
		return
	}
	// The chest may have been broken or shut down while the lines spawned.
	if current, ok := m.entry(key); !ok || current != entry || entry.breaking.Load() || m.shutdown.Load() {
		if err := m.holograms.Remove(key); err != nil {
			logError(m.log, "removing hologram of a broken chest", err)
		}
	}
}

// Break breaks the chest at key right away: its contents are dropped, its
// tasks and hologram removed and the block cleared. Breaking a location
// without a chest is a no-op. Failing steps are logged and returned, but never
// stop the steps after them. Break changes the world and should run on the
// tick goroutine; use RequestBreak elsewhere.
func (m *Manager) Break(key LocationKey) error {
	return m.breakChest(key, CauseRequested)
}

// BreakAt canonicalizes loc and breaks the chest there.
func (m *Manager) BreakAt(loc Location) error {
	key, ok := KeyOf(loc)
	if !ok {
		return oops.Code(CodeInvalidLocation).Wrap(ErrInvalidLocation)
	}
	return m.Break(key)
}

// RequestBreak stops the countdown of the chest at key and breaks it on the
// next tick. It is a no-op if there is no chest at key.
func (m *Manager) RequestBreak(key LocationKey) error {
	entry, ok := m.entry(key)
	if !ok {
		return nil
	}
	m.cancelAll(key)
	id, err := m.sched.After(1, func() { m.breakEntry(entry, CauseRequested) })
	if err != nil {
		return oops.Code(CodeScheduleFailed).With("key", key.String()).Wrap(err)
	}
	m.cluster(key).add(id)
	return nil
}

func (m *Manager) breakChest(key LocationKey, cause string) error {
	entry, ok := m.entry(key)
	if !ok {
		return nil
	}
	return m.breakEntry(entry, cause)
}

// breakEntry breaks entry if it is still the chest registered at its key and
// nobody else is breaking it.
func (m *Manager) breakEntry(entry *chestEntry, cause string) error {
	key := entry.Key
	if current, ok := m.entry(key); !ok || current != entry {
		return nil
	}
	if !entry.breaking.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	step := func(name string, err error) {
		if err == nil {
			return
		}
		err = oops.Code(CodeTeardownStep).With("key", key.String()).With("step", name).Wrap(err)
		logError(m.log, "death chest break step failed", err)
		TeardownErrors.WithLabelValues(name).Inc()
		errs = append(errs, err)
	}

	items, err := m.world.TakeContents(key)
	gone := errors.Is(err, ErrNotContainer)
	if !gone {
		step("contents", err)
	}
	if err := m.teardown(key); err != nil {
		errs = append(errs, err)
	}
	if !gone {
		step("effect", m.world.PlayEffect(key))
		step("block", m.world.RemoveBlock(key))
		if len(items) > 0 {
			step("drop", m.world.DropItems(key, items, dropVelocityScale))
		}
		step("sound", m.world.PlaySound(key, m.caps))
	}

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(breakMessage(m.settings.Config()))
	}
	ChestsBroken.WithLabelValues(cause).Inc()
	m.log.Debug("death chest broken", "key", key.String(), "cause", cause, "items", len(items))
	return errors.Join(errs...)
}

// teardown cancels the tasks of key, removes its hologram and forgets the
// chest, in that order.
func (m *Manager) teardown(key LocationKey) error {
	m.cancelAll(key)
	var err error
	if herr := m.holograms.Remove(key); herr != nil {
		logError(m.log, "death chest break step failed", herr)
		TeardownErrors.WithLabelValues("hologram").Inc()
		err = herr
	}
	if _, ok := m.chests.LoadAndDelete(key); ok {
		ActiveChests.Dec()
	}
	return err
}

// Shutdown stops accepting chests, aborts every falling chest and breaks every
// placed one. Chests whose block is gone are only forgotten. Afterwards the
// manager holds no chests, tasks or holograms. Calling Shutdown again does
// nothing.
func (m *Manager) Shutdown() ShutdownReport {
	var report ShutdownReport
	if m.shutdown.Swap(true) {
		return report
	}
	// Wait for creations and placements in progress.
	m.lifecycle.Lock()
	m.lifecycle.Unlock()

	m.pending.Range(func(_, v any) bool {
		report.Attempts++
		m.abortFall(v.(*pendingFall))
		return true
	})

	var keys []LocationKey
	m.chests.Range(func(k, _ any) bool {
		keys = append(keys, k.(LocationKey))
		return true
	})
	for _, key := range keys {
		report.Attempts++
		ok, err := m.world.IsContainer(key)
		if err != nil || !ok {
			if err := m.teardown(key); err != nil {
				report.Errors = append(report.Errors, err)
			}
			continue
		}
		if err := m.breakChest(key, CauseShutdown); err != nil {
			report.Errors = append(report.Errors, err)
		}
	}

	m.clusters.Range(func(k, _ any) bool {
		m.cancelAll(k.(LocationKey))
		return true
	})
	m.holograms.Clear()
	m.chests.Range(func(k, _ any) bool {
		m.chests.Delete(k)
		return true
	})
	m.pending.Range(func(k, _ any) bool {
		m.pending.Delete(k)
		return true
	})
	ActiveChests.Set(0)

	m.log.Info("death chests shut down", "attempts", report.Attempts, "errors", len(report.Errors))
	return report
}

func (m *Manager) entry(key LocationKey) (*chestEntry, bool) {
	v, ok := m.chests.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*chestEntry), true
}

// IsDeathChest reports whether a placed death chest is at key.
func (m *Manager) IsDeathChest(key LocationKey) bool {
	_, ok := m.chests.Load(key)
	return ok
}

// IsPending reports whether a chest is on its way to key.
func (m *Manager) IsPending(key LocationKey) bool {
	_, ok := m.pending.Load(key)
	return ok
}

// Chest returns the chest at key.
func (m *Manager) Chest(key LocationKey) (Chest, bool) {
	entry, ok := m.entry(key)
	if !ok {
		return Chest{}, false
	}
	return entry.Chest, true
}

// Owner returns the owner of the chest at key.
func (m *Manager) Owner(key LocationKey) (Owner, bool) {
	entry, ok := m.entry(key)
	if !ok {
		return Owner{}, false
	}
	return entry.Owner, true
}

// Chests returns a snapshot of every placed chest.
func (m *Manager) Chests() []Chest {
	var out []Chest
	m.chests.Range(func(_, v any) bool {
		out = append(out, v.(*chestEntry).Chest)
		return true
	})
	return out
}

// ActiveCount returns the number of placed chests.
func (m *Manager) ActiveCount() int {
	return count(&m.chests)
}

// PendingCount returns the number of chests that were accepted but not placed yet.
func (m *Manager) PendingCount() int {
	return count(&m.pending)
}

// Holograms returns the hologram manager.
func (m *Manager) Holograms() *Holograms {
	return m.holograms
}

// Settings returns the settings the manager reads its configuration from.
func (m *Manager) Settings() *Settings {
	return m.settings
}

// Capabilities returns the host capabilities the manager was created with.
func (m *Manager) Capabilities() Capabilities {
	return m.caps
}

func count(sm *sync.Map) int {
	n := 0
	sm.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
