package deathchest

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// assertErrorCode asserts that err is an oops error with the given code.
func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// assertErrorContext asserts that err is an oops error with the given context key/value.
func assertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

func testCounter(c prometheus.Collector) float64 {
	return testutil.ToFloat64(c)
}

// fakeItem is an item stack for tests.
type fakeItem struct {
	name  string
	empty bool
}

func (i fakeItem) Empty() bool { return i.empty }

func items(names ...string) []Item {
	out := make([]Item, 0, len(names))
	for _, n := range names {
		out = append(out, fakeItem{name: n})
	}
	return out
}

type dropCall struct {
	key   LocationKey
	items []Item
	scale float64
}

// fakeWorld is an in-memory World. Containers hold their items in chests.
type fakeWorld struct {
	mu sync.Mutex

	chests   map[LocationKey][]Item
	capacity int

	placeErr  error
	takeErr   error
	spawnErr  error
	effectErr error

	placed  []LocationKey
	removed []LocationKey
	drops   []dropCall
	effects int
	sounds  int
	falling []*fakeFalling
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{chests: map[LocationKey][]Item{}}
}

func (w *fakeWorld) PlaceContainer(key LocationKey, its []Item) ([]Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.placeErr != nil {
		return nil, w.placeErr
	}
	stored, overflow := its, []Item(nil)
	if w.capacity > 0 && len(its) > w.capacity {
		stored, overflow = its[:w.capacity], its[w.capacity:]
	}
	w.chests[key] = append([]Item(nil), stored...)
	w.placed = append(w.placed, key)
	return overflow, nil
}

func (w *fakeWorld) IsContainer(key LocationKey) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.chests[key]
	return ok, nil
}

func (w *fakeWorld) TakeContents(key LocationKey) ([]Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.takeErr != nil {
		return nil, w.takeErr
	}
	its, ok := w.chests[key]
	if !ok {
		return nil, ErrNotContainer
	}
	w.chests[key] = nil
	return its, nil
}

func (w *fakeWorld) RemoveBlock(key LocationKey) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.chests, key)
	w.removed = append(w.removed, key)
	return nil
}

func (w *fakeWorld) SpawnFalling(target LocationKey, from mgl64.Vec3) (FallingEntity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.spawnErr != nil {
		return nil, w.spawnErr
	}
	f := &fakeFalling{state: FallState{Valid: true, Position: from}}
	w.falling = append(w.falling, f)
	return f, nil
}

func (w *fakeWorld) DropItems(key LocationKey, its []Item, scale float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drops = append(w.drops, dropCall{key: key, items: its, scale: scale})
	return nil
}

func (w *fakeWorld) PlayEffect(LocationKey) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.effects++
	return w.effectErr
}

func (w *fakeWorld) PlaySound(LocationKey, Capabilities) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sounds++
	return nil
}

func (w *fakeWorld) hasChest(key LocationKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.chests[key]
	return ok
}

func (w *fakeWorld) droppedItems() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, d := range w.drops {
		n += len(d.items)
	}
	return n
}

// fakeFalling is a falling chest whose state is set by the test.
type fakeFalling struct {
	mu      sync.Mutex
	state   FallState
	removed int
}

func (f *fakeFalling) State() FallState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeFalling) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	f.state.Valid = false
	return nil
}

func (f *fakeFalling) set(st FallState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func (f *fakeFalling) removals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

// fakeBackend records hologram lines.
type fakeBackend struct {
	mu       sync.Mutex
	sched    *TickScheduler
	next     int
	lines    map[int]string
	pos      map[int]mgl64.Vec3
	updates  []textUpdate
	spawnErr error
	// failAfter makes Spawn fail once this many lines exist, if positive.
	failAfter int
	// onSpawn runs once, before the first line is spawned.
	onSpawn func()
}

type textUpdate struct {
	tick uint64
	text string
}

func newFakeBackend(sched *TickScheduler) *fakeBackend {
	return &fakeBackend{sched: sched, lines: map[int]string{}, pos: map[int]mgl64.Vec3{}}
}

func (b *fakeBackend) Spawn(_ string, pos mgl64.Vec3, text string) (HologramLine, error) {
	b.mu.Lock()
	hook := b.onSpawn
	b.onSpawn = nil
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.spawnErr != nil || (b.failAfter > 0 && len(b.lines) >= b.failAfter) {
		return nil, errBoom
	}
	b.next++
	b.lines[b.next] = text
	b.pos[b.next] = pos
	return b.next, nil
}

func (b *fakeBackend) SetText(line HologramLine, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := line.(int)
	if _, ok := b.lines[id]; !ok {
		return errBoom
	}
	b.lines[id] = text
	var tick uint64
	if b.sched != nil {
		tick = b.sched.CurrentTick()
	}
	b.updates = append(b.updates, textUpdate{tick: tick, text: text})
	return nil
}

func (b *fakeBackend) Despawn(line HologramLine) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lines, line.(int))
	return nil
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// fakeBroadcaster records broadcast messages.
type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []string
}

func (b *fakeBroadcaster) Broadcast(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *fakeBroadcaster) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

// failingScheduler wraps a scheduler and fails every call after the first ok calls.
type failingScheduler struct {
	*TickScheduler
	ok        int
	calls     int
	cancelled []TaskID
}

func (s *failingScheduler) After(ticks int64, fn func()) (TaskID, error) {
	s.calls++
	if s.calls > s.ok {
		return 0, ErrSchedulerStopped
	}
	return s.TickScheduler.After(ticks, fn)
}

func (s *failingScheduler) Cancel(id TaskID) bool {
	s.cancelled = append(s.cancelled, id)
	return s.TickScheduler.Cancel(id)
}

// fakeProbe classifies blocks from a map. Unknown positions are air.
type fakeProbe struct {
	blocks     map[cube.Pos]BlockKind
	minY, maxY int
}

func (p fakeProbe) Block(pos cube.Pos) BlockKind {
	if k, ok := p.blocks[pos]; ok {
		return k
	}
	return BlockAir
}

func (p fakeProbe) Bounds() (int, int) { return p.minY, p.maxY }

var allCaps = Capabilities{Version: "1.21.130", Holograms: true, FallingBlocks: true, BlockSounds: true}

// testEnv bundles a manager with its fakes.
type testEnv struct {
	m       *Manager
	world   *fakeWorld
	backend *fakeBackend
	sched   *TickScheduler
	bcast   *fakeBroadcaster
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testingT is satisfied by *testing.T and GinkgoT().
type testingT interface {
	require.TestingT
	Helper()
}

// newTestEnv creates a manager with falling chests disabled unless mutate
// enables them.
func newTestEnv(t testingT, mutate func(*Config)) *testEnv {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Falling.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	sched := NewTickScheduler(discardLogger())
	env := &testEnv{
		world:   newFakeWorld(),
		backend: newFakeBackend(sched),
		sched:   sched,
		bcast:   &fakeBroadcaster{},
	}
	m, err := NewBuilder().
		World(env.world).
		Scheduler(sched).
		Config(cfg).
		Holograms(env.backend).
		Broadcaster(env.bcast).
		Capabilities(allCaps).
		Logger(discardLogger()).
		Init()
	require.NoError(t, err)
	env.m = m
	return env
}

func (e *testEnv) tick(n int) {
	for i := 0; i < n; i++ {
		e.sched.Tick()
	}
}

var testOwner = Owner{UUID: uuid.MustParse("3f1c2b9e-8a4d-4e6f-9b1a-2c3d4e5f6a7b"), Name: "Steve"}

func request(loc Location, its ...Item) CreateRequest {
	return CreateRequest{Location: loc, Owner: testOwner, Items: its}
}

func at(x, y, z float64) Location {
	return Location{World: "overworld", Pos: mgl64.Vec3{x, y, z}}
}

func keyAt(x, y, z int) LocationKey {
	return LocationKey{World: "overworld", Pos: cube.Pos{x, y, z}}
}
