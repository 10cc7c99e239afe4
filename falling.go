package deathchest

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"
)

// landingDistance is the distance to the target at which a falling chest
// counts as landed.
const landingDistance = 1.5

// pendingFall is a chest that was accepted but is not placed yet, either
// because it waits for the next tick or because it is still falling.
type pendingFall struct {
	key     LocationKey
	owner   Owner
	items   []Item
	// mode is ModeFalling or ModeStatic, the way the chest was requested.
	mode    string
	ceiling int

	// ticks is the number of polls so far. Only touched on the tick goroutine.
	ticks int

	mu     sync.Mutex
	task   TaskID
	entity FallingEntity

	// done is set once the fall reached a final state.
	done atomic.Bool
}

// finish marks pf as done. Only the first call returns true.
func (pf *pendingFall) finish() bool {
	return pf.done.CompareAndSwap(false, true)
}

// release cancels the task of pf and removes its entity.
func (pf *pendingFall) release(sched Scheduler) error {
	pf.mu.Lock()
	task, entity := pf.task, pf.entity
	pf.task, pf.entity = 0, nil
	pf.mu.Unlock()

	if task != 0 {
		sched.Cancel(task)
	}
	if entity != nil {
		return entity.Remove()
	}
	return nil
}

// startFall spawns the falling chest for pf and starts polling it. If the
// entity cannot be spawned, the chest is placed right away.
func (m *Manager) startFall(pf *pendingFall, height int) {
	if !m.spawnFall(pf, height) {
		m.materialize(pf)
	}
}

// spawnFall reports whether pf is now falling or was aborted, false if it
// must be placed right away.
func (m *Manager) spawnFall(pf *pendingFall, height int) bool {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()
	if m.shutdown.Load() {
		m.abortFall(pf)
		return true
	}

	from := pf.key.Pos.Vec3().Add(mgl64.Vec3{0.5, float64(height), 0.5})
	entity, err := m.world.SpawnFalling(pf.key, from)
	if err != nil {
		FallOutcomes.WithLabelValues(FallSpawnFailed).Inc()
		m.log.Warn("could not spawn falling chest, placing it directly", "key", pf.key.String(), "error", err)
		return false
	}

	pf.mu.Lock()
	pf.entity = entity
	id, err := m.sched.Every(1, func() { m.pollFall(pf) })
	pf.task = id
	pf.mu.Unlock()
	if err != nil {
		logError(m.log, "polling falling chest", oops.Code(CodeScheduleFailed).With("key", pf.key.String()).Wrap(err))
		if err := pf.release(m.sched); err != nil {
			m.log.Warn("could not remove falling chest", "key", pf.key.String(), "error", err)
		}
		return false
	}
	return true
}

// pollFall runs once per tick while pf is falling.
func (m *Manager) pollFall(pf *pendingFall) {
	if pf.done.Load() {
		return
	}
	pf.ticks++

	var outcome string
	switch {
	case pf.ticks > pf.ceiling:
		outcome = FallTimedOut
	case m.shutdown.Load():
		m.abortFall(pf)
		return
	default:
		pf.mu.Lock()
		entity := pf.entity
		pf.mu.Unlock()
		if entity == nil {
			outcome = FallLanded
			break
		}
		st := entity.State()
		if !st.Valid || st.OnGround || st.Position.Sub(pf.key.Pos.Vec3Middle()).Len() < landingDistance {
			outcome = FallLanded
			break
		}
		return
	}

	if err := pf.release(m.sched); err != nil {
		m.log.Warn("could not remove falling chest", "key", pf.key.String(), "error", err)
	}
	FallOutcomes.WithLabelValues(outcome).Inc()
	if outcome == FallTimedOut {
		m.log.Debug("falling chest timed out", "key", pf.key.String(), "ticks", pf.ticks)
	}
	m.materialize(pf)
}

// abortFall ends pf without placing its chest.
func (m *Manager) abortFall(pf *pendingFall) {
	if !pf.finish() {
		return
	}
	if err := pf.release(m.sched); err != nil {
		m.log.Warn("could not remove falling chest", "key", pf.key.String(), "error", err)
	}
	m.pending.CompareAndDelete(pf.key, pf)
	FallOutcomes.WithLabelValues(FallAborted).Inc()
}
