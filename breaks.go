package deathchest

import (
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TaskCluster holds the ids of every task scheduled for one chest: the
// hologram creation, the countdown updates and the final break.
type TaskCluster struct {
	mu  sync.Mutex
	ids []TaskID
}

func (c *TaskCluster) add(ids ...TaskID) {
	c.mu.Lock()
	c.ids = append(c.ids, ids...)
	c.mu.Unlock()
}

// IDs returns a copy of the task ids in the order they were added.
func (c *TaskCluster) IDs() []TaskID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TaskID(nil), c.ids...)
}

// cluster returns the task cluster of key, creating it if needed.
func (m *Manager) cluster(key LocationKey) *TaskCluster {
	v, _ := m.clusters.LoadOrStore(key, &TaskCluster{})
	return v.(*TaskCluster)
}

// Cluster returns the task cluster of the chest at key, if any.
func (m *Manager) Cluster(key LocationKey) (*TaskCluster, bool) {
	v, ok := m.clusters.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*TaskCluster), true
}

// scheduleBreak schedules the countdown and the break of chest. Countdown
// updates are only scheduled while holograms are enabled. If any task cannot
// be scheduled, the tasks scheduled so far are cancelled and the chest stays
// without a countdown.
func (m *Manager) scheduleBreak(key LocationKey, chest Chest) error {
	seconds := chest.BreakTime
	if seconds <= 0 {
		return nil
	}

	var created []TaskID
	fail := func(err error) error {
		for _, id := range created {
			m.sched.Cancel(id)
		}
		return oops.Code(CodeScheduleFailed).With("key", key.String()).Wrap(err)
	}

	if m.holograms.Enabled() {
		for n := seconds - 1; n >= 1; n-- {
			id, err := m.sched.After(int64(seconds-n)*TicksPerSecond, func() { m.countdown(key, chest.ID, n) })
			if err != nil {
				return fail(err)
			}
			created = append(created, id)
		}
	}
	id, err := m.sched.After(int64(seconds)*TicksPerSecond, func() { m.expire(key, chest.ID) })
	if err != nil {
		return fail(err)
	}
	created = append(created, id)

	m.cluster(key).add(created...)
	return nil
}

// countdown updates the hologram of the chest at key to n seconds.
func (m *Manager) countdown(key LocationKey, id ulid.ULID, n int) {
	entry, ok := m.entry(key)
	if !ok || entry.ID != id {
		return
	}
	if err := m.holograms.Update(key, n); err != nil {
		m.log.Warn("could not update hologram", "key", key.String(), "error", err)
	}
}

// expire breaks the chest at key once its time is up.
func (m *Manager) expire(key LocationKey, id ulid.ULID) {
	entry, ok := m.entry(key)
	if !ok || entry.ID != id {
		return
	}
	if err := m.breakEntry(entry, CauseExpired); err != nil {
		m.log.Warn("death chest broke with errors", "key", key.String(), "error", err)
	}
}

// cancelAll cancels every task of key and forgets its cluster. It is safe to
// call more than once.
func (m *Manager) cancelAll(key LocationKey) {
	v, ok := m.clusters.LoadAndDelete(key)
	if !ok {
		return
	}
	for _, id := range v.(*TaskCluster).IDs() {
		m.sched.Cancel(id)
	}
}
