package deathchest

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// TicksPerSecond is the number of scheduler ticks in one second of game time.
const TicksPerSecond = 20

// Scheduler runs callbacks on a single tick goroutine. Delays and intervals
// are measured in ticks.
type Scheduler interface {
	// After runs fn once, ticks ticks from now. A delay below one tick runs fn
	// on the next tick.
	After(ticks int64, fn func()) (TaskID, error)
	// Every runs fn every interval ticks until the task is cancelled.
	Every(interval int64, fn func()) (TaskID, error)
	// Cancel cancels a task. It returns false if the task already ran, was
	// already cancelled or is unknown.
	Cancel(id TaskID) bool
}

// TickScheduler is a Scheduler backed by a min-heap of tasks keyed by due tick.
// It is driven either by Start, which ticks 20 times per second, or by calling
// Tick directly.
type TickScheduler struct {
	log   *slog.Logger
	queue *taskQueue

	// tasks holds every live task by id
	tasks sync.Map

	nextID  atomic.Uint64
	nextSeq atomic.Uint64
	current atomic.Uint64

	// tickMu serialises ticks so only one callback ever runs at a time
	tickMu sync.Mutex

	// Execution state
	running  atomic.Bool
	stopped  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	tickRate time.Duration
}

// NewTickScheduler creates a new scheduler. A nil logger uses slog.Default.
func NewTickScheduler(log *slog.Logger) *TickScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &TickScheduler{
		log:      log,
		queue:    newTaskQueue(),
		tickRate: time.Second / TicksPerSecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// After schedules fn to run once, ticks ticks from now.
func (s *TickScheduler) After(ticks int64, fn func()) (TaskID, error) {
	return s.schedule(ticks, 0, fn)
}

// Every schedules fn to run every interval ticks. Intervals below one tick
// run every tick.
func (s *TickScheduler) Every(interval int64, fn func()) (TaskID, error) {
	if interval < 1 {
		interval = 1
	}
	return s.schedule(interval, uint64(interval), fn)
}

func (s *TickScheduler) schedule(delay int64, interval uint64, fn func()) (TaskID, error) {
	if s.stopped.Load() {
		return 0, oops.Code(CodeScheduleFailed).Wrap(ErrSchedulerStopped)
	}
	if delay < 1 {
		delay = 1
	}
	task := &scheduledTask{
		id:       TaskID(s.nextID.Add(1)),
		dueTick:  s.current.Load() + uint64(delay),
		seq:      s.nextSeq.Add(1),
		interval: interval,
		fn:       fn,
	}
	s.tasks.Store(task.id, task)
	s.queue.Push(task)
	return task.id, nil
}

// Cancel marks the task as cancelled. It is dropped from the heap when it
// comes due or on the next compaction.
func (s *TickScheduler) Cancel(id TaskID) bool {
	v, ok := s.tasks.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(*scheduledTask).cancelled.Store(true)
	return true
}

// Pending returns the number of tasks that are scheduled and not cancelled.
func (s *TickScheduler) Pending() int {
	n := 0
	s.tasks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CurrentTick returns the number of ticks processed so far.
func (s *TickScheduler) CurrentTick() uint64 {
	return s.current.Load()
}

// Tick advances the scheduler by one tick and runs every task that became
// due, ordered by due tick and then by the order they were scheduled in.
func (s *TickScheduler) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tick := s.current.Add(1)
	for _, task := range s.queue.PopDue(tick) {
		// A task may be cancelled by a callback that ran earlier in this tick.
		if task.cancelled.Load() {
			continue
		}
		if task.interval == 0 {
			s.tasks.Delete(task.id)
		}
		s.run(task)

		if task.interval > 0 && !task.cancelled.Load() && !s.stopped.Load() {
			task.dueTick = tick + task.interval
			task.seq = s.nextSeq.Add(1)
			s.queue.Push(task)
		}
	}
}

// run executes a single task with panic recovery.
func (s *TickScheduler) run(task *scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", "task", uint64(task.id), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task.fn()
}

// Start begins the scheduler's tick loop. The loop stops when ctx is done or
// Stop is called.
func (s *TickScheduler) Start(ctx context.Context) {
	if s.stopped.Load() || s.running.Swap(true) {
		return
	}
	go s.tickLoop(ctx)
}

// tickLoop is the main scheduler loop.
func (s *TickScheduler) tickLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop stops the tick loop, waits for it to exit and discards every remaining
// task. Tasks cannot be scheduled after Stop.
func (s *TickScheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	close(s.stopCh)
	if s.running.Load() {
		<-s.doneCh
	}

	s.queue.Clear()
	s.tasks.Range(func(k, _ any) bool {
		s.tasks.Delete(k)
		return true
	})
}
