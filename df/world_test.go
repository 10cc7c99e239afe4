package df

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriumgames/deathchest"
)

// queuedRunner holds transactions until the test runs them.
type queuedRunner struct {
	mu     sync.Mutex
	queued []world.ExecFunc
}

func (r *queuedRunner) run(f world.ExecFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, f)
}

func (r *queuedRunner) flush() {
	r.mu.Lock()
	queued := r.queued
	r.queued = nil
	r.mu.Unlock()
	for _, f := range queued {
		f(nil)
	}
}

func TestAwait_Result(t *testing.T) {
	run := func(f world.ExecFunc) { go f(nil) }

	v, err := await(run, time.Second, func(*world.Tx) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = await(run, time.Second, func(*world.Tx) (int, error) { return 0, deathchest.ErrNotContainer })
	assert.ErrorIs(t, err, deathchest.ErrNotContainer)
}

func TestAwait_TimedOutTransactionDoesNotRun(t *testing.T) {
	r := &queuedRunner{}
	var ran atomic.Bool

	_, err := await(r.run, 10*time.Millisecond, func(*world.Tx) (struct{}, error) {
		ran.Store(true)
		return struct{}{}, nil
	})
	require.ErrorIs(t, err, ErrExecTimeout)

	r.flush()
	assert.False(t, ran.Load(), "a transaction that starts after the timeout is dropped")
}

func TestAwait_StartedTransactionIsWaitedFor(t *testing.T) {
	run := func(f world.ExecFunc) { go f(nil) }

	v, err := await(run, 10*time.Millisecond, func(*world.Tx) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "placed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "placed", v)
}

func TestAwait_BusyWorld(t *testing.T) {
	wld := world.Config{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}.New()
	defer wld.Close()

	release := make(chan struct{})
	wld.Exec(func(*world.Tx) { <-release })

	var ran atomic.Bool
	_, err := await(func(f world.ExecFunc) { wld.Exec(f) }, 20*time.Millisecond, func(*world.Tx) (struct{}, error) {
		ran.Store(true)
		return struct{}{}, nil
	})
	require.ErrorIs(t, err, ErrExecTimeout)

	close(release)
	<-wld.Exec(func(*world.Tx) {})
	assert.False(t, ran.Load())
}

func TestWorlds_UnknownWorld(t *testing.T) {
	w := NewWorlds(nil)

	_, err := w.IsContainer(deathchest.LocationKey{World: "nether"})
	assert.ErrorIs(t, err, deathchest.ErrWorldUnavailable)
	assert.ErrorIs(t, w.RemoveBlock(deathchest.LocationKey{World: "nether"}), deathchest.ErrWorldUnavailable)
}
