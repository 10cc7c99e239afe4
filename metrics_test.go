package deathchest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterMetrics(reg) })
	assert.Panics(t, func() { RegisterMetrics(reg) }, "registering twice panics")
}

func TestMetrics_CountRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	noItems := testCounter(ChestsRejected.WithLabelValues(CodeNoItems))
	occupied := testCounter(ChestsRejected.WithLabelValues(CodeOccupied))

	_ = env.m.Create(request(at(0, 64, 0)))
	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	_ = env.m.Create(request(at(0, 64, 0), items("b")...))

	assert.Equal(t, noItems+1, testCounter(ChestsRejected.WithLabelValues(CodeNoItems)))
	assert.Equal(t, occupied+1, testCounter(ChestsRejected.WithLabelValues(CodeOccupied)))
}

func TestMetrics_ActiveChests(t *testing.T) {
	env := newTestEnv(t, nil)
	before := testCounter(ActiveChests)

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	require.NoError(t, env.m.Create(request(at(1, 64, 0), items("a")...)))
	env.tick(1)
	assert.Equal(t, before+2, testutil.ToFloat64(ActiveChests))

	require.NoError(t, env.m.Break(keyAt(0, 64, 0)))
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveChests))
}

func TestMetrics_TeardownErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	failed := testCounter(TeardownErrors.WithLabelValues("effect"))

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(1)
	env.world.effectErr = errBoom
	require.Error(t, env.m.Break(keyAt(0, 64, 0)))

	assert.Equal(t, failed+1, testCounter(TeardownErrors.WithLabelValues("effect")))
}
