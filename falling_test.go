package deathchest

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallingEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, func(c *Config) { c.Falling.Enabled = true })
}

func TestFalling_Landing(t *testing.T) {
	key := keyAt(0, 64, 0)
	tests := []struct {
		name  string
		state FallState
	}{
		{name: "on ground", state: FallState{Valid: true, OnGround: true, Position: mgl64.Vec3{0.5, 80, 0.5}}},
		{name: "close to target", state: FallState{Valid: true, Position: key.Pos.Vec3Middle().Add(mgl64.Vec3{0, 1, 0})}},
		{name: "entity gone", state: FallState{Valid: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fallingEnv(t)
			created := testCounter(ChestsCreated.WithLabelValues(ModeFalling))
			landed := testCounter(FallOutcomes.WithLabelValues(FallLanded))

			require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
			env.tick(1)
			require.Len(t, env.world.falling, 1)
			entity := env.world.falling[0]
			assert.Equal(t, mgl64.Vec3{0.5, 84, 0.5}, entity.State().Position)

			env.tick(5)
			assert.True(t, env.m.IsPending(key), "still falling")
			assert.False(t, env.m.IsDeathChest(key))

			entity.set(tt.state)
			env.tick(1)
			assert.False(t, env.m.IsPending(key))
			assert.True(t, env.m.IsDeathChest(key))
			assert.Equal(t, 1, entity.removals())
			assert.Equal(t, created+1, testCounter(ChestsCreated.WithLabelValues(ModeFalling)))
			assert.Equal(t, landed+1, testCounter(FallOutcomes.WithLabelValues(FallLanded)))
		})
	}
}

func TestFalling_OccupiesLocation(t *testing.T) {
	env := fallingEnv(t)
	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(2)

	err := env.m.Create(request(at(0.5, 64.5, 0.5), items("b")...))
	assert.ErrorIs(t, err, ErrOccupied)
	assert.Len(t, env.world.falling, 1)
}

func TestFalling_TimeoutPlacesChest(t *testing.T) {
	env := fallingEnv(t)
	key := keyAt(0, 64, 0)
	timedOut := testCounter(FallOutcomes.WithLabelValues(FallTimedOut))

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(201)
	assert.True(t, env.m.IsPending(key))
	assert.False(t, env.m.IsDeathChest(key))

	env.tick(1) // tick 202
	assert.True(t, env.m.IsDeathChest(key))
	assert.False(t, env.m.IsPending(key))
	require.Len(t, env.world.falling, 1)
	assert.Equal(t, 1, env.world.falling[0].removals())
	assert.Equal(t, timedOut+1, testCounter(FallOutcomes.WithLabelValues(FallTimedOut)))
}

func TestFalling_SpawnFailurePlacesDirectly(t *testing.T) {
	env := fallingEnv(t)
	env.world.spawnErr = errBoom
	failed := testCounter(FallOutcomes.WithLabelValues(FallSpawnFailed))

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(1)
	assert.True(t, env.m.IsDeathChest(keyAt(0, 64, 0)))
	assert.Equal(t, failed+1, testCounter(FallOutcomes.WithLabelValues(FallSpawnFailed)))
}

func TestFalling_UnsupportedClientPlacesDirectly(t *testing.T) {
	env := fallingEnv(t)
	env.m.caps.FallingBlocks = false
	static := testCounter(ChestsCreated.WithLabelValues(ModeStatic))

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(1)
	assert.True(t, env.m.IsDeathChest(keyAt(0, 64, 0)))
	assert.Empty(t, env.world.falling)
	assert.Equal(t, static+1, testCounter(ChestsCreated.WithLabelValues(ModeStatic)))
}

func TestFalling_ShutdownAborts(t *testing.T) {
	env := fallingEnv(t)
	key := keyAt(0, 64, 0)
	aborted := testCounter(FallOutcomes.WithLabelValues(FallAborted))
	created := testCounter(ChestsCreated.WithLabelValues(ModeFalling))

	require.NoError(t, env.m.Create(request(at(0, 64, 0), items("a")...)))
	env.tick(3)
	require.Len(t, env.world.falling, 1)

	report := env.m.Shutdown()
	assert.Equal(t, 1, report.Attempts)
	assert.Empty(t, report.Errors)
	assert.False(t, env.m.IsPending(key))
	assert.Equal(t, 1, env.world.falling[0].removals())
	assert.Zero(t, env.sched.Pending())

	env.tick(300)
	assert.False(t, env.m.IsDeathChest(key))
	assert.Empty(t, env.world.placed)
	assert.Equal(t, aborted+1, testCounter(FallOutcomes.WithLabelValues(FallAborted)))
	assert.Equal(t, created, testCounter(ChestsCreated.WithLabelValues(ModeFalling)), "aborted falls are not counted")
}
