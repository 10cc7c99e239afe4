package deathchest

import "github.com/prometheus/client_golang/prometheus"

// Label values used by the death chest metrics.
const (
	ModeFalling = "falling"
	ModeStatic  = "static"

	CauseExpired   = "expired"
	CauseRequested = "requested"
	CauseShutdown  = "shutdown"

	FallLanded      = "landed"
	FallTimedOut    = "timed_out"
	FallAborted     = "aborted"
	FallSpawnFailed = "spawn_failed"
)

// ChestsCreated counts placed death chests by the way they were requested.
// Use RegisterMetrics to register this with a Prometheus registry.
var ChestsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deathchest_created_total",
		Help: "Total number of placed death chests",
	},
	[]string{"mode"},
)

// ChestsRejected counts rejected death chest requests by error code.
var ChestsRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deathchest_rejected_total",
		Help: "Total number of rejected death chest requests",
	},
	[]string{"code"},
)

// ChestsBroken counts broken death chests by cause.
var ChestsBroken = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deathchest_broken_total",
		Help: "Total number of death chests broken",
	},
	[]string{"cause"},
)

// FallOutcomes counts how falling chests ended.
var FallOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deathchest_fall_outcomes_total",
		Help: "Total number of falling chests by outcome",
	},
	[]string{"outcome"},
)

// Rollbacks counts chests that could not be placed.
var Rollbacks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "deathchest_rollbacks_total",
		Help: "Total number of death chests rolled back after a world error",
	},
)

// TeardownErrors counts failed teardown steps.
var TeardownErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deathchest_teardown_errors_total",
		Help: "Total number of failed steps while breaking death chests",
	},
	[]string{"step"},
)

// ActiveChests is the number of materialized death chests.
var ActiveChests = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "deathchest_active",
		Help: "Number of materialized death chests",
	},
)

// RegisterMetrics registers the death chest metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ChestsCreated)
	reg.MustRegister(ChestsRejected)
	reg.MustRegister(ChestsBroken)
	reg.MustRegister(FallOutcomes)
	reg.MustRegister(Rollbacks)
	reg.MustRegister(TeardownErrors)
	reg.MustRegister(ActiveChests)
}
