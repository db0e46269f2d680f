package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	engineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotgrid",
			Name:      "engine_runs_total",
			Help:      "Count of engine runs by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	slotsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotgrid",
			Name:      "slots_created_total",
			Help:      "Count of slots materialized by the engine.",
		},
	)

	slotsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotgrid",
			Name:      "slots_deleted_total",
			Help:      "Count of slots removed by the engine.",
		},
	)

	slotsProtected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotgrid",
			Name:      "slots_protected_total",
			Help:      "Count of slots kept because an active reservation protects them.",
		},
	)

	conflictHalts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotgrid",
			Name:      "conflict_halts_total",
			Help:      "Count of runs halted by the conflict detector.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(engineRuns, slotsCreated, slotsDeleted, slotsProtected, conflictHalts)
	})
}

func ObserveRun(operation, outcome string) {
	engineRuns.WithLabelValues(operation, outcome).Inc()
}

func AddSlotsCreated(n int) {
	slotsCreated.Add(float64(n))
}

func AddSlotsDeleted(n int) {
	slotsDeleted.Add(float64(n))
}

func AddSlotsProtected(n int) {
	slotsProtected.Add(float64(n))
}

func IncConflictHalt() {
	conflictHalts.Inc()
}
