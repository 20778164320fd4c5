package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionRestoreCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workouts",
		Subsystem: "session",
		Name:      "restores_total",
		Help:      "Number of successful session restorations from the token cache.",
	})
	sessionRestoreFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workouts",
		Subsystem: "session",
		Name:      "restore_failures_total",
		Help:      "Number of restoration attempts that failed validation and cleared the cache.",
	})
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workouts",
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout record written to the store.",
	})
	malformedRecordCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workouts",
		Subsystem: "persistence",
		Name:      "malformed_records_total",
		Help:      "Number of stored records skipped during listing because their exercise blob was unparseable.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionRestoreCounter,
		sessionRestoreFailureCounter,
		workoutPersistGauge,
		malformedRecordCounter,
	)
}

// RecordRestore counts a successful session restoration.
func RecordRestore() {
	sessionRestoreCounter.Inc()
}

// RecordRestoreFailure counts a restoration that failed and cleared the cache.
func RecordRestoreFailure() {
	sessionRestoreFailureCounter.Inc()
}

// RecordWorkoutPersisted updates the persistence watermark gauge.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordMalformedRecord counts a stored record skipped as unparseable.
func RecordMalformedRecord() {
	malformedRecordCounter.Inc()
}
