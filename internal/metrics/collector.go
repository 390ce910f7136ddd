// Package metrics provides Prometheus metrics for go-present-mon.
//
// Everything here is aggregate: per-process or per-swap-chain label sets
// would explode cardinality under -capture-all, so per-entity detail stays in
// the CSV output and the live console.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	presentEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "present_mon_present_events_total",
			Help: "Present events accepted by the merger",
		},
	)

	presentEventsDroppedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "present_mon_dropped_frames_total",
			Help: "Presents whose final state was not Presented",
		},
	)

	lsrEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "present_mon_lsr_events_total",
			Help: "Late-stage reprojection events accepted by the merger",
		},
	)

	csvRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "present_mon_csv_rows_total",
			Help: "Rows written to CSV output",
		},
		[]string{"kind"}, // "present" or "lsr"
	)

	queueEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "present_mon_queue_events_dropped_total",
			Help: "Events dropped by the analyzed-info queue (merger behind)",
		},
	)

	trackedProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "present_mon_tracked_processes",
			Help: "Processes currently in the registry",
		},
	)

	targetProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "present_mon_target_processes",
			Help: "Live processes matching the target filter",
		},
	)

	recordingState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "present_mon_recording",
			Help: "1 while recording is toggled on",
		},
	)

	presentsPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "present_mon_presents_per_second",
			Help: "Rolling present rate over the labelled window",
		},
		[]string{"window"}, // "1s", "30s", "60s", "300s"
	)

	mergerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "present_mon_merger_ticks_total",
			Help: "Merger loop iterations",
		},
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			presentEventsTotal,
			presentEventsDroppedFramesTotal,
			lsrEventsTotal,
			csvRowsTotal,
			queueEventsDroppedTotal,
			trackedProcesses,
			targetProcesses,
			recordingState,
			presentsPerSecond,
			mergerTicksTotal,
		)
	})
}

// RecordPresent counts one accepted present event.
func RecordPresent(dropped bool) {
	presentEventsTotal.Inc()
	if dropped {
		presentEventsDroppedFramesTotal.Inc()
	}
}

// RecordLsr counts one accepted reprojection event.
func RecordLsr() {
	lsrEventsTotal.Inc()
}

// RecordCsvRow counts one written CSV row of the given kind.
func RecordCsvRow(kind string) {
	csvRowsTotal.WithLabelValues(kind).Inc()
}

// SetQueueEventsDropped publishes the queue's cumulative drop count.
func SetQueueEventsDropped(n uint64) {
	// Counters cannot be set; model the externally-owned cumulative value as
	// a monotone re-add of the delta.
	queueDropMu.Lock()
	defer queueDropMu.Unlock()
	if n > lastQueueDrops {
		queueEventsDroppedTotal.Add(float64(n - lastQueueDrops))
		lastQueueDrops = n
	}
}

var (
	queueDropMu    sync.Mutex
	lastQueueDrops uint64
)

// SetProcessCounts publishes registry sizes.
func SetProcessCounts(tracked, targets int) {
	trackedProcesses.Set(float64(tracked))
	targetProcesses.Set(float64(targets))
}

// SetRecording publishes the live recording state.
func SetRecording(on bool) {
	if on {
		recordingState.Set(1)
	} else {
		recordingState.Set(0)
	}
}

// SetPresentRate publishes a rolling present rate for one window label.
func SetPresentRate(window string, rate float64) {
	presentsPerSecond.WithLabelValues(window).Set(rate)
}

// RecordMergerTick counts one merger loop iteration.
func RecordMergerTick() {
	mergerTicksTotal.Inc()
}
