// Package metrics defines the Prometheus collectors the ambient stack keeps
// for hosts that want to scrape them: a package-level prometheus.MustRegister
// block of Counter/Histogram vectors, incremented directly at the
// mutation points rather than through middleware, since this module has no
// HTTP layer of its own to instrument.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lingocore"

// Event store counters (incremented directly by pkg/eventstore).
var (
	EnvelopesAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelopes_appended_total",
		Help:      "Total envelopes appended to the event store, by origin.",
	}, []string{"origin"}) // origin: "local" or "remote"

	RemoteEnvelopesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_envelopes_skipped_total",
		Help:      "Remote envelopes rejected as duplicates or out-of-order gaps.",
	}, []string{"reason"}) // reason: "duplicate" or "gap"
)

// Sync counters/histograms (incremented directly by pkg/syncclient).
var (
	SyncPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_passes_total",
		Help:      "Completed sync passes, by target and outcome.",
	}, []string{"target", "outcome"}) // outcome: "ok" or "error"

	SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Wall-clock duration of one sync pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"target"})

	SyncEventsUploadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_events_uploaded_total",
		Help:      "Local events uploaded to a remote target across all sync passes.",
	}, []string{"target"})

	SyncEventsDownloadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_events_downloaded_total",
		Help:      "Remote events merged in from a target across all sync passes.",
	}, []string{"target"})
)

// Persistent store histograms/counters (incremented directly by pkg/filestore).
var (
	FilestoreSaveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "filestore_save_duration_seconds",
		Help:      "Duration of one save() pass over the on-disk event tree.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	FilestoreIndexDriftTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filestore_index_drift_total",
		Help:      "Times the sqlite side-index disagreed with disk and was rebuilt.",
	}, []string{"stream"})
)

func init() {
	prometheus.MustRegister(
		EnvelopesAppendedTotal,
		RemoteEnvelopesSkippedTotal,
		SyncPassesTotal,
		SyncDuration,
		SyncEventsUploadedTotal,
		SyncEventsDownloadedTotal,
		FilestoreSaveDuration,
		FilestoreIndexDriftTotal,
	)
}
