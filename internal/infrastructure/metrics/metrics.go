package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes, used as the label on audio_submissions_total.
const (
	OutcomeAccepted        = "accepted"
	OutcomeRoomNotFound    = "room_not_found"
	OutcomeMissingAudio    = "missing_audio"
	OutcomePayloadTooLarge = "payload_too_large"
	OutcomeBadRequest      = "bad_request"
	OutcomeUpstreamFailure = "upstream_failure"
)

var (
	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Number of currently live rooms",
		},
	)

	roomsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	roomsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rooms_expired_total",
			Help: "Total number of rooms evicted by the idle sweep",
		},
	)

	subscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscribers_active",
			Help: "Number of currently attached subscriber connections",
		},
	)

	audioSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_submissions_total",
			Help: "Audio clip submissions by outcome",
		},
		[]string{"outcome"},
	)

	transcriptionsBroadcastTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcriptions_broadcast_total",
			Help: "Transcription events delivered to subscriber buffers",
		},
	)

	broadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Events dropped from slow subscribers' outbound buffers",
		},
	)

	transcribeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcribe_duration_seconds",
			Help:    "Latency of upstream transcription calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func SetRoomsActive(count int) {
	roomsActive.Set(float64(count))
}

func IncRoomsCreated() {
	roomsCreatedTotal.Inc()
}

func AddRoomsExpired(count int) {
	roomsExpiredTotal.Add(float64(count))
}

func IncSubscribers() {
	subscribersActive.Inc()
}

func DecSubscribers() {
	subscribersActive.Dec()
}

func RecordSubmission(outcome string) {
	audioSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func AddTranscriptionsBroadcast(delivered int) {
	transcriptionsBroadcastTotal.Add(float64(delivered))
}

func IncBroadcastDropped() {
	broadcastDroppedTotal.Inc()
}

func ObserveTranscribeDuration(d time.Duration) {
	transcribeDuration.Observe(d.Seconds())
}
