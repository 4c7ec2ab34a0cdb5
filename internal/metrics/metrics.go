package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cardsync"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total daemon API requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Daemon API request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 1, 3},
	}, []string{"method", "path"})

	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Scanned tags by source and queue result.",
	}, []string{"source", "result"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scan_queue_depth",
		Help:      "Tags waiting in the scan queue.",
	})

	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Finished card resolutions by outcome.",
	}, []string{"outcome"})

	ResolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolution_duration_seconds",
		Help:      "Time from dequeuing a tag to its assignment or failure.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	StateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Resolver state changes by source and target state.",
	}, []string{"from", "to"})

	ResolverState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resolver_state",
		Help:      "Current resolver state (1 for the active state, 0 otherwise).",
	}, []string{"state"})

	TracksDownloadedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracks_downloaded_total",
		Help:      "Tracks fetched into staging directories.",
	})

	TrackBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "track_bytes_total",
		Help:      "Bytes of track data fetched from the card server.",
	})

	CardServerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cardserver_requests_total",
		Help:      "Requests to the card server by method and status code (0 for transport errors).",
	}, []string{"method", "status"})

	CardServerRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cardserver_request_duration_seconds",
		Help:      "Card server request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ScansTotal,
		QueueDepth,
		ResolutionsTotal,
		ResolutionDuration,
		StateTransitionsTotal,
		ResolverState,
		TracksDownloadedTotal,
		TrackBytesTotal,
		CardServerRequestsTotal,
		CardServerRequestDuration,
	)
}

// Recorder feeds resolver, scan source and transport events into the
// collectors above.
type Recorder struct{}

// StateChanged records a resolver state change.
func (Recorder) StateChanged(from, to string) {
	StateTransitionsTotal.WithLabelValues(from, to).Inc()
	ResolverState.WithLabelValues(from).Set(0)
	ResolverState.WithLabelValues(to).Set(1)
}

// ResolutionFinished records the outcome of one resolution.
func (Recorder) ResolutionFinished(outcome string, elapsed time.Duration) {
	ResolutionsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		ResolutionDuration.Observe(elapsed.Seconds())
	}
}

// TrackDownloaded records one fetched track.
func (Recorder) TrackDownloaded(bytes int64) {
	TracksDownloadedTotal.Inc()
	if bytes > 0 {
		TrackBytesTotal.Add(float64(bytes))
	}
}

// ObserveCardServer matches cardserver.RequestObserver.
func (Recorder) ObserveCardServer(method string, status int, elapsed time.Duration) {
	CardServerRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	CardServerRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveScan matches scanqueue.ScanObserver.
func (Recorder) ObserveScan(source, result string) {
	ScansTotal.WithLabelValues(source, result).Inc()
}

// SetQueueDepth publishes the scan queue length.
func (Recorder) SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}
