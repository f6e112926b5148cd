// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dashtrack/internal/overlay"
)

type Metrics struct {
	registry *prometheus.Registry

	FramesParsed   prometheus.Counter
	FrameFailures  *prometheus.CounterVec
	OCRDuration    prometheus.Histogram
	VideosFinished prometheus.Counter
	WorkersBusy    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashtrack",
			Name:      "frames_parsed_total",
			Help:      "Frames whose overlay text parsed into a record.",
		}),
		FrameFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashtrack",
			Name:      "frame_failures_total",
			Help:      "Frames that could not be turned into a record, by failure kind.",
		}, []string{"kind"}),
		OCRDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dashtrack",
			Name:      "ocr_duration_seconds",
			Help:      "Time spent cleaning and recognizing one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		VideosFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashtrack",
			Name:      "videos_finished_total",
			Help:      "Videos fully processed.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashtrack",
			Name:      "workers_busy",
			Help:      "OCR workers currently processing a frame.",
		}),
	}
	m.registry.MustRegister(m.FramesParsed, m.FrameFailures, m.OCRDuration, m.VideosFinished, m.WorkersBusy)
	return m
}

// Failure kinds outside the parser's taxonomy.
const (
	KindCleanup = "CLEANUP"
	KindOCR     = "OCR"
	KindStore   = "STORE"
)

// ObserveFailure counts err under its parse kind, or fallback if err is not
// a parse error.
func (m *Metrics) ObserveFailure(err error, fallback string) {
	if m == nil {
		return
	}
	kind := string(overlay.KindOf(err))
	if kind == "" {
		kind = fallback
	}
	m.FrameFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveOCR(d time.Duration) {
	if m == nil {
		return
	}
	m.OCRDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer is exposed for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
