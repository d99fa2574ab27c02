package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type hubMetrics struct {
	published   *prometheus.CounterVec
	dropped     prometheus.Counter
	subscribers prometheus.Gauge
}

var sharedMetrics = hubMetrics{
	published: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whisperboard",
		Subsystem: "notify",
		Name:      "events_published_total",
		Help:      "Events delivered to subscriber buffers by kind.",
	}, []string{"kind"}),
	dropped: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whisperboard",
		Subsystem: "notify",
		Name:      "subscribers_dropped_total",
		Help:      "Subscribers detached because their buffer was full.",
	}),
	subscribers: promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whisperboard",
		Subsystem: "notify",
		Name:      "subscribers",
		Help:      "Current live subscribers across all topics.",
	}),
}

func newHubMetrics() hubMetrics { return sharedMetrics }
