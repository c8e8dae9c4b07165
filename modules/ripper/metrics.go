package ripper

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	bytesRipped     prometheus.Counter
	tracksCompleted prometheus.Counter
	tracksDiscarded prometheus.Counter
	metadataUpdates prometheus.Counter
	reconnects      prometheus.Counter
	bufferHighWater prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		bytesRipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icyrip",
			Name:      "bytes_ripped_total",
			Help:      "Audio bytes written to track files.",
		}),
		tracksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icyrip",
			Name:      "tracks_completed_total",
			Help:      "Track files closed and committed.",
		}),
		tracksDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icyrip",
			Name:      "tracks_discarded_total",
			Help:      "Tracks dropped by exclude rules or empty recordings.",
		}),
		metadataUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icyrip",
			Name:      "metadata_updates_total",
			Help:      "Distinct metadata blocks extracted from the stream.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icyrip",
			Name:      "reconnects_total",
			Help:      "Stream reconnection attempts after a transport error.",
		}),
		bufferHighWater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "icyrip",
			Name:      "pipeline_high_water_bytes",
			Help:      "Largest pipeline fill level observed this session.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.bytesRipped,
			m.tracksCompleted,
			m.tracksDiscarded,
			m.metadataUpdates,
			m.reconnects,
			m.bufferHighWater,
		)
	}
	return m
}
