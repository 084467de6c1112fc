package tetramon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	symbols         prometheus.Counter
	invalidSymbols  prometheus.Counter
	bursts          *prometheus.CounterVec // by channel
	syncMisses      prometheus.Counter
	syncConfidence  prometheus.Histogram
	events          *prometheus.CounterVec // by reassembler event kind
	fragmentBuffers prometheus.Gauge
	messages        *prometheus.CounterVec // by kind, encrypted
	decrypts        *prometheus.CounterVec // by result, algorithm
	decryptScore    prometheus.Histogram
	voiceFrames     prometheus.Counter
	skippedOutputs  *prometheus.CounterVec // by output type
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		symbols: factory.NewCounter(prometheus.CounterOpts{
			Name: "tetramon_symbols_total",
			Help: "Symbols read from the capture device",
		}),
		invalidSymbols: factory.NewCounter(prometheus.CounterOpts{
			Name: "tetramon_invalid_symbols_total",
			Help: "Symbols outside the modulation alphabet",
		}),
		bursts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tetramon_bursts_total",
			Help: "Synchronised bursts by channel type",
		}, []string{"channel"}),
		syncMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tetramon_sync_misses_total",
			Help: "Search windows without a training sequence match",
		}),
		syncConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tetramon_sync_confidence",
			Help:    "Training sequence correlation of accepted bursts",
			Buckets: []float64{0.8, 0.85, 0.9, 0.95, 1},
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tetramon_reassembly_events_total",
			Help: "Reassembler events by kind",
		}, []string{"kind"}),
		fragmentBuffers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tetramon_fragment_buffers",
			Help: "Messages currently being reassembled",
		}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tetramon_messages_total",
			Help: "Decoded short data messages",
		}, []string{"kind", "encrypted"}),
		decrypts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tetramon_decrypt_attempts_total",
			Help: "Decryption attempts by result and algorithm",
		}, []string{"result", "algorithm"}),
		decryptScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tetramon_decrypt_score",
			Help:    "Plausibility score of the selected candidate",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		voiceFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "tetramon_voice_frames_total",
			Help: "Traffic bursts formatted for the speech decoder",
		}),
		skippedOutputs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tetramon_skipped_outputs_total",
			Help: "Records not delivered because an output was busy",
		}, []string{"output"}),
	}
}
