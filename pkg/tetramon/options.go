package tetramon

import (
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/tetra/sds"
	"github.com/norasector/tetramon/pkg/tetramon/status"
)

const (
	defaultRecentMessages = 100
	defaultDecryptQueue   = 64
	defaultDecryptWorkers = 2
)

type Options struct {
	Frequency          int
	SyncThreshold      float64
	SyncHorizon        int
	FragmentTimeout    time.Duration
	MaxFragmentBuffers int
	TrafficTimeslots   []int
	Downlink           bool
	MessageOutputs     []MessageOutput
	VoiceOutputs       []VoiceOutput
	// RecentMessages bounds the history kept for the status server.
	RecentMessages int
	// DecryptWorkers is the number of messages decrypted concurrently.
	// Each one fans out over the engine's own candidate pool.
	DecryptWorkers int
	DecryptQueue   int
}

type MonitorOption func(m *Monitor) error

func WithInfluxDB(influxClient api.WriteAPI) MonitorOption {
	return func(m *Monitor) error {
		m.writeAPI = influxClient
		return nil
	}
}

func WithLogger(logger zerolog.Logger) MonitorOption {
	return func(m *Monitor) error {
		m.logger = logger
		return nil
	}
}

func WithCryptoEngine(e *crypto.Engine) MonitorOption {
	return func(m *Monitor) error {
		m.engine = e
		return nil
	}
}

func WithDecoder(d *sds.Decoder) MonitorOption {
	return func(m *Monitor) error {
		m.decoder = d
		return nil
	}
}

func WithClassifier(c Classifier) MonitorOption {
	return func(m *Monitor) error {
		m.classifier = c
		return nil
	}
}

// WithRegistry registers the monitor's collectors on reg instead of a
// private registry.
func WithRegistry(reg *prometheus.Registry) MonitorOption {
	return func(m *Monitor) error {
		m.registry = reg
		return nil
	}
}

func WithStatusServer(s *status.Server) MonitorOption {
	return func(m *Monitor) error {
		m.statusServer = s
		return nil
	}
}
