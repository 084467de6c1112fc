package config

import (
	"fmt"
	"os"
	"time"

	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/tetra/sds"
	"gopkg.in/yaml.v2"
)

const (
	DeviceFile = "file"
	DeviceUDP  = "udp"
)

type Config struct {
	Device           string        `yaml:"device"`
	PlaybackLocation string        `yaml:"playback_location"`
	UDPListen        string        `yaml:"udp_listen"`
	SymbolReadSize   int           `yaml:"symbol_read_size"`
	ReadInterval     time.Duration `yaml:"read_interval"`
	Frequency        int           `yaml:"frequency"`

	SyncThreshold      float64       `yaml:"sync_threshold"`
	SyncHorizon        int           `yaml:"sync_horizon"`
	FragmentTimeout    time.Duration `yaml:"fragment_timeout"`
	MaxFragmentBuffers int           `yaml:"max_fragment_buffers"`
	TrafficTimeslots   []int         `yaml:"traffic_timeslots,flow"`
	Downlink           bool          `yaml:"downlink"`

	Decrypt Decrypt `yaml:"decrypt"`
	SDS     SDS     `yaml:"sds"`

	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	MQTT               MQTT                `yaml:"mqtt"`
	VoiceOutput        string              `yaml:"voice_output"`
	StatusServer       struct {
		Port int `yaml:"port"`
	} `yaml:"status_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Decrypt struct {
	MinScore    float64 `yaml:"min_score"`
	Workers     int     `yaml:"workers"`
	Bypass      *bool   `yaml:"bypass"`
	DefaultKeys *bool   `yaml:"default_keys"`
	Keys        []Key   `yaml:"keys"`
}

type Key struct {
	Algorithm string `yaml:"algorithm"`
	Key       string `yaml:"key"`
	Label     string `yaml:"label"`
}

type SDS struct {
	PrintableRatio float64  `yaml:"printable_ratio"`
	Headers        []Header `yaml:"headers"`
}

type Header struct {
	Name     string `yaml:"name"`
	Prefix   string `yaml:"prefix"`
	Skip     int    `yaml:"skip"`
	Format   string `yaml:"format"`
	Encoding string `yaml:"encoding"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Load reads a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(contents)
}

func Parse(contents []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) ApplyDefaults() {
	if c.PlaybackLocation != "" && c.Device == "" {
		c.Device = DeviceFile
	}
	if c.Device == "" {
		c.Device = DeviceUDP
	}
	if c.UDPListen == "" {
		c.UDPListen = ":7355"
	}
	if c.SymbolReadSize <= 0 {
		c.SymbolReadSize = 4096
	}
	if c.ReadInterval <= 0 {
		c.ReadInterval = 20 * time.Millisecond
	}
	if c.SyncThreshold <= 0 {
		c.SyncThreshold = 0.8
	}
	if c.SyncHorizon <= 0 {
		c.SyncHorizon = 1020
	}
	if c.FragmentTimeout <= 0 {
		c.FragmentTimeout = 30 * time.Second
	}
	if c.MaxFragmentBuffers <= 0 {
		c.MaxFragmentBuffers = 256
	}
	if c.Decrypt.MinScore <= 0 {
		c.Decrypt.MinScore = 50
	}
	if c.Decrypt.Bypass == nil {
		c.Decrypt.Bypass = boolPtr(true)
	}
	if c.Decrypt.DefaultKeys == nil {
		c.Decrypt.DefaultKeys = boolPtr(true)
	}
	if c.SDS.PrintableRatio <= 0 {
		c.SDS.PrintableRatio = 0.85
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		c.MQTT.Topic = "tetramon/messages"
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "tetramon"
	}
}

func (c *Config) Validate() error {
	switch c.Device {
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return fmt.Errorf("device %q needs playback_location", c.Device)
		}
	case DeviceUDP:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	if c.SyncThreshold > 1 {
		return fmt.Errorf("sync_threshold %v above 1", c.SyncThreshold)
	}
	if c.SDS.PrintableRatio > 1 {
		return fmt.Errorf("sds printable_ratio %v above 1", c.SDS.PrintableRatio)
	}
	for _, ts := range c.TrafficTimeslots {
		if ts < 1 || ts > 4 {
			return fmt.Errorf("traffic timeslot %d outside 1-4", ts)
		}
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}

// EngineOptions converts the decrypt section into crypto engine options.
func (d Decrypt) EngineOptions() ([]crypto.EngineOption, error) {
	candidates := make([]crypto.Candidate, 0, len(d.Keys))
	for i, k := range d.Keys {
		c, err := crypto.ParseCandidate(k.Algorithm, k.Key, k.Label)
		if err != nil {
			return nil, fmt.Errorf("decrypt key %d: %w", i, err)
		}
		candidates = append(candidates, c)
	}

	opts := []crypto.EngineOption{
		crypto.WithKeys(candidates...),
		crypto.WithMinScore(d.MinScore),
	}
	if d.Workers > 0 {
		opts = append(opts, crypto.WithWorkers(d.Workers))
	}
	if d.Bypass != nil {
		opts = append(opts, crypto.WithBypass(*d.Bypass))
	}
	if d.DefaultKeys != nil {
		opts = append(opts, crypto.WithDefaultKeys(*d.DefaultKeys))
	}
	return opts, nil
}

// DecoderOptions converts the sds section into decoder options. Configured
// headers are tried before the built-in ones.
func (s SDS) DecoderOptions() ([]sds.DecoderOption, error) {
	headers, err := s.headerTable()
	if err != nil {
		return nil, err
	}

	opts := []sds.DecoderOption{sds.WithPrintableRatio(s.PrintableRatio)}
	if len(headers) > 0 {
		opts = append(opts, sds.WithHeaders(headers...))
	}
	return opts, nil
}

// Prefixes lists the configured header prefixes followed by the built-in
// ones, for scoring decrypted plaintext.
func (s SDS) Prefixes() ([][]byte, error) {
	headers, err := s.headerTable()
	if err != nil {
		return nil, err
	}
	var prefixes [][]byte
	for _, h := range headers {
		prefixes = append(prefixes, h.Prefix)
	}
	return append(prefixes, sds.DefaultPrefixes()...), nil
}

func (s SDS) headerTable() ([]sds.Header, error) {
	headers := make([]sds.Header, 0, len(s.Headers))
	for _, h := range s.Headers {
		header, err := sds.NewHeader(h.Name, h.Prefix, h.Skip, h.Format, h.Encoding)
		if err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, nil
}
