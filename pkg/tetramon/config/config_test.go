package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/tetra/sds"
)

const sample = `
playback_location: capture.sym
read_interval: 5ms
fragment_timeout: 45s
traffic_timeslots: [2, 3]
decrypt:
  min_score: 60
  bypass: false
  keys:
    - algorithm: TEA1
      key: "00112233445566778899"
      label: site
sds:
  headers:
    - name: vendor
      prefix: "fe ed"
      skip: 3
      encoding: latin1
output_destinations:
  - host: 127.0.0.1
    port: 9000
mqtt:
  broker: tcp://localhost:1883
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"device from playback", c.Device, DeviceFile},
		{"read interval", c.ReadInterval, 5 * time.Millisecond},
		{"fragment timeout", c.FragmentTimeout, 45 * time.Second},
		{"traffic timeslots", c.TrafficTimeslots, []int{2, 3}},
		{"min score", c.Decrypt.MinScore, 60.0},
		{"bypass", *c.Decrypt.Bypass, false},
		{"default keys", *c.Decrypt.DefaultKeys, true},
		{"keys", c.Decrypt.Keys, []Key{{Algorithm: "TEA1", Key: "00112233445566778899", Label: "site"}}},
		{"headers", c.SDS.Headers, []Header{{Name: "vendor", Prefix: "fe ed", Skip: 3, Encoding: "latin1"}}},
		{"sync threshold default", c.SyncThreshold, 0.8},
		{"sync horizon default", c.SyncHorizon, 1020},
		{"buffers default", c.MaxFragmentBuffers, 256},
		{"printable default", c.SDS.PrintableRatio, 0.85},
		{"outputs", c.OutputDestinations, []OutputDestination{{Host: "127.0.0.1", Port: 9000}}},
		{"mqtt topic default", c.MQTT.Topic, "tetramon/messages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "device: [udp"},
		{"unknown device", "device: hackrf"},
		{"file without path", "device: file"},
		{"threshold above one", "sync_threshold: 1.5"},
		{"bad timeslot", "traffic_timeslots: [5]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Parse() succeeded")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetramon.yaml")
	if err := os.WriteFile(path, []byte("udp_listen: \":9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Device != DeviceUDP || c.UDPListen != ":9999" {
		t.Errorf("Load() = %+v", c)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func TestEngineOptions(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	opts, err := c.Decrypt.EngineOptions()
	if err != nil {
		t.Fatalf("EngineOptions() error = %v", err)
	}
	e, err := crypto.NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	cands := e.Candidates(1)
	if len(cands) == 0 || cands[0].Label != "site" {
		t.Fatalf("first candidate = %v, want site", cands)
	}
	for _, cand := range cands {
		if cand.Algorithm == crypto.Bypass {
			t.Errorf("bypass candidate present with bypass: false")
		}
	}

	bad := Decrypt{Keys: []Key{{Algorithm: "TEA9", Key: "00"}}}
	if _, err := bad.EngineOptions(); err == nil {
		t.Error("EngineOptions() accepted unknown algorithm")
	}
}

func TestDecoderOptions(t *testing.T) {
	s := SDS{
		PrintableRatio: 0.85,
		Headers:        []Header{{Name: "vendor", Prefix: "fe ed", Skip: 3, Encoding: "latin1"}},
	}
	opts, err := s.DecoderOptions()
	if err != nil {
		t.Fatalf("DecoderOptions() error = %v", err)
	}
	msg := sds.NewDecoder(opts...).Decode(append([]byte{0xfe, 0xed, 0x00}, "CALL CONTROL"...))
	if msg.Format != "vendor" || msg.Text != "CALL CONTROL" {
		t.Errorf("Decode() = %+v", msg)
	}

	s.Headers[0].Prefix = "zz"
	if _, err := s.DecoderOptions(); err == nil {
		t.Error("DecoderOptions() accepted bad prefix")
	}
}

func TestPrefixesScoreCustomHeader(t *testing.T) {
	s := SDS{Headers: []Header{{Name: "vendor", Prefix: "fe ed", Skip: 3}}}
	prefixes, err := s.Prefixes()
	if err != nil {
		t.Fatalf("Prefixes() error = %v", err)
	}
	if len(prefixes) != len(sds.DefaultPrefixes())+1 || !reflect.DeepEqual(prefixes[0], []byte{0xfe, 0xed}) {
		t.Fatalf("Prefixes() = %x", prefixes)
	}

	plaintext := append([]byte{0xfe, 0xed}, "CALL CONTROL"...)
	custom := crypto.NewScorer(prefixes).Score(plaintext)
	builtin := crypto.NewScorer(sds.DefaultPrefixes()).Score(plaintext)
	if custom < builtin+20 {
		t.Errorf("score with configured header = %v, built-in only = %v", custom, builtin)
	}

	s.Headers[0].Prefix = "zz"
	if _, err := s.Prefixes(); err == nil {
		t.Error("Prefixes() accepted bad prefix")
	}
}
