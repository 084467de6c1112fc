package crypto

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/norasector/tetramon/pkg/tetra"
)

func sdsPlaintext(text string) []byte {
	p := append([]byte{0x82}, text...)
	crc := CRC16(p)
	return append(p, byte(crc>>8), byte(crc))
}

func encrypt(t *testing.T, a Algorithm, key []byte, iv uint32, plaintext []byte) []byte {
	t.Helper()
	ct, err := XORKeystream(a, key, iv, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	return ct
}

func TestIV(t *testing.T) {
	tests := []struct {
		name string
		ctx  tetra.BurstContext
		want uint32
	}{
		{"first slot", tetra.BurstContext{Timeslot: 1, Frame: 1, Multiframe: 1}, 1<<2 | 1<<7},
		{"downlink", tetra.BurstContext{Timeslot: 4, Frame: 18, Multiframe: 60, Hyperframe: 5, Downlink: true}, 3 | 18<<2 | 60<<7 | 5<<13 | 1<<28},
		{"zero value normalised", tetra.BurstContext{}, 1<<2 | 1<<7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IV(tt.ctx); got != tt.want {
				t.Errorf("IV() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestKeystream(t *testing.T) {
	key := []byte("0123456789")
	for _, a := range []Algorithm{TEA1, TEA2, TEA3} {
		t.Run(string(a), func(t *testing.T) {
			g, ok := Generator(a)
			if !ok {
				t.Fatalf("no generator for %s", a)
			}
			ks1, err := g.Keystream(key, 42, 64)
			if err != nil {
				t.Fatal(err)
			}
			ks2, _ := g.Keystream(key, 42, 64)
			if !bytes.Equal(ks1, ks2) {
				t.Error("keystream not deterministic")
			}
			other, _ := g.Keystream(key, 43, 64)
			if bytes.Equal(ks1, other) {
				t.Error("keystream ignores IV")
			}
			otherKey, _ := g.Keystream([]byte("0123456788"), 42, 64)
			if bytes.Equal(ks1, otherKey) {
				t.Error("keystream ignores key")
			}
			if _, err := g.Keystream([]byte{1, 2, 3}, 42, 8); err == nil {
				t.Error("short key accepted")
			}
		})
	}
}

func TestScore(t *testing.T) {
	s := NewScorer([][]byte{{0x82}})
	random, _ := hex.DecodeString("390c8c7d7247342cd8100f2f6f770d65d670e58e0351d8ae8e4f6eac342fc231")
	tests := []struct {
		name string
		p    []byte
		min  float64
		max  float64
	}{
		{"structured text", sdsPlaintext("EMERGENCY UNIT 5 RESPONDING"), MaxScore, MaxScore},
		{"text without checksum", append([]byte{0x82}, "EMERGENCY UNIT 5 RESPONDING"...), 80, 80},
		{"random", random, 0, DefaultMinScore - 1},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.p)
			if got < tt.min || got > tt.max {
				t.Errorf("Score() = %v, want [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestCRC16(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x29b1 {
		t.Errorf("CRC16() = %#x, want 0x29b1", got)
	}
}

func TestStripChecksum(t *testing.T) {
	p := sdsPlaintext("UNIT 4")
	got, ok := StripChecksum(p)
	if !ok || !bytes.Equal(got, append([]byte{0x82}, "UNIT 4"...)) {
		t.Errorf("StripChecksum() = %q, %v", got, ok)
	}
	p[len(p)-1] ^= 1
	if got, ok := StripChecksum(p); ok || len(got) != len(p) {
		t.Errorf("StripChecksum() of corrupt input = %q, %v", got, ok)
	}
}

func TestBuildCandidates(t *testing.T) {
	configured := []Candidate{{Algorithm: TEA2, Key: make([]byte, 16), Label: "site key"}}
	got := BuildCandidates(configured, TEA1, true, true)

	want := 1 + len(defaultKeys[TEA1]) + 1 + crossTryLimit + len(defaultKeys[TEA3])
	if len(got) != want {
		t.Fatalf("len = %d, want %d", len(got), want)
	}
	if got[0].Label != "site key" {
		t.Errorf("first candidate = %s, want configured key", got[0])
	}
	if got[1].Algorithm != TEA1 {
		t.Errorf("second candidate = %s, want TEA1 default", got[1])
	}
	bypass := got[1+len(defaultKeys[TEA1])]
	if bypass.Algorithm != Bypass {
		t.Errorf("candidate after defaults = %s, want bypass", bypass)
	}
	if got[len(got)-1].Algorithm != TEA3 {
		t.Errorf("last candidate = %s, want TEA3 cross-try", got[len(got)-1])
	}

	if got := BuildCandidates(nil, "", false, false); len(got) != 0 {
		t.Errorf("no sources gave %d candidates", len(got))
	}
}

func TestParseCandidate(t *testing.T) {
	c, err := ParseCandidate("tea1", "00 11 22 33 44 55 66 77 88 99", "k")
	if err != nil {
		t.Fatal(err)
	}
	if c.Algorithm != TEA1 || len(c.Key) != 10 {
		t.Errorf("ParseCandidate() = %+v", c)
	}
	if c, err := ParseCandidate("none", "", "clear"); err != nil || c.Algorithm != Bypass {
		t.Errorf("ParseCandidate(none) = %+v, %v", c, err)
	}
	if _, err := ParseCandidate("TEA9", "00", "x"); err == nil {
		t.Error("unknown algorithm accepted")
	}
	if _, err := ParseCandidate("TEA1", "xyz", "x"); err == nil {
		t.Error("bad hex accepted")
	}
}

func TestEngineRoundTrip(t *testing.T) {
	key, _ := hex.DecodeString("8badf00d8badf00d1234")
	iv := IV(tetra.BurstContext{Timeslot: 2, Frame: 7, Multiframe: 12, Hyperframe: 300})
	plaintext := sdsPlaintext("EMERGENCY UNIT 5 RESPONDING")
	ciphertext := encrypt(t, TEA1, key, iv, plaintext)

	e, err := NewEngine(WithKeys(Candidate{Algorithm: TEA1, Key: key, Label: "site"}), WithWorkers(3))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Decrypt(context.Background(), ciphertext, 1, iv)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(res.Plaintext, plaintext) {
		t.Errorf("Decrypt() plaintext = %q", res.Plaintext)
	}
	if res.Score != MaxScore || res.Candidate.Label != "site" {
		t.Errorf("Decrypt() score %v candidate %s", res.Score, res.Candidate)
	}
}

func TestEngineDefaultKey(t *testing.T) {
	plaintext := sdsPlaintext("UNIT 9 ON SCENE")
	defaults := DefaultCandidates(TEA2)
	ciphertext := encrypt(t, TEA2, defaults[3].Key, 77, plaintext)

	e, err := NewEngine(WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Decrypt(context.Background(), ciphertext, 2, 77)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if res.Candidate.Label != defaults[3].Label || !bytes.Equal(res.Plaintext, plaintext) {
		t.Errorf("Decrypt() = %s %q", res.Candidate, res.Plaintext)
	}
}

func TestEngineTieGoesToEarliest(t *testing.T) {
	key, _ := hex.DecodeString("00112233445566778899")
	plaintext := sdsPlaintext("ALL UNITS STAND BY")
	ciphertext := encrypt(t, TEA1, key, 5, plaintext)

	e, err := NewEngine(
		WithDefaultKeys(false),
		WithBypass(false),
		WithKeys(
			Candidate{Algorithm: TEA1, Key: []byte("wrong key!"), Label: "a"},
			Candidate{Algorithm: TEA1, Key: key, Label: "b"},
			Candidate{Algorithm: TEA1, Key: key, Label: "c"},
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		res, err := e.Decrypt(context.Background(), ciphertext, 1, 5)
		if err != nil {
			t.Fatal(err)
		}
		if res.Candidate.Label != "b" {
			t.Fatalf("run %d: winner %s, want b", i, res.Candidate)
		}
	}
}

func TestEngineFailurePreservesCiphertext(t *testing.T) {
	ciphertext, _ := hex.DecodeString("390c8c7d7247342cd8100f2f6f770d65d670e58e0351d8ae8e4f6eac342fc231")
	original := append([]byte(nil), ciphertext...)

	e, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Decrypt(context.Background(), ciphertext, 1, 9)
	var failure *DecryptionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Decrypt() error = %v, want *DecryptionFailure", err)
	}
	if failure.Tried != len(e.Candidates(1)) {
		t.Errorf("Tried = %d, want %d", failure.Tried, len(e.Candidates(1)))
	}
	if failure.BestScore >= DefaultMinScore {
		t.Errorf("BestScore = %v", failure.BestScore)
	}
	if !bytes.Equal(failure.Ciphertext, original) || !bytes.Equal(ciphertext, original) {
		t.Error("ciphertext modified")
	}
}

func TestEngineBypass(t *testing.T) {
	plaintext := sdsPlaintext("NOT REALLY ENCRYPTED")
	e, err := NewEngine(WithDefaultKeys(false))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Decrypt(context.Background(), plaintext, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Candidate.Algorithm != Bypass {
		t.Errorf("winner = %s, want bypass", res.Candidate)
	}
}

func TestEngineCancelled(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Decrypt(ctx, []byte("abcdef"), 1, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Decrypt() error = %v, want context.Canceled", err)
	}
}

func TestNewEngineOptions(t *testing.T) {
	if _, err := NewEngine(WithMinScore(150)); err == nil {
		t.Error("min score above maximum accepted")
	}
	if _, err := NewEngine(WithKeys(Candidate{Algorithm: "TEA9", Key: []byte{1}})); err == nil {
		t.Error("unknown algorithm accepted")
	}
}
