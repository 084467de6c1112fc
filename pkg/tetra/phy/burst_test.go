package phy

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseBurst(t *testing.T) {
	bits := make([]byte, 20+BurstLength)
	for i := range bits {
		bits[i] = byte(i % 2)
	}
	copy(bits[20+BlockLength:], TrainingSequence[:])

	b, err := ParseBurst(bits, 20)
	if err != nil {
		t.Fatalf("ParseBurst() error = %v", err)
	}
	if len(b.Block1) != BlockLength || len(b.Training) != TrainingLength || len(b.Block2) != BlockLength || len(b.Tail) != TailLength {
		t.Fatalf("ParseBurst() section lengths %d/%d/%d/%d", len(b.Block1), len(b.Training), len(b.Block2), len(b.Tail))
	}
	if b.TrainingScore != 1 {
		t.Errorf("TrainingScore = %v, want 1", b.TrainingScore)
	}
	if !reflect.DeepEqual(b.Block1, bits[20:20+BlockLength]) {
		t.Error("Block1 mismatch")
	}

	payload := b.Payload()
	if len(payload) != PayloadLength {
		t.Fatalf("Payload() len = %d, want %d", len(payload), PayloadLength)
	}
	if !reflect.DeepEqual(payload[BlockLength:], b.Block2) {
		t.Error("Payload() second half is not Block2")
	}

	bits[20] ^= 1
	if b.Block1[0] == bits[20] {
		t.Error("burst shares memory with input")
	}
}

func TestParseBurstBadTraining(t *testing.T) {
	bits := make([]byte, BurstLength)
	b, err := ParseBurst(bits, 0)
	if err != nil {
		t.Fatalf("ParseBurst() error = %v", err)
	}
	if b.TrainingScore != 0.5 {
		t.Errorf("TrainingScore = %v, want 0.5", b.TrainingScore)
	}
}

func TestParseBurstShort(t *testing.T) {
	tests := []struct {
		name          string
		n             int
		start         int
		wantAvailable int
	}{
		{"one short", BurstLength - 1, 0, BurstLength - 1},
		{"offset", BurstLength, 10, BurstLength - 10},
		{"start past end", 10, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBurst(make([]byte, tt.n), tt.start)
			var lenErr *FrameLengthError
			if !errors.As(err, &lenErr) {
				t.Fatalf("ParseBurst() error = %v, want *FrameLengthError", err)
			}
			if lenErr.Start != tt.start || lenErr.Available != tt.wantAvailable {
				t.Errorf("FrameLengthError = %+v", lenErr)
			}
		})
	}
}

func TestParseBurstNegativeStart(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ParseBurst(-1) did not panic")
		}
	}()
	ParseBurst(make([]byte, BurstLength), -1)
}
