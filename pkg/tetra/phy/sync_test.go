package phy

import (
	"errors"
	"testing"
)

// withTraining returns n zero bits with the training sequence at pos and
// the listed training bits inverted.
func withTraining(n, pos int, flips ...int) []byte {
	bits := make([]byte, n)
	copy(bits[pos:], TrainingSequence[:])
	for _, f := range flips {
		bits[pos+f] ^= 1
	}
	return bits
}

func TestCorrelate(t *testing.T) {
	if got := Correlate(TrainingSequence[:]); got != 1 {
		t.Errorf("Correlate(training) = %v, want 1", got)
	}
	if got := Correlate(make([]byte, TrainingLength)); got != 0.5 {
		t.Errorf("Correlate(zeros) = %v, want 0.5", got)
	}
	if got := Correlate([]byte{1, 1}); got != 0 {
		t.Errorf("Correlate(short) = %v, want 0", got)
	}
}

func TestSynchronizerFind(t *testing.T) {
	tests := []struct {
		name           string
		bits           []byte
		from           int
		wantStart      int
		wantConfidence float64
	}{
		{
			name:           "exact",
			bits:           withTraining(1000, 400),
			wantStart:      184,
			wantConfidence: 1,
		},
		{
			name:           "two bit errors",
			bits:           withTraining(1000, 400, 3, 11),
			wantStart:      184,
			wantConfidence: 20.0 / 22,
		},
		{
			name:           "start at origin",
			bits:           withTraining(800, 300),
			from:           84,
			wantStart:      84,
			wantConfidence: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynchronizer(0, 0)
			got, err := s.Find(tt.bits, tt.from)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if got.Start != tt.wantStart || got.Position != tt.wantStart+BlockLength {
				t.Errorf("Find() = %+v, want start %d", got, tt.wantStart)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Find() confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestSynchronizerRefinesToPeak(t *testing.T) {
	// The first seven training bits ahead of the real sequence make the
	// window at 393 score 19/22 before the exact match at 400.
	bits := withTraining(1000, 400)
	copy(bits[393:], TrainingSequence[:7])

	if got := Correlate(bits[393:]); got < DefaultSyncThreshold {
		t.Fatalf("precondition: window at 393 scores %v", got)
	}
	got, err := NewSynchronizer(0, 0).Find(bits, 0)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got.Position != 400 || got.Confidence != 1 {
		t.Errorf("Find() = %+v, want position 400 confidence 1", got)
	}
}

func TestSynchronizerIgnoresBeforeOrigin(t *testing.T) {
	bits := withTraining(1200, 250)
	_, err := NewSynchronizer(0, 0).Find(bits, 100)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Find() error = %v, want *SyncError", err)
	}
	if syncErr.From != 100 || syncErr.Horizon != DefaultSyncHorizon {
		t.Errorf("SyncError = %+v", syncErr)
	}
}

func TestSynchronizerBelowThreshold(t *testing.T) {
	bits := withTraining(1000, 400, 0, 5, 10, 15, 20)
	_, err := NewSynchronizer(0, 0).Find(bits, 0)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Find() error = %v, want *SyncError", err)
	}
	if syncErr.BestScore != 17.0/22 {
		t.Errorf("BestScore = %v, want %v", syncErr.BestScore, 17.0/22)
	}
}

func TestSynchronizerHorizon(t *testing.T) {
	bits := withTraining(2000, 216+300)
	s := NewSynchronizer(0.8, 200)
	if _, err := s.Find(bits, 0); err == nil {
		t.Error("Find() beyond horizon succeeded")
	}
	got, err := s.Find(bits, 200)
	if err != nil || got.Start != 300 {
		t.Errorf("Find(from=200) = %+v, %v", got, err)
	}
	if s.Required(0) != BlockLength+200-1+TrainingLength {
		t.Errorf("Required(0) = %d", s.Required(0))
	}
}

func TestSynchronizerShortInput(t *testing.T) {
	_, err := NewSynchronizer(0, 0).Find(make([]byte, 100), 0)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Find() error = %v, want *SyncError", err)
	}
}
