package phy

import (
	"fmt"
	"math"
)

const (
	DefaultSyncThreshold = 0.8
	DefaultSyncHorizon   = 2 * BurstLength
)

// SyncResult locates a burst. Position is where the training sequence
// matched and Start = Position - BlockLength.
type SyncResult struct {
	Start      int
	Position   int
	Confidence float64
}

// SyncError is returned when no training sequence reached the threshold
// within Horizon positions of From.
type SyncError struct {
	From         int
	Horizon      int
	BestScore    float64
	BestPosition int
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("no sync within %d bits of %d (best %.2f at %d)", e.Horizon, e.From, e.BestScore, e.BestPosition)
}

// Synchronizer finds bursts by correlating against the training sequence.
type Synchronizer struct {
	threshold float64
	minimum   int
	horizon   int
}

// NewSynchronizer returns a synchronizer. Non-positive values select the
// defaults.
func NewSynchronizer(threshold float64, horizon int) *Synchronizer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSyncThreshold
	}
	if horizon <= 0 {
		horizon = DefaultSyncHorizon
	}
	return &Synchronizer{
		threshold: threshold,
		minimum:   int(math.Ceil(threshold*TrainingLength - 1e-9)),
		horizon:   horizon,
	}
}

func (s *Synchronizer) Threshold() float64 { return s.threshold }

func (s *Synchronizer) Horizon() int { return s.horizon }

// Correlate scores the first TrainingLength bits of window.
func Correlate(window []byte) float64 {
	if len(window) < TrainingLength {
		return 0
	}
	return float64(trainingMatches(window)) / TrainingLength
}

// Required is the number of bits Find needs after index 0 to search the
// full horizon from from. With fewer bits a SyncError only means the
// window was incomplete.
func (s *Synchronizer) Required(from int) int {
	return from + BlockLength + s.horizon - 1 + TrainingLength
}

// Find searches bits for the first burst starting at or after from. Once a
// position reaches the threshold the following TrainingLength-1 positions
// are checked and the best of them is taken, earliest on ties.
func (s *Synchronizer) Find(bits []byte, from int) (SyncResult, error) {
	if from < 0 {
		panic(fmt.Sprintf("negative sync origin %d", from))
	}
	first := from + BlockLength
	last := first + s.horizon - 1
	if limit := len(bits) - TrainingLength; last > limit {
		last = limit
	}

	bestMatches, bestPosition := -1, first
	for p := first; p <= last; p++ {
		m := trainingMatches(bits[p : p+TrainingLength])
		if m > bestMatches {
			bestMatches, bestPosition = m, p
		}
		if m < s.minimum {
			continue
		}

		refineEnd := p + TrainingLength - 1
		if limit := len(bits) - TrainingLength; refineEnd > limit {
			refineEnd = limit
		}
		for q := p + 1; q <= refineEnd && m < TrainingLength; q++ {
			if qm := trainingMatches(bits[q : q+TrainingLength]); qm > m {
				m, p = qm, q
			}
		}
		return SyncResult{
			Start:      p - BlockLength,
			Position:   p,
			Confidence: float64(m) / TrainingLength,
		}, nil
	}

	err := &SyncError{From: from, Horizon: s.horizon, BestPosition: bestPosition}
	if bestMatches > 0 {
		err.BestScore = float64(bestMatches) / TrainingLength
	}
	return SyncResult{}, err
}
