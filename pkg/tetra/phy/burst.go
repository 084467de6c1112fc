package phy

import "fmt"

const (
	BlockLength    = 216
	TrainingLength = 22
	TailLength     = 56
	BurstLength    = 2*BlockLength + TrainingLength + TailLength
	PayloadLength  = 2 * BlockLength
)

// TrainingSequence is the normal downlink training sequence that sits
// between the two data blocks of a burst.
var TrainingSequence = [TrainingLength]byte{
	1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0,
}

// FrameLengthError is returned when fewer than BurstLength bits remain
// after Start. Available is the number of bits that were there.
type FrameLengthError struct {
	Start     int
	Available int
}

func (e *FrameLengthError) Error() string {
	return fmt.Sprintf("burst at %d needs %d bits, only %d available", e.Start, BurstLength, e.Available)
}

// Burst is one 510-bit normal burst. The slices are owned by the burst.
type Burst struct {
	Start    int
	Block1   []byte
	Training []byte
	Block2   []byte
	Tail     []byte

	// TrainingScore is the fraction of training bits matching the
	// reference sequence.
	TrainingScore float64
}

// ParseBurst extracts the burst starting at bits[start]. A negative start
// is a programming error.
func ParseBurst(bits []byte, start int) (*Burst, error) {
	if start < 0 {
		panic(fmt.Sprintf("negative burst start %d", start))
	}
	available := len(bits) - start
	if available < BurstLength {
		if available < 0 {
			available = 0
		}
		return nil, &FrameLengthError{Start: start, Available: available}
	}

	raw := make([]byte, BurstLength)
	copy(raw, bits[start:start+BurstLength])

	b := &Burst{
		Start:    start,
		Block1:   raw[:BlockLength],
		Training: raw[BlockLength : BlockLength+TrainingLength],
		Block2:   raw[BlockLength+TrainingLength : 2*BlockLength+TrainingLength],
		Tail:     raw[2*BlockLength+TrainingLength:],
	}
	b.TrainingScore = float64(trainingMatches(b.Training)) / TrainingLength
	return b, nil
}

// Payload returns Block1 followed by Block2.
func (b *Burst) Payload() []byte {
	out := make([]byte, 0, PayloadLength)
	out = append(out, b.Block1...)
	return append(out, b.Block2...)
}

func trainingMatches(window []byte) int {
	matches := 0
	for i := 0; i < TrainingLength; i++ {
		if window[i]&1 == TrainingSequence[i] {
			matches++
		}
	}
	return matches
}
