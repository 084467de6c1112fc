package crypto

import (
	"bytes"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score weights. A plaintext scoring MaxScore has a known header, a valid
// trailing checksum, only printable bytes and structured entropy.
const (
	structureWeight = 30
	checksumWeight  = 20
	printableWeight = 30
	entropyWeight   = 20

	MaxScore = structureWeight + checksumWeight + printableWeight + entropyWeight

	// normalised entropy at or below which full marks are given
	structuredEntropy = 0.85
)

// Scorer rates how plausible a candidate plaintext is.
type Scorer struct {
	prefixes [][]byte
}

// NewScorer returns a scorer that recognises the given header prefixes.
func NewScorer(prefixes [][]byte) *Scorer {
	return &Scorer{prefixes: prefixes}
}

// Score returns a value in [0, MaxScore]. A recognised header and a valid
// checksum are excluded from the printable and entropy measures.
func (s *Scorer) Score(p []byte) float64 {
	if len(p) == 0 {
		return 0
	}
	var score float64
	body := p
	for _, prefix := range s.prefixes {
		if len(prefix) > 0 && bytes.HasPrefix(p, prefix) {
			score += structureWeight
			body = body[len(prefix):]
			break
		}
	}
	if validChecksum(p) {
		score += checksumWeight
		if len(body) >= 2 {
			body = body[:len(body)-2]
		}
	}
	if len(body) == 0 {
		return score
	}
	score += printableWeight * printableRatio(body)
	score += entropyWeight * entropyBand(body)
	return score
}

func printableRatio(p []byte) float64 {
	n := 0
	for _, b := range p {
		if (b >= 0x20 && b <= 0x7e) || b == '\n' || b == '\r' || b == '\t' {
			n++
		}
	}
	return float64(n) / float64(len(p))
}

// entropyBand maps Shannon entropy, normalised to the maximum possible for
// the sample length, to [0, 1]. Uniform single-byte data gets nothing.
func entropyBand(p []byte) float64 {
	var counts [256]float64
	for _, b := range p {
		counts[b]++
	}
	dist := make([]float64, 0, 256)
	for _, c := range counts {
		if c > 0 {
			dist = append(dist, c/float64(len(p)))
		}
	}
	if len(dist) < 2 {
		return 0
	}
	maxEntropy := math.Log(math.Min(float64(len(p)), 256))
	h := stat.Entropy(dist) / maxEntropy
	switch {
	case h <= structuredEntropy:
		return 1
	case h >= 1:
		return 0
	}
	return (1 - h) / (1 - structuredEntropy)
}

// validChecksum reports whether the last two bytes are the CRC-16/CCITT of
// the rest, big endian.
func validChecksum(p []byte) bool {
	if len(p) < 4 {
		return false
	}
	n := len(p) - 2
	want := uint16(p[n])<<8 | uint16(p[n+1])
	return CRC16(p[:n]) == want
}

// StripChecksum removes a valid trailing CRC-16 from a decrypted
// plaintext. p is returned unchanged when the checksum does not validate.
func StripChecksum(p []byte) ([]byte, bool) {
	if !validChecksum(p) {
		return p, false
	}
	return p[:len(p)-2], true
}

// CRC16 is CRC-16/CCITT-FALSE: polynomial 0x1021, initial value 0xffff.
func CRC16(data []byte) uint16 {
	crc := uint16(0xffff)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
