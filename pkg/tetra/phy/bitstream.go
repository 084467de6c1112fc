package phy

import "fmt"

// BitStream is an append-only bit buffer addressed by absolute index.
// Releasing a prefix frees memory without shifting later indices.
type BitStream struct {
	base int
	bits []byte
}

func NewBitStream() *BitStream {
	return &BitStream{}
}

func (b *BitStream) Append(bits ...byte) {
	b.bits = append(b.bits, bits...)
}

// Base is the absolute index of the oldest retained bit.
func (b *BitStream) Base() int {
	return b.base
}

// End is the absolute index one past the newest bit.
func (b *BitStream) End() int {
	return b.base + len(b.bits)
}

// Bits returns the retained bits. Index 0 corresponds to Base().
func (b *BitStream) Bits() []byte {
	return b.bits
}

// Slice returns bits [from, to) by absolute index.
func (b *BitStream) Slice(from, to int) []byte {
	if from < b.base || to > b.End() || from > to {
		panic(fmt.Sprintf("bitstream slice [%d:%d] outside [%d:%d]", from, to, b.base, b.End()))
	}
	return b.bits[from-b.base : to-b.base]
}

// Release drops every bit before absolute index upTo.
func (b *BitStream) Release(upTo int) {
	if upTo <= b.base {
		return
	}
	if upTo > b.End() {
		upTo = b.End()
	}
	n := upTo - b.base
	remaining := make([]byte, len(b.bits)-n, cap(b.bits)-n)
	copy(remaining, b.bits[n:])
	b.bits = remaining
	b.base = upTo
}

// Reset drops all bits and restarts indexing at zero.
func (b *BitStream) Reset() {
	b.base = 0
	b.bits = nil
}
