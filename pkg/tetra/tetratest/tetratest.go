// Package tetratest builds bursts, MAC PDUs and symbol streams for tests.
package tetratest

import (
	"fmt"

	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetra/phy"
)

// Data capacity in bytes of each PDU type within one burst payload.
const (
	ResourceCapacity = (phy.PayloadLength - 70) / 8
	FragCapacity     = (phy.PayloadLength - 60) / 8
	EndCapacity      = (phy.PayloadLength - 67) / 8
	OtherCapacity    = (phy.PayloadLength - 35) / 8
)

type writer struct {
	bits []byte
	pos  int
}

func newWriter() *writer {
	return &writer{bits: make([]byte, phy.PayloadLength)}
}

func (w *writer) put(v uint64, n int) {
	tetra.PutUint(w.bits[w.pos:], v, n)
	w.pos += n
}

func (w *writer) flag(b bool) {
	if b {
		w.put(1, 1)
	} else {
		w.put(0, 1)
	}
}

func (w *writer) bytes(data []byte, capacity int, name string) {
	if len(data) > capacity {
		panic(fmt.Sprintf("%s data of %d bytes exceeds %d", name, len(data), capacity))
	}
	copy(w.bits[w.pos:], tetra.UnpackBytes(data))
	w.pos += len(data) * 8
}

// Resource returns a 432-bit RESOURCE payload.
func Resource(src, dst uint32, msgID int, encrypted bool, mode int, data []byte) []byte {
	w := newWriter()
	w.put(0, 3)
	w.put(0, 1)
	w.flag(encrypted)
	w.put(uint64(mode), 2)
	w.put(uint64(src), 24)
	w.put(uint64(dst), 24)
	w.put(uint64(msgID), 8)
	w.put(uint64(len(data)), 7)
	w.bytes(data, ResourceCapacity, "RESOURCE")
	return w.bits
}

// Frag returns a 432-bit FRAG payload with fill bits after data.
func Frag(src, dst uint32, msgID int, data []byte) []byte {
	w := newWriter()
	w.put(1, 3)
	w.put(1, 1)
	w.put(uint64(src), 24)
	w.put(uint64(dst), 24)
	w.put(uint64(msgID), 8)
	w.bytes(data, FragCapacity, "FRAG")
	w.bits[w.pos] = 1
	return w.bits
}

// End returns a 432-bit END payload.
func End(src, dst uint32, msgID int, data []byte) []byte {
	w := newWriter()
	w.put(2, 3)
	w.put(0, 1)
	w.put(uint64(src), 24)
	w.put(uint64(dst), 24)
	w.put(uint64(msgID), 8)
	w.put(uint64(len(data)), 7)
	w.bytes(data, EndCapacity, "END")
	return w.bits
}

// Other returns a 432-bit payload of raw type 3-7.
func Other(rawType int, encrypted bool, address uint32, data []byte) []byte {
	w := newWriter()
	w.put(uint64(rawType), 3)
	w.put(0, 1)
	w.flag(encrypted)
	w.put(uint64(address), 24)
	w.put(uint64(len(data)), 6)
	w.bytes(data, OtherCapacity, "OTHER")
	return w.bits
}

// Message splits msg into RESOURCE, FRAG... and END payloads of at most
// chunk bytes each.
func Message(src, dst uint32, msgID int, encrypted bool, mode int, msg []byte, chunk int) [][]byte {
	if chunk <= 0 || chunk > EndCapacity {
		chunk = EndCapacity
	}
	var pieces [][]byte
	for len(msg) > chunk {
		pieces = append(pieces, msg[:chunk])
		msg = msg[chunk:]
	}
	pieces = append(pieces, msg)
	if len(pieces) == 1 {
		pieces = append(pieces, nil)
	}

	payloads := [][]byte{Resource(src, dst, msgID, encrypted, mode, pieces[0])}
	for _, p := range pieces[1 : len(pieces)-1] {
		payloads = append(payloads, Frag(src, dst, msgID, p))
	}
	return append(payloads, End(src, dst, msgID, pieces[len(pieces)-1]))
}

// Burst wraps a payload of up to 432 bits into a 510-bit normal burst.
func Burst(payload []byte) []byte {
	p := make([]byte, phy.PayloadLength)
	copy(p, payload)
	bits := make([]byte, 0, phy.BurstLength)
	bits = append(bits, p[:phy.BlockLength]...)
	bits = append(bits, phy.TrainingSequence[:]...)
	bits = append(bits, p[phy.BlockLength:]...)
	return append(bits, make([]byte, phy.TailLength)...)
}

// Bits returns back-to-back bursts for payloads, preceded by lead zero
// bits.
func Bits(lead int, payloads ...[]byte) []byte {
	bits := make([]byte, lead)
	for _, p := range payloads {
		bits = append(bits, Burst(p)...)
	}
	return bits
}

// Symbols re-encodes bits as demodulator symbols.
func Symbols(bits []byte) []byte {
	return phy.Remap(bits)
}
