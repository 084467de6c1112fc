package voice

import (
	"encoding/binary"
	"io"
)

const (
	FrameWords  = 690
	FrameBytes  = FrameWords * 2
	FrameHeader = 0x6B21

	// soft-bit values handed to the speech decoder
	SoftOne  int16 = 127
	SoftZero int16 = -127

	// PayloadBits is the number of traffic bits carried by one frame.
	PayloadBits = 432
)

// sub-block placement: word offset and bit count
var blocks = [4]struct {
	offset int
	length int
}{
	{1, 114},
	{116, 114},
	{231, 114},
	{346, 90},
}

// Frame is one speech decoder input buffer.
type Frame [FrameWords]int16

// Format builds a frame from traffic payload bits. Missing bits are left
// as zero words; bits beyond PayloadBits are ignored.
func Format(bits []byte) *Frame {
	var f Frame
	f[0] = FrameHeader
	pos := 0
	for _, b := range blocks {
		for i := 0; i < b.length && pos < len(bits); i++ {
			if bits[pos]&1 == 1 {
				f[b.offset+i] = SoftOne
			} else {
				f[b.offset+i] = SoftZero
			}
			pos++
		}
	}
	return &f
}

// MarshalBinary returns the little-endian form read by the external
// decoder.
func (f *Frame) MarshalBinary() ([]byte, error) {
	out := make([]byte, FrameBytes)
	for i, w := range f {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(w))
	}
	return out, nil
}

// WriteTo writes the marshalled frame to w.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, _ := f.MarshalBinary()
	n, err := w.Write(b)
	return int64(n), err
}
