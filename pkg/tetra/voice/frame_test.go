package voice

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func alternating(n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(i % 2)
	}
	return bits
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		bits []byte
		// number of payload bits expected to be placed
		placed int
	}{
		{"full", alternating(PayloadBits), PayloadBits},
		{"short", alternating(100), 100},
		{"long", alternating(600), PayloadBits},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Format(tt.bits)
			if f[0] != FrameHeader {
				t.Fatalf("word[0] = %#x, want %#x", f[0], FrameHeader)
			}

			want := make([]int16, FrameWords)
			want[0] = FrameHeader
			pos := 0
			for _, b := range blocks {
				for i := 0; i < b.length && pos < tt.placed; i++ {
					want[b.offset+i] = SoftZero
					if tt.bits[pos] == 1 {
						want[b.offset+i] = SoftOne
					}
					pos++
				}
			}
			for i := range want {
				if f[i] != want[i] {
					t.Fatalf("word[%d] = %d, want %d", i, f[i], want[i])
				}
			}
		})
	}
}

func TestFormatLayout(t *testing.T) {
	bits := make([]byte, PayloadBits)
	for i := range bits {
		bits[i] = 1
	}
	f := Format(bits)
	zeroWords := []int{115, 230, 345, 436, 689}
	for _, i := range zeroWords {
		if f[i] != 0 {
			t.Errorf("word[%d] = %d, want 0", i, f[i])
		}
	}
	setWords := []int{1, 114, 116, 229, 231, 344, 346, 435}
	for _, i := range setWords {
		if f[i] != SoftOne {
			t.Errorf("word[%d] = %d, want %d", i, f[i], SoftOne)
		}
	}
}

func TestMarshalBinary(t *testing.T) {
	f := Format([]byte{1, 0})
	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != FrameBytes {
		t.Fatalf("len = %d, want %d", len(b), FrameBytes)
	}
	if !bytes.Equal(b[:6], []byte{0x21, 0x6B, 0x7F, 0x00, 0x81, 0xFF}) {
		t.Errorf("prefix = % x", b[:6])
	}

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	if err != nil || n != FrameBytes {
		t.Fatalf("WriteTo() = %d, %v", n, err)
	}
	var words [FrameWords]int16
	if err := binary.Read(&buf, binary.LittleEndian, &words); err != nil {
		t.Fatal(err)
	}
	if words != [FrameWords]int16(*f) {
		t.Error("WriteTo() round trip mismatch")
	}
}
