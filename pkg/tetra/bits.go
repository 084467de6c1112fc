package tetra

// Bits are carried one per byte (0 or 1), most significant bit first, the
// same convention the slicers and assemblers use.

// Uint reads up to 64 bits as an unsigned big-endian integer.
func Uint(bits []byte) uint64 {
	var v uint64
	for _, b := range bits {
		v = (v << 1) | uint64(b&1)
	}
	return v
}

// PackBits packs bits into bytes. A trailing partial byte is dropped.
func PackBits(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var v byte
		for j := 0; j < 8; j++ {
			v = (v << 1) | (bits[i*8+j] & 1)
		}
		out[i] = v
	}
	return out
}

// UnpackBytes expands bytes into bits, MSB first.
func UnpackBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)*8)
	for _, v := range data {
		for j := 7; j >= 0; j-- {
			out = append(out, (v>>uint(j))&1)
		}
	}
	return out
}

// PutUint writes the low n bits of v into dst, MSB first.
func PutUint(dst []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = byte(v>>uint(n-1-i)) & 1
	}
}
