package sds

import "strings"

const gsmEscape = 0x1b

// GSM 03.38 default alphabet. The escape slot is never emitted.
var gsmBasic = []rune("@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà")

var gsmExtension = map[byte]rune{
	0x0a: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2f: '\\',
	0x3c: '[',
	0x3d: '~',
	0x3e: ']',
	0x40: '|',
	0x65: '€',
}

// unpackSeptets splits packed 7-bit data into septets, least significant
// bits first. A zero septet made only of padding bits is dropped.
func unpackSeptets(data []byte) []byte {
	out := make([]byte, 0, len(data)*8/7+1)
	var carry byte
	shift := uint(0)
	for _, b := range data {
		out = append(out, (b<<shift|carry)&0x7f)
		carry = b >> (7 - shift)
		shift++
		if shift == 7 {
			out = append(out, carry)
			carry = 0
			shift = 0
		}
	}
	if n := len(out); n > 0 && len(data)%7 == 0 && out[n-1] == 0 {
		out = out[:n-1]
	}
	return out
}

// decodeGSM7 returns the text of packed GSM 7-bit data. ok is false for an
// escape followed by a code with no extension character.
func decodeGSM7(data []byte) (string, bool) {
	var sb strings.Builder
	escaped := false
	for _, s := range unpackSeptets(data) {
		if escaped {
			r, ok := gsmExtension[s]
			if !ok {
				return "", false
			}
			sb.WriteRune(r)
			escaped = false
			continue
		}
		if s == gsmEscape {
			escaped = true
			continue
		}
		sb.WriteRune(gsmBasic[s])
	}
	return sb.String(), true
}
