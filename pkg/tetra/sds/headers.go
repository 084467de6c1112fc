package sds

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type Encoding string

const (
	EncodingGSM7   Encoding = "gsm-7bit"
	EncodingLatin1 Encoding = "iso-8859-1"
	EncodingUTF8   Encoding = "utf-8"
)

// ParseEncoding accepts the canonical names plus a few common aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "gsm-7bit", "gsm7", "gsm":
		return EncodingGSM7, nil
	case "iso-8859-1", "latin1", "latin-1", "ascii":
		return EncodingLatin1, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	}
	return "", fmt.Errorf("unknown encoding %q", s)
}

const FormatLocation = "location"

// Header is a transport-layer prefix recognised at the start of a
// message.
type Header struct {
	Name string
	// Prefix must match the first bytes; Skip bytes are removed, which may
	// be more than the prefix.
	Prefix []byte
	Skip   int
	// Encoding is tried first when set.
	Encoding Encoding
	// EncodingByte, when non-zero, is the offset of a byte selecting the
	// encoding: 0 for GSM 7-bit, 1 for ISO-8859-1.
	EncodingByte int
	Location     bool
}

// DefaultHeaders returns the built-in header table in match order.
func DefaultHeaders() []Header {
	return []Header{
		{Name: "sds-1", Prefix: []byte{0x05, 0x00}, Skip: 3, Encoding: EncodingLatin1},
		{Name: "sds-gsm", Prefix: []byte{0x07, 0x00}, Skip: 3, Encoding: EncodingGSM7},
		{Name: "simple-text", Prefix: []byte{0x02}, Skip: 2, EncodingByte: 1},
		{Name: "simple-text", Prefix: []byte{0x09}, Skip: 2, EncodingByte: 1},
		{Name: "text-messaging", Prefix: []byte{0x82}, Skip: 1},
		{Name: "text-messaging", Prefix: []byte{0x89}, Skip: 1},
		{Name: "simple-ascii", Prefix: []byte{0x03}, Skip: 1, Encoding: EncodingLatin1},
		{Name: FormatLocation, Prefix: []byte{0x83}, Skip: 1, Location: true},
		{Name: FormatLocation, Prefix: []byte{0x0c}, Skip: 1, Location: true},
	}
}

// DefaultPrefixes lists the prefixes of DefaultHeaders.
func DefaultPrefixes() [][]byte {
	var out [][]byte
	for _, h := range DefaultHeaders() {
		out = append(out, h.Prefix)
	}
	return out
}

// NewHeader builds a header from configuration values. prefix is hex.
func NewHeader(name, prefix string, skip int, format, encoding string) (Header, error) {
	p, err := hex.DecodeString(strings.ReplaceAll(prefix, " ", ""))
	if err != nil {
		return Header{}, fmt.Errorf("header %s prefix: %w", name, err)
	}
	if len(p) == 0 {
		return Header{}, fmt.Errorf("header %s: empty prefix", name)
	}
	if skip < len(p) {
		skip = len(p)
	}
	enc, err := ParseEncoding(encoding)
	if err != nil {
		return Header{}, fmt.Errorf("header %s: %w", name, err)
	}
	return Header{
		Name:     name,
		Prefix:   p,
		Skip:     skip,
		Encoding: enc,
		Location: format == FormatLocation,
	}, nil
}

func (h Header) match(data []byte) bool {
	if len(data) < len(h.Prefix) || len(data) < h.Skip {
		return false
	}
	for i, b := range h.Prefix {
		if data[i] != b {
			return false
		}
	}
	return true
}

func (h Header) encoding(data []byte) Encoding {
	if h.EncodingByte <= 0 || h.EncodingByte >= len(data) {
		return h.Encoding
	}
	switch data[h.EncodingByte] {
	case 0:
		return EncodingGSM7
	case 1:
		return EncodingLatin1
	}
	return h.Encoding
}
