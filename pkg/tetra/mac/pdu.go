package mac

import (
	"fmt"

	"github.com/norasector/tetramon/pkg/tetra"
)

type PduType int

const (
	PduResource PduType = iota
	PduFrag
	PduEnd
	PduOther
)

func (t PduType) String() string {
	switch t {
	case PduResource:
		return "RESOURCE"
	case PduFrag:
		return "FRAG"
	case PduEnd:
		return "END"
	}
	return "OTHER"
}

// names for raw type codes 3-7
var otherNames = map[int]string{
	3: "BROADCAST",
	4: "SUPPL",
	5: "U-SIGNAL",
	6: "DATA",
	7: "U-BLK",
}

// Header lengths in bits.
const (
	resourceHeaderBits = 70
	fragHeaderBits     = 60
	endHeaderBits      = 67
	otherHeaderBits    = 35
)

// Key identifies a fragmented message. A zero MessageID keys on the
// address pair alone.
type Key struct {
	Source      uint32
	Destination uint32
	MessageID   int
}

func (k Key) String() string {
	return fmt.Sprintf("%d->%d#%d", k.Source, k.Destination, k.MessageID)
}

// PDU is a decoded MAC header plus its data bytes.
type PDU struct {
	Type    PduType
	RawType int
	Name    string
	Fill    bool

	Encrypted      bool
	EncryptionMode int

	Source      uint32
	Destination uint32
	MessageID   int

	// Address is the single address field of OTHER PDUs.
	Address uint32

	// Length is the declared data length in bytes. Truncated is set when
	// it exceeded the bits carried by the burst and Data was clamped.
	Length    int
	Truncated bool
	Data      []byte
}

func (p *PDU) Key() Key {
	return Key{Source: p.Source, Destination: p.Destination, MessageID: p.MessageID}
}

// HeaderError reports a payload too short for the header of its type.
// HasKey is set when the addressing fields could still be read.
type HeaderError struct {
	RawType int
	Need    int
	Have    int
	HasKey  bool
	Key     Key
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("malformed PDU type %d: header needs %d bits, have %d", e.RawType, e.Need, e.Have)
}

// ParsePDU decodes the MAC header at the start of a burst payload.
func ParsePDU(bits []byte) (*PDU, error) {
	if len(bits) < 3 {
		return nil, &HeaderError{RawType: -1, Need: 3, Have: len(bits)}
	}
	raw := int(tetra.Uint(bits[0:3]))
	switch raw {
	case 0:
		return parseResource(bits)
	case 1:
		return parseFrag(bits)
	case 2:
		return parseEnd(bits)
	}
	return parseOther(raw, bits)
}

func parseResource(bits []byte) (*PDU, error) {
	if len(bits) < resourceHeaderBits {
		return nil, shortHeader(0, resourceHeaderBits, bits, 7)
	}
	p := &PDU{
		Type:           PduResource,
		RawType:        0,
		Name:           PduResource.String(),
		Fill:           bits[3] == 1,
		Encrypted:      bits[4] == 1,
		EncryptionMode: int(tetra.Uint(bits[5:7])),
		Source:         uint32(tetra.Uint(bits[7:31])),
		Destination:    uint32(tetra.Uint(bits[31:55])),
		MessageID:      int(tetra.Uint(bits[55:63])),
		Length:         int(tetra.Uint(bits[63:70])),
	}
	p.Data, p.Truncated = lengthData(bits[resourceHeaderBits:], p.Length)
	return p, nil
}

func parseFrag(bits []byte) (*PDU, error) {
	if len(bits) < fragHeaderBits {
		return nil, shortHeader(1, fragHeaderBits, bits, 4)
	}
	p := &PDU{
		Type:        PduFrag,
		RawType:     1,
		Name:        PduFrag.String(),
		Fill:        bits[3] == 1,
		Source:      uint32(tetra.Uint(bits[4:28])),
		Destination: uint32(tetra.Uint(bits[28:52])),
		MessageID:   int(tetra.Uint(bits[52:60])),
	}
	data := bits[fragHeaderBits:]
	if p.Fill {
		data = stripFill(data)
	}
	p.Data = tetra.PackBits(data)
	p.Length = len(p.Data)
	return p, nil
}

func parseEnd(bits []byte) (*PDU, error) {
	if len(bits) < endHeaderBits {
		return nil, shortHeader(2, endHeaderBits, bits, 4)
	}
	p := &PDU{
		Type:        PduEnd,
		RawType:     2,
		Name:        PduEnd.String(),
		Fill:        bits[3] == 1,
		Source:      uint32(tetra.Uint(bits[4:28])),
		Destination: uint32(tetra.Uint(bits[28:52])),
		MessageID:   int(tetra.Uint(bits[52:60])),
		Length:      int(tetra.Uint(bits[60:67])),
	}
	p.Data, p.Truncated = lengthData(bits[endHeaderBits:], p.Length)
	return p, nil
}

func parseOther(raw int, bits []byte) (*PDU, error) {
	if len(bits) < otherHeaderBits {
		return nil, &HeaderError{RawType: raw, Need: otherHeaderBits, Have: len(bits)}
	}
	p := &PDU{
		Type:      PduOther,
		RawType:   raw,
		Name:      otherNames[raw],
		Fill:      bits[3] == 1,
		Encrypted: bits[4] == 1,
		Address:   uint32(tetra.Uint(bits[5:29])),
		Length:    int(tetra.Uint(bits[29:35])),
	}
	p.Data, p.Truncated = lengthData(bits[otherHeaderBits:], p.Length)
	return p, nil
}

// shortHeader builds the error for a truncated header whose addressing
// fields start at keyOffset.
func shortHeader(raw, need int, bits []byte, keyOffset int) *HeaderError {
	err := &HeaderError{RawType: raw, Need: need, Have: len(bits)}
	if len(bits) >= keyOffset+56 {
		err.HasKey = true
		err.Key = Key{
			Source:      uint32(tetra.Uint(bits[keyOffset : keyOffset+24])),
			Destination: uint32(tetra.Uint(bits[keyOffset+24 : keyOffset+48])),
			MessageID:   int(tetra.Uint(bits[keyOffset+48 : keyOffset+56])),
		}
	}
	return err
}

func lengthData(bits []byte, length int) ([]byte, bool) {
	available := len(bits) / 8
	if length > available {
		return tetra.PackBits(bits[:available*8]), true
	}
	return tetra.PackBits(bits[:length*8]), false
}

// stripFill removes fill bits: a single 1 followed by zeros up to the end.
func stripFill(bits []byte) []byte {
	for i := len(bits) - 1; i >= 0; i-- {
		if bits[i] == 1 {
			return bits[:i]
		}
	}
	return bits[:0]
}
