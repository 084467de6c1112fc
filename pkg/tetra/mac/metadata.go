package mac

// ResourceAssignment is the channel allocation carried in RESOURCE data.
type ResourceAssignment struct {
	Group     bool
	Talkgroup uint32
	Channel   int
	Encrypted bool
	Priority  int
	CallID    int
}

func ParseResourceAssignment(data []byte) (*ResourceAssignment, bool) {
	if len(data) < 8 {
		return nil, false
	}
	return &ResourceAssignment{
		Group:     data[0]&0x80 != 0,
		Talkgroup: be24(data[1:4]),
		Channel:   int(data[4] & 0x3f),
		Encrypted: data[5]&0x80 != 0,
		Priority:  int(data[5]>>2) & 0x0f,
		CallID:    int(data[6]&0x0f)<<10 | int(data[7])<<2,
	}, true
}

// CallSetup is signalled in U-SIGNAL data.
type CallSetup struct {
	Source      uint32
	Destination uint32
	Voice       bool
	Encrypted   bool
	Algorithm   string
}

var algorithmCodes = map[byte]string{
	1: "TEA1",
	2: "TEA2",
	3: "TEA3",
	4: "TEA4",
}

func ParseCallSetup(data []byte) (*CallSetup, bool) {
	if len(data) < 12 {
		return nil, false
	}
	c := &CallSetup{
		Source:      be24(data[0:3]),
		Destination: be24(data[3:6]),
		Voice:       data[6]&0x80 != 0,
		Encrypted:   data[7]&0x80 != 0,
	}
	if c.Encrypted {
		c.Algorithm = algorithmCodes[(data[7]>>4)&0x07]
	}
	return c, true
}

// NetworkInfo is the cell identity from BROADCAST data.
type NetworkInfo struct {
	MCC        int
	MNC        int
	ColourCode int
}

func ParseBroadcast(data []byte) (*NetworkInfo, bool) {
	if len(data) < 5 {
		return nil, false
	}
	v := uint64(data[0])<<32 | uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])
	return &NetworkInfo{
		MCC:        int(v>>30) & 0x3ff,
		MNC:        int(v>>16) & 0x3fff,
		ColourCode: int(v>>10) & 0x3f,
	}, true
}

// Metadata extracts whatever call information the PDU type carries. The
// result is a *ResourceAssignment, *CallSetup, *NetworkInfo or nil.
func Metadata(pdu *PDU) interface{} {
	if pdu == nil || len(pdu.Data) < 4 {
		return nil
	}
	switch {
	case pdu.Type == PduResource:
		if ra, ok := ParseResourceAssignment(pdu.Data); ok {
			return ra
		}
	case pdu.RawType == 5:
		if cs, ok := ParseCallSetup(pdu.Data); ok {
			return cs
		}
	case pdu.RawType == 3:
		if ni, ok := ParseBroadcast(pdu.Data); ok {
			return ni
		}
	}
	return nil
}

func be24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
