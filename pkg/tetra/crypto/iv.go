package crypto

import "github.com/norasector/tetramon/pkg/tetra"

// IV derives the 29-bit keystream initialisation value from the frame
// numbering of a burst.
func IV(c tetra.BurstContext) uint32 {
	c = c.Normalize()
	iv := uint32(c.Timeslot-1) & 0x3
	iv |= uint32(c.Frame&0x1f) << 2
	iv |= uint32(c.Multiframe&0x3f) << 7
	iv |= uint32(c.Hyperframe&0x7fff) << 13
	if c.Downlink {
		iv |= 1 << 28
	}
	return iv
}
