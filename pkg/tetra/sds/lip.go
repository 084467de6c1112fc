package sds

import (
	"fmt"

	"github.com/norasector/tetramon/pkg/tetra"
)

// Location is a decoded short or long location report.
type Location struct {
	Latitude    float64
	Longitude   float64
	Long        bool
	TimeElapsed int
}

func (l *Location) String() string {
	kind := "short"
	if l.Long {
		kind = "long"
	}
	return fmt.Sprintf("%.5f,%.5f (%s)", l.Latitude, l.Longitude, kind)
}

// ParseLIP decodes a location report. Only the basic short and long
// report types are understood.
func ParseLIP(data []byte) (*Location, bool) {
	bits := tetra.UnpackBytes(data)
	if len(bits) < 2 {
		return nil, false
	}
	switch tetra.Uint(bits[0:2]) {
	case 0:
		if len(bits) < 65 {
			return nil, false
		}
		return &Location{
			TimeElapsed: int(tetra.Uint(bits[2:4])),
			Latitude:    float64(signed(bits[4:28])) * 90 / (1 << 23),
			Longitude:   float64(signed(bits[28:53])) * 180 / (1 << 24),
		}, true
	case 1:
		if len(bits) < 75 {
			return nil, false
		}
		return &Location{
			Long:        true,
			TimeElapsed: int(tetra.Uint(bits[2:4])),
			Latitude:    float64(signed(bits[4:29])) * 90 / (1 << 24),
			Longitude:   float64(signed(bits[29:55])) * 180 / (1 << 25),
		}, true
	}
	return nil, false
}

// signed reads a two's complement field.
func signed(bits []byte) int64 {
	v := int64(tetra.Uint(bits))
	if len(bits) > 0 && bits[0] == 1 {
		v -= 1 << uint(len(bits))
	}
	return v
}
