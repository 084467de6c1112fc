package tetra

import (
	"time"

	"github.com/norasector/turbine-common/types"
)

const (
	SlotsPerFrame            = 4
	FramesPerMultiframe      = 18
	MultiframesPerHyperframe = 60

	SlotsPerHyperframe = SlotsPerFrame * FramesPerMultiframe * MultiframesPerHyperframe
)

type ChannelType string

const (
	ChannelControl ChannelType = "control"
	ChannelTraffic ChannelType = "traffic"
)

// BurstContext places a burst in the TDMA structure. Numbering is 1-based
// for timeslot, frame and multiframe, matching the air interface.
type BurstContext struct {
	Timeslot      int         `json:"timeslot"`
	Frame         int         `json:"frame"`
	Multiframe    int         `json:"multiframe"`
	Hyperframe    int         `json:"hyperframe"`
	Channel       ChannelType `json:"channel"`
	Downlink      bool        `json:"downlink"`
	SignalQuality float64     `json:"signal_quality,omitempty"`
}

// Normalize fills unset numbering with the first slot of a hyperframe.
func (c BurstContext) Normalize() BurstContext {
	if c.Timeslot < 1 || c.Timeslot > SlotsPerFrame {
		c.Timeslot = 1
	}
	if c.Frame < 1 || c.Frame > FramesPerMultiframe {
		c.Frame = 1
	}
	if c.Multiframe < 1 || c.Multiframe > MultiframesPerHyperframe {
		c.Multiframe = 1
	}
	c.Hyperframe &= 0xffff
	if c.Channel == "" {
		c.Channel = ChannelControl
	}
	return c
}

// Next returns the context of the following timeslot. Channel assignment is
// carried over; classifiers overwrite it.
func (c BurstContext) Next() BurstContext {
	n := c.Normalize()
	n.Timeslot++
	if n.Timeslot > SlotsPerFrame {
		n.Timeslot = 1
		n.Frame++
	}
	if n.Frame > FramesPerMultiframe {
		n.Frame = 1
		n.Multiframe++
	}
	if n.Multiframe > MultiframesPerHyperframe {
		n.Multiframe = 1
		n.Hyperframe = (n.Hyperframe + 1) & 0xffff
	}
	return n
}

// SymbolSegment is a chunk of demodulated symbols as delivered by a capture
// device. Data holds one symbol (0-7) per byte.
type SymbolSegment struct {
	types.SegmentBinaryBytes

	// Context, when set, describes the first burst that starts inside this
	// segment. Numbering of later bursts continues from it.
	Context   *BurstContext
	Frequency int
	Timestamp time.Time
}

func NewSymbolSegment(segmentNumber int, symbols []byte) *SymbolSegment {
	return &SymbolSegment{
		SegmentBinaryBytes: types.SegmentBinaryBytes{
			SegmentNumber: segmentNumber,
			Data:          symbols,
		},
		Timestamp: time.Now().UTC(),
	}
}
