package tetramon

import "github.com/norasector/tetramon/pkg/tetra"

// controlFrame carries signalling on every timeslot.
const controlFrame = tetra.FramesPerMultiframe

// Classifier decides whether a burst carries signalling or traffic.
type Classifier interface {
	Classify(c tetra.BurstContext) tetra.BurstContext
}

// SlotClassifier marks a fixed set of timeslots as traffic.
type SlotClassifier struct {
	traffic  map[int]struct{}
	downlink bool
}

func NewSlotClassifier(trafficTimeslots []int, downlink bool) *SlotClassifier {
	s := &SlotClassifier{
		traffic:  make(map[int]struct{}),
		downlink: downlink,
	}
	for _, ts := range trafficTimeslots {
		s.traffic[ts] = struct{}{}
	}
	return s
}

func (s *SlotClassifier) Classify(c tetra.BurstContext) tetra.BurstContext {
	c = c.Normalize()
	c.Downlink = s.downlink
	c.Channel = tetra.ChannelControl
	if _, ok := s.traffic[c.Timeslot]; ok && c.Frame != controlFrame {
		c.Channel = tetra.ChannelTraffic
	}
	return c
}
