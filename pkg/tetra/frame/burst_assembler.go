package frame

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetra/phy"
)

// BurstPacket is one synchronised burst with its place in the TDMA
// structure.
type BurstPacket struct {
	Index      int
	Position   int
	Confidence float64
	Burst      *phy.Burst
	Context    tetra.BurstContext
	Timestamp  time.Time
}

type BurstAssemblerConfig struct {
	SyncThreshold float64
	SyncHorizon   int

	OnBurst    func(BurstPacket)
	OnSyncMiss func(*phy.SyncError)
	Logger     zerolog.Logger
}

// BurstAssembler finds bursts in a continuous bit stream.
type BurstAssembler struct {
	stream     *phy.BitStream
	sync       *phy.Synchronizer
	onBurst    func(BurstPacket)
	onSyncMiss func(*phy.SyncError)
	logger     zerolog.Logger

	cursor    int
	count     int
	lastStart int
	next      tetra.BurstContext
	pending   *tetra.BurstContext
}

func NewBurstAssembler(cfg BurstAssemblerConfig) *BurstAssembler {
	b := &BurstAssembler{
		stream:     phy.NewBitStream(),
		sync:       phy.NewSynchronizer(cfg.SyncThreshold, cfg.SyncHorizon),
		onBurst:    cfg.OnBurst,
		onSyncMiss: cfg.OnSyncMiss,
		logger:     cfg.Logger,
		lastStart:  -1,
		next:       tetra.BurstContext{}.Normalize(),
	}
	if b.onBurst == nil {
		b.onBurst = func(BurstPacket) {}
	}
	if b.onSyncMiss == nil {
		b.onSyncMiss = func(*phy.SyncError) {}
	}
	return b
}

// SetContext numbers the next burst found. Later bursts are numbered from
// it by elapsed slots.
func (b *BurstAssembler) SetContext(c tetra.BurstContext) {
	c = c.Normalize()
	b.pending = &c
}

// Bursts is the number of bursts emitted since the last Reset.
func (b *BurstAssembler) Bursts() int {
	return b.count
}

func (b *BurstAssembler) Receive(bits []byte) {
	b.stream.Append(bits...)

	for {
		base := b.stream.Base()
		buf := b.stream.Bits()
		from := b.cursor - base

		res, err := b.sync.Find(buf, from)
		if err != nil {
			var syncErr *phy.SyncError
			if !errors.As(err, &syncErr) || len(buf) < b.sync.Required(from) {
				return
			}
			syncErr.From += base
			syncErr.BestPosition += base
			b.logger.Debug().Int("from", syncErr.From).Float64("best_score", syncErr.BestScore).Msg("no burst sync in search window")
			b.onSyncMiss(syncErr)
			b.advance(b.cursor + b.sync.Horizon())
			continue
		}

		burst, err := phy.ParseBurst(buf, res.Start)
		if err != nil {
			// wait for the rest of the burst
			return
		}
		burst.Start += base
		start := res.Start + base

		packet := BurstPacket{
			Index:      b.count,
			Position:   res.Position + base,
			Confidence: res.Confidence,
			Burst:      burst,
			Context:    b.contextFor(start),
			Timestamp:  time.Now().UTC(),
		}
		b.count++
		b.lastStart = start
		b.advance(start + phy.BurstLength)

		b.logger.Debug().
			Int("burst", packet.Index).
			Int("position", packet.Position).
			Float64("confidence", packet.Confidence).
			Int("ts", packet.Context.Timeslot).
			Msg("burst")
		b.onBurst(packet)
	}
}

// contextFor numbers the burst starting at absolute bit start.
func (b *BurstAssembler) contextFor(start int) tetra.BurstContext {
	if b.pending != nil {
		c := *b.pending
		b.pending = nil
		b.next = c.Next()
		return c
	}
	c := b.next
	if b.lastStart >= 0 {
		slots := int(math.Round(float64(start-b.lastStart)/phy.BurstLength)) - 1
		if slots > tetra.SlotsPerHyperframe {
			slots %= tetra.SlotsPerHyperframe
		}
		for i := 0; i < slots; i++ {
			c = c.Next()
		}
	}
	b.next = c.Next()
	return c
}

func (b *BurstAssembler) advance(cursor int) {
	b.cursor = cursor
	b.stream.Release(cursor)
}

// Reset drops buffered bits and numbering.
func (b *BurstAssembler) Reset() {
	b.stream.Reset()
	b.cursor = 0
	b.count = 0
	b.lastStart = -1
	b.next = tetra.BurstContext{}.Normalize()
	b.pending = nil
}
