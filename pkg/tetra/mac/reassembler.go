package mac

import (
	"container/list"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultFragmentTimeout = 30 * time.Second
	DefaultMaxBuffers      = 256
)

type fragmentBuffer struct {
	key            Key
	data           []byte
	fragments      int
	encrypted      bool
	encryptionMode int
	started        time.Time
	updated        time.Time
}

// Reassembler tracks fragmented messages per Key. It is not safe for
// concurrent use; the burst pipeline is its only writer.
type Reassembler struct {
	timeout    time.Duration
	maxBuffers int
	logger     zerolog.Logger

	buffers map[Key]*list.Element
	// front is the least recently updated buffer
	recency *list.List
}

type ReassemblerOption func(r *Reassembler)

func WithTimeout(d time.Duration) ReassemblerOption {
	return func(r *Reassembler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMaxBuffers(n int) ReassemblerOption {
	return func(r *Reassembler) {
		if n > 0 {
			r.maxBuffers = n
		}
	}
}

func WithLogger(logger zerolog.Logger) ReassemblerOption {
	return func(r *Reassembler) {
		r.logger = logger
	}
}

func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{
		timeout:    DefaultFragmentTimeout,
		maxBuffers: DefaultMaxBuffers,
		logger:     zerolog.Nop(),
		buffers:    make(map[Key]*list.Element),
		recency:    list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len is the number of open buffers.
func (r *Reassembler) Len() int {
	return len(r.buffers)
}

// HandlePayload parses a burst payload and feeds it to Process. Header
// errors become a MalformedPDU event and discard the affected buffer.
func (r *Reassembler) HandlePayload(bits []byte, now time.Time) []Event {
	pdu, err := ParsePDU(bits)
	if err != nil {
		var headerErr *HeaderError
		if !errors.As(err, &headerErr) {
			return nil
		}
		events := []Event{MalformedPDU{Err: headerErr}}
		if headerErr.HasKey {
			if buf := r.remove(headerErr.Key); buf != nil {
				events = append(events, FragmentDiscarded{
					Key:       buf.key,
					Reason:    DiscardMalformed,
					Fragments: buf.fragments,
					Bytes:     len(buf.data),
				})
			}
		}
		return events
	}
	return r.Process(pdu, now)
}

// Process advances the state machine for one PDU.
func (r *Reassembler) Process(pdu *PDU, now time.Time) []Event {
	switch pdu.Type {
	case PduResource:
		return r.start(pdu, now)
	case PduFrag, PduEnd:
		return r.append(pdu, now)
	}
	return []Event{OpaquePDU{PDU: pdu}}
}

func (r *Reassembler) start(pdu *PDU, now time.Time) []Event {
	var events []Event
	key := pdu.Key()

	if old := r.remove(key); old != nil {
		r.logger.Debug().Str("key", key.String()).Int("fragments", old.fragments).Msg("replacing stale fragment buffer")
		events = append(events, BufferReplaced{Key: key, Fragments: old.fragments, Bytes: len(old.data)})
	}
	for len(r.buffers) >= r.maxBuffers {
		oldest := r.recency.Front().Value.(*fragmentBuffer)
		r.remove(oldest.key)
		r.logger.Debug().Str("key", oldest.key.String()).Msg("evicting fragment buffer at capacity")
		events = append(events, FragmentDiscarded{
			Key:       oldest.key,
			Reason:    DiscardEvicted,
			Fragments: oldest.fragments,
			Bytes:     len(oldest.data),
		})
	}

	buf := &fragmentBuffer{
		key:            key,
		data:           append([]byte(nil), pdu.Data...),
		fragments:      1,
		encrypted:      pdu.Encrypted,
		encryptionMode: pdu.EncryptionMode,
		started:        now,
		updated:        now,
	}
	r.buffers[key] = r.recency.PushBack(buf)
	return events
}

func (r *Reassembler) append(pdu *PDU, now time.Time) []Event {
	key := pdu.Key()
	elem, ok := r.buffers[key]
	if !ok {
		return []Event{OrphanFragment{Key: key, Type: pdu.Type}}
	}
	buf := elem.Value.(*fragmentBuffer)
	buf.data = append(buf.data, pdu.Data...)
	buf.fragments++
	buf.updated = now

	if pdu.Type == PduFrag {
		r.recency.MoveToBack(elem)
		return nil
	}

	r.remove(key)
	return []Event{CompleteMessage{
		Key:            key,
		Data:           buf.data,
		Encrypted:      buf.encrypted,
		EncryptionMode: buf.encryptionMode,
		Fragments:      buf.fragments,
		Started:        buf.started,
		Completed:      now,
	}}
}

// Sweep discards buffers idle for longer than the timeout.
func (r *Reassembler) Sweep(now time.Time) []Event {
	var events []Event
	for elem := r.recency.Front(); elem != nil; elem = r.recency.Front() {
		buf := elem.Value.(*fragmentBuffer)
		idle := now.Sub(buf.updated)
		if idle <= r.timeout {
			break
		}
		r.remove(buf.key)
		events = append(events, FragmentTimeout{
			Key:       buf.key,
			Fragments: buf.fragments,
			Bytes:     len(buf.data),
			Idle:      idle,
		})
	}
	return events
}

// Reset drops every buffer without emitting messages and returns how many
// were dropped.
func (r *Reassembler) Reset() int {
	n := len(r.buffers)
	r.buffers = make(map[Key]*list.Element)
	r.recency.Init()
	return n
}

func (r *Reassembler) remove(key Key) *fragmentBuffer {
	elem, ok := r.buffers[key]
	if !ok {
		return nil
	}
	delete(r.buffers, key)
	return r.recency.Remove(elem).(*fragmentBuffer)
}
