package mac

import "time"

// Event is emitted by the Reassembler. Concrete types are listed below.
type Event interface {
	Kind() string
}

// CompleteMessage is a fully reassembled message. Data is owned by the
// receiver.
type CompleteMessage struct {
	Key            Key
	Data           []byte
	Encrypted      bool
	EncryptionMode int
	Fragments      int
	Started        time.Time
	Completed      time.Time
}

type OrphanFragment struct {
	Key  Key
	Type PduType
}

type FragmentTimeout struct {
	Key       Key
	Fragments int
	Bytes     int
	Idle      time.Duration
}

type DiscardReason string

const (
	DiscardEvicted   DiscardReason = "evicted"
	DiscardMalformed DiscardReason = "malformed"
)

type FragmentDiscarded struct {
	Key       Key
	Reason    DiscardReason
	Fragments int
	Bytes     int
}

// BufferReplaced is emitted when a RESOURCE arrives for a key that still
// had an unfinished buffer.
type BufferReplaced struct {
	Key       Key
	Fragments int
	Bytes     int
}

// OpaquePDU carries PDU types the reassembler does not handle.
type OpaquePDU struct {
	PDU *PDU
}

type MalformedPDU struct {
	Err *HeaderError
}

func (CompleteMessage) Kind() string   { return "complete_message" }
func (OrphanFragment) Kind() string    { return "orphan_fragment" }
func (FragmentTimeout) Kind() string   { return "fragment_timeout" }
func (FragmentDiscarded) Kind() string { return "fragment_discarded" }
func (BufferReplaced) Kind() string    { return "buffer_replaced" }
func (OpaquePDU) Kind() string         { return "opaque_pdu" }
func (MalformedPDU) Kind() string      { return "malformed_pdu" }
