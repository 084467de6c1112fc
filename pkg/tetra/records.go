package tetra

import (
	"time"

	"github.com/norasector/tetramon/pkg/tetra/voice"
)

// Position is a decoded location report attached to a message.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MessageRecord is a decoded short data message as handed to outputs. It
// is not modified once emitted.
type MessageRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Frequency   int       `json:"frequency,omitempty"`
	Source      uint32    `json:"source"`
	Destination uint32    `json:"destination"`
	MessageID   int       `json:"message_id"`
	Fragments   int       `json:"fragments"`

	Encrypted bool    `json:"encrypted"`
	Decrypted bool    `json:"decrypted"`
	Algorithm string  `json:"algorithm,omitempty"`
	KeyLabel  string  `json:"key_label,omitempty"`
	Score     float64 `json:"score,omitempty"`

	Kind     string    `json:"kind"`
	Encoding string    `json:"encoding,omitempty"`
	Format   string    `json:"format,omitempty"`
	Text     string    `json:"text,omitempty"`
	Data     []byte    `json:"data,omitempty"`
	Location *Position `json:"location,omitempty"`

	Context BurstContext `json:"context"`
}

// VoiceRecord is one traffic burst formatted for the speech decoder.
type VoiceRecord struct {
	Frame     *voice.Frame
	Context   BurstContext
	Frequency int
	Burst     int
	Timestamp time.Time
}

// NetworkInfo is the cell identity last seen in a broadcast.
type NetworkInfo struct {
	MCC        int `json:"mcc"`
	MNC        int `json:"mnc"`
	ColourCode int `json:"colour_code"`
}

// Assignment is a channel allocation read from RESOURCE data.
type Assignment struct {
	Group     bool   `json:"group"`
	Talkgroup uint32 `json:"talkgroup"`
	Channel   int    `json:"channel"`
	Encrypted bool   `json:"encrypted"`
	Priority  int    `json:"priority"`
	CallID    int    `json:"call_id"`
}

// Stats counts pipeline activity for one capture session.
type Stats struct {
	SessionID string    `json:"session_id"`
	Started   time.Time `json:"started"`
	LastBurst time.Time `json:"last_burst,omitempty"`

	Symbols        int64 `json:"symbols"`
	InvalidSymbols int64 `json:"invalid_symbols"`
	Bursts         int64 `json:"bursts"`
	ControlBursts  int64 `json:"control_bursts"`
	TrafficBursts  int64 `json:"traffic_bursts"`
	SyncMisses     int64 `json:"sync_misses"`
	VoiceFrames    int64 `json:"voice_frames"`

	Messages        int64 `json:"messages"`
	TextMessages    int64 `json:"text_messages"`
	BinaryMessages  int64 `json:"binary_messages"`
	Encrypted       int64 `json:"encrypted"`
	Decrypted       int64 `json:"decrypted"`
	DecryptFailures int64 `json:"decrypt_failures"`

	OrphanFragments    int64 `json:"orphan_fragments"`
	FragmentTimeouts   int64 `json:"fragment_timeouts"`
	DiscardedFragments int64 `json:"discarded_fragments"`
	ReplacedBuffers    int64 `json:"replaced_buffers"`
	MalformedPDUs      int64 `json:"malformed_pdus"`
	OpaquePDUs         int64 `json:"opaque_pdus"`

	ResourceAssignments int64 `json:"resource_assignments"`

	Network        *NetworkInfo `json:"network,omitempty"`
	LastAssignment *Assignment  `json:"last_assignment,omitempty"`
}
