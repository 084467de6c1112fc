package tetramon

import (
	"context"

	"github.com/norasector/tetramon/pkg/tetra"
)

// MessageOutput handles decoded short data messages.
type MessageOutput interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives decoded messages.
	Receive() chan<- *tetra.MessageRecord
}

// VoiceOutput handles traffic frames formatted for the speech decoder.
type VoiceOutput interface {
	Start(ctx context.Context) error
	Receive() chan<- *tetra.VoiceRecord
}
