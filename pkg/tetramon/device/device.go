package device

import (
	"context"

	"github.com/norasector/tetramon/pkg/tetra"
)

// Device delivers demodulated symbols. ReadSymbols blocks until a segment
// is available, the context is cancelled, or the source is exhausted
// (io.EOF).
type Device interface {
	Open(ctx context.Context) error
	SetFrequency(hz int) error
	ReadSymbols(ctx context.Context) (*tetra.SymbolSegment, error)
	Close() error
}
