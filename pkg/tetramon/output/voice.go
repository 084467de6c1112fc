package output

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetra/voice"
)

const (
	frameBufferLength = 8
	frameFlushWait    = 250 * time.Millisecond
)

// VoiceFrameOutput writes 1380-byte speech decoder frames to dest, batched
// in groups of frameBufferLength.
type VoiceFrameOutput struct {
	dest     io.Writer
	recvChan chan *tetra.VoiceRecord
}

func NewVoiceFrameOutput(dest io.Writer) *VoiceFrameOutput {
	return &VoiceFrameOutput{
		dest:     dest,
		recvChan: make(chan *tetra.VoiceRecord, frameBufferLength),
	}
}

func (s *VoiceFrameOutput) Receive() chan<- *tetra.VoiceRecord {
	return s.recvChan
}

func (s *VoiceFrameOutput) Start(ctx context.Context) error {
	b := bytes.NewBuffer(make([]byte, 0, voice.FrameBytes*frameBufferLength))
	bufNum := 0

	flush := func() error {
		if bufNum == 0 {
			return nil
		}
		_, err := b.WriteTo(s.dest)
		b.Reset()
		bufNum = 0
		return err
	}
	add := func(rec *tetra.VoiceRecord) error {
		if _, err := rec.Frame.WriteTo(b); err != nil {
			return err
		}
		bufNum++
		if bufNum == frameBufferLength {
			return flush()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.recvChan:
					if err := add(rec); err != nil {
						return err
					}
				default:
					if err := flush(); err != nil {
						return err
					}
					return ctx.Err()
				}
			}

		case <-time.After(frameFlushWait):
			if err := flush(); err != nil {
				return err
			}

		case rec := <-s.recvChan:
			if err := add(rec); err != nil {
				return err
			}
		}
	}
}
