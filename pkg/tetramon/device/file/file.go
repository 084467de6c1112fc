package file

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/norasector/tetramon/pkg/tetra"
)

// FileDevice replays a symbol capture, one symbol per byte, paced at
// readSize symbols every timeBetween.
type FileDevice struct {
	path        string
	readFile    *os.File
	readSize    int
	timeBetween time.Duration
	tick        *time.Ticker
	frequency   int
	segment     int
}

func NewFileDevice(path string, readSize int, timeBetween time.Duration) *FileDevice {
	if readSize <= 0 {
		readSize = 4096
	}
	return &FileDevice{
		path:        path,
		readSize:    readSize,
		timeBetween: timeBetween,
	}
}

func (f *FileDevice) Open(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	f.readFile = file
	if f.timeBetween > 0 {
		f.tick = time.NewTicker(f.timeBetween)
	}
	return nil
}

func (f *FileDevice) SetFrequency(hz int) error {
	f.frequency = hz
	return nil
}

func (f *FileDevice) ReadSymbols(ctx context.Context) (*tetra.SymbolSegment, error) {
	if f.readFile == nil {
		return nil, errors.New("file device not open")
	}
	if f.tick != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.tick.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, f.readSize)
	n, err := f.readFile.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	seg := tetra.NewSymbolSegment(f.segment, buf[:n])
	seg.Frequency = f.frequency
	f.segment++
	return seg, nil
}

func (f *FileDevice) Close() error {
	if f.tick != nil {
		f.tick.Stop()
	}
	if f.readFile == nil {
		return nil
	}
	return f.readFile.Close()
}
