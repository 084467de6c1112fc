package udp

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/norasector/tetramon/pkg/tetra"
)

const (
	maxDatagram  = 65507
	pollInterval = 250 * time.Millisecond
)

// UDPDevice receives symbols from an external demodulator, one symbol per
// byte in each datagram.
type UDPDevice struct {
	listen    string
	conn      *net.UDPConn
	frequency int
	segment   int
	buf       []byte
}

func NewUDPDevice(listen string) *UDPDevice {
	return &UDPDevice{
		listen: listen,
		buf:    make([]byte, maxDatagram),
	}
}

func (u *UDPDevice) Open(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", u.listen)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	u.conn = conn
	return nil
}

// LocalAddr is the bound address, useful when listening on port 0.
func (u *UDPDevice) LocalAddr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

func (u *UDPDevice) SetFrequency(hz int) error {
	u.frequency = hz
	return nil
}

func (u *UDPDevice) ReadSymbols(ctx context.Context) (*tetra.SymbolSegment, error) {
	if u.conn == nil {
		return nil, errors.New("udp device not open")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := u.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return nil, err
		}
		n, _, err := u.conn.ReadFromUDP(u.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, err
		}
		if n == 0 {
			continue
		}
		symbols := make([]byte, n)
		copy(symbols, u.buf[:n])
		seg := tetra.NewSymbolSegment(u.segment, symbols)
		seg.Frequency = u.frequency
		u.segment++
		return seg, nil
	}
}

func (u *UDPDevice) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
