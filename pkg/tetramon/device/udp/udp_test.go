package udp

import (
	"context"
	"net"
	"reflect"
	"testing"
	"time"
)

func TestUDPDevice(t *testing.T) {
	d := NewUDPDevice("127.0.0.1:0")
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	conn, err := net.Dial("udp", d.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte{1, 3, 5, 7}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seg, err := d.ReadSymbols(ctx)
	if err != nil {
		t.Fatalf("ReadSymbols() error = %v", err)
	}
	if !reflect.DeepEqual(seg.Data, []byte{1, 3, 5, 7}) || seg.SegmentNumber != 0 {
		t.Errorf("segment = %+v", seg)
	}
}

func TestUDPDeviceCancelled(t *testing.T) {
	d := NewUDPDevice("127.0.0.1:0")
	if err := d.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := d.ReadSymbols(ctx); err != context.DeadlineExceeded {
		t.Errorf("ReadSymbols() error = %v, want deadline exceeded", err)
	}
}
