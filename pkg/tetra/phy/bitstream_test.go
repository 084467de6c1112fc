package phy

import (
	"reflect"
	"testing"
)

func TestBitStream(t *testing.T) {
	s := NewBitStream()
	s.Append(0, 1, 1, 0, 1)
	s.Append(1, 1)
	if s.End() != 7 {
		t.Fatalf("End() = %d, want 7", s.End())
	}

	s.Release(3)
	if s.Base() != 3 || s.End() != 7 {
		t.Errorf("after Release(3) Base/End = %d/%d, want 3/7", s.Base(), s.End())
	}
	if got := s.Slice(3, 6); !reflect.DeepEqual(got, []byte{0, 1, 1}) {
		t.Errorf("Slice(3, 6) = %v", got)
	}
	if got := s.Bits(); !reflect.DeepEqual(got, []byte{0, 1, 1, 1}) {
		t.Errorf("Bits() = %v", got)
	}

	s.Release(2)
	if s.Base() != 3 {
		t.Errorf("Release behind base moved base to %d", s.Base())
	}
	s.Release(100)
	if s.Base() != 7 || len(s.Bits()) != 0 {
		t.Errorf("Release past end: Base %d len %d", s.Base(), len(s.Bits()))
	}

	s.Reset()
	if s.Base() != 0 || s.End() != 0 {
		t.Errorf("Reset() Base/End = %d/%d", s.Base(), s.End())
	}
}

func TestBitStreamSliceReleased(t *testing.T) {
	s := NewBitStream()
	s.Append(1, 1, 1, 1)
	s.Release(2)
	defer func() {
		if recover() == nil {
			t.Error("Slice() of released bits did not panic")
		}
	}()
	s.Slice(1, 3)
}
