package util

import (
	"sync/atomic"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI is the write API the monitor and outputs fall back to when
// no influxdb host is configured. Burst, message and decrypt points are
// counted and then dropped.
type MockWriteAPI struct {
	points int64
}

func (m *MockWriteAPI) WriteRecord(line string) {
	atomic.AddInt64(&m.points, 1)
}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	atomic.AddInt64(&m.points, 1)
}

// Points is the number of points and records written so far.
func (m *MockWriteAPI) Points() int64 {
	return atomic.LoadInt64(&m.points)
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }
