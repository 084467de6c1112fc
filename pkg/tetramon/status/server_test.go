package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/norasector/tetramon/pkg/tetra"
)

type fakeSource struct {
	stats    tetra.Stats
	messages []*tetra.MessageRecord
	registry *prometheus.Registry
}

func (f *fakeSource) Stats() tetra.Stats                     { return f.stats }
func (f *fakeSource) RecentMessages() []*tetra.MessageRecord { return f.messages }
func (f *fakeSource) Gatherer() prometheus.Gatherer          { return f.registry }

func newFakeSource() *fakeSource {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tetramon_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)
	return &fakeSource{
		stats: tetra.Stats{SessionID: "abc", Bursts: 12, Messages: 2},
		messages: []*tetra.MessageRecord{
			{ID: "1", Kind: "text", Text: "first"},
			{ID: "2", Kind: "binary", Data: []byte{1, 2}},
		},
		registry: reg,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStats(t *testing.T) {
	s := NewServer(0)
	if rec := get(t, s.Handler(), "/stats"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/stats without source = %d", rec.Code)
	}

	s.SetSource(newFakeSource())
	rec := get(t, s.Handler(), "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("/stats = %d", rec.Code)
	}
	var got tetra.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "abc" || got.Bursts != 12 || got.Messages != 2 {
		t.Errorf("/stats = %+v", got)
	}
}

func TestRecentMessages(t *testing.T) {
	s := NewServer(0)
	s.SetSource(newFakeSource())

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantIDs  []string
	}{
		{"all", "/messages/recent", http.StatusOK, []string{"1", "2"}},
		{"limited", "/messages/recent?limit=1", http.StatusOK, []string{"2"}},
		{"large limit", "/messages/recent?limit=10", http.StatusOK, []string{"1", "2"}},
		{"bad limit", "/messages/recent?limit=x", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s.Handler(), tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantIDs == nil {
				return
			}
			var got []tetra.MessageRecord
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d messages, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("message %d id = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	s := NewServer(0)
	s.SetSource(newFakeSource())
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tetramon_test_total 3") {
		t.Errorf("/metrics body missing counter:\n%s", rec.Body.String())
	}
}
