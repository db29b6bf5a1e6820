package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// SampleRecordJSON is a complete replay document: a ranked game between two
// humans on a 45s clock with the base set plus two random units.
const SampleRecordJSON = `{
  "playerInfo": [{"displayName": "Alice", "bot": ""}, {"displayName": "Bob", "bot": ""}],
  "ratingInfo": {"initialRatings": [
    {"tier": 10, "tierPercent": 0, "displayRating": 1532.6},
    {"tier": 4, "tierPercent": 0.5, "displayRating": 812.1}
  ]},
  "timeInfo": {"useClocks": true, "playerTime": [
    {"initial": 45, "bank": 45, "increment": 45},
    {"initial": 45, "bank": 45, "increment": 45}
  ]},
  "deckInfo": {
    "base": [["Drone", "Engineer", "Blastforge"], ["Drone", "Engineer", "Blastforge"]],
    "randomizer": [["Tarsier", "Gauss Cannon"], ["Tarsier", "Gauss Cannon"]]
  },
  "format": 200,
  "startTime": 1500000000
}`

// Gzip compresses b, failing the test on error.
func Gzip(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// MockReplayServer serves compressed replay blobs by file name
// ("<code>.json.gz") and counts requests.
type MockReplayServer struct {
	*httptest.Server

	mu       sync.Mutex
	blobs    map[string][]byte
	statuses map[string]int
	hits     atomic.Int64
}

// NewMockReplayServer starts a server; unknown names answer 404.
func NewMockReplayServer(t *testing.T) *MockReplayServer {
	t.Helper()
	m := &MockReplayServer{
		blobs:    make(map[string][]byte),
		statuses: make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/")
		m.mu.Lock()
		status, forced := m.statuses[name]
		blob, ok := m.blobs[name]
		m.mu.Unlock()
		if forced {
			w.WriteHeader(status)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(blob) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// URLTemplate returns a data URL template pointing at the server.
func (m *MockReplayServer) URLTemplate() string { return m.URL + "/%CODE%.json.gz" }

// Put registers blob for code.
func (m *MockReplayServer) Put(code string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[code+".json.gz"] = blob
}

// FailWith makes requests for code answer status.
func (m *MockReplayServer) FailWith(code string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[code+".json.gz"] = status
}

// Hits returns the number of requests served so far.
func (m *MockReplayServer) Hits() int64 { return m.hits.Load() }
