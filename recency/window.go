// Package recency suppresses references that were surfaced recently in the
// same conversation.
package recency

import (
	"sync"
	"time"
)

// Window remembers when each key was last surfaced per conversation. A key is
// suppressed while no more than Interval has elapsed since it was recorded.
// Entries older than Interval are evicted lazily when their conversation is
// next touched. The zero value is not usable; call New.
type Window struct {
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	convs map[string]map[string]time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// New returns an empty window with the given suppression interval.
func New(interval time.Duration, opts ...Option) *Window {
	w := &Window{interval: interval, now: time.Now, convs: make(map[string]map[string]time.Time)}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Interval returns the suppression interval.
func (w *Window) Interval() time.Duration { return w.interval }

// Admit returns the keys of conv that are not currently suppressed, in order.
func (w *Window) Admit(conv string, keys []string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := w.touch(conv)
	var out []string
	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Record marks keys of conv as surfaced now. Later records overwrite earlier ones.
func (w *Window) Record(conv string, keys []string) {
	if len(keys) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := w.touch(conv)
	now := w.now()
	for _, k := range keys {
		seen[k] = now
	}
}

// Len returns the number of live entries for conv.
func (w *Window) Len(conv string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.touch(conv))
}

// touch evicts stale entries of conv and returns its map. Callers hold mu.
func (w *Window) touch(conv string) map[string]time.Time {
	seen, ok := w.convs[conv]
	if !ok {
		seen = make(map[string]time.Time)
		w.convs[conv] = seen
		return seen
	}
	cutoff := w.now().Add(-w.interval)
	for k, t := range seen {
		if t.Before(cutoff) {
			delete(seen, k)
		}
	}
	return seen
}
