package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingPruner) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 1, p.err
}

func (p *recordingPruner) calls() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.cutoffs...)
}

func waitForCalls(t *testing.T, p *recordingPruner, n int) []time.Time {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c := p.calls(); len(c) >= n {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d prune calls, got %d", n, len(p.calls()))
	return nil
}

func TestStartPruneJobDisabled(t *testing.T) {
	p := &recordingPruner{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	StartPruneJob(ctx, p, 5*time.Millisecond, 0)
	<-ctx.Done()

	if n := len(p.calls()); n != 0 {
		t.Errorf("disabled job pruned %d times", n)
	}
}

func TestStartPruneJobRunsImmediatelyAndRepeats(t *testing.T) {
	p := &recordingPruner{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := time.Now()
	StartPruneJob(ctx, p, 10*time.Millisecond, time.Hour)
	calls := waitForCalls(t, p, 2)

	cutoff := calls[0]
	if cutoff.After(before.Add(-time.Hour).Add(time.Second)) || cutoff.Before(before.Add(-time.Hour).Add(-time.Second)) {
		t.Errorf("cutoff = %v, want about %v", cutoff, before.Add(-time.Hour))
	}
}

func TestStartPruneJobKeepsRunningAfterError(t *testing.T) {
	p := &recordingPruner{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPruneJob(ctx, p, 10*time.Millisecond, time.Minute)
	waitForCalls(t, p, 3)
}
