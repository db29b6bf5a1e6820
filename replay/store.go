package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/replaybot/telemetry"
)

// Storage is a byte store for compressed records keyed by replay code.
// Read returns ErrCacheMiss when the key is absent.
type Storage interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, blob []byte) error
}

// Fetcher downloads the compressed record for a code from the remote store.
// Implementations classify failures with *Error (ClassNotFound or ClassNetwork).
type Fetcher interface {
	Fetch(ctx context.Context, code Code) ([]byte, error)
}

// Store is a read-through cache of decoded game records.
type Store struct {
	storage Storage
	fetcher Fetcher

	group  singleflight.Group
	writes sync.WaitGroup
}

// NewStore returns a Store reading through storage to fetcher.
func NewStore(storage Storage, fetcher Fetcher) *Store {
	return &Store{storage: storage, fetcher: fetcher}
}

// Resolve returns the record for code, from the cache when a valid entry
// exists and from the remote store otherwise. A freshly fetched record is
// returned before its cache write completes; the write happens in the
// background and its failure is only logged.
func (s *Store) Resolve(ctx context.Context, code Code) (*GameRecord, error) {
	if !IsCode(string(code)) {
		return nil, fmt.Errorf("resolve: invalid replay code %q", code)
	}
	ctx, span := telemetry.StartSpan(ctx, "replay.resolve", telemetry.ReplayCode(string(code)))
	defer span.End()
	start := time.Now()
	defer func() { telemetry.ObserveResolve(time.Since(start)) }()

	if rec, ok := s.load(ctx, code); ok {
		telemetry.CacheHit()
		return rec, nil
	}
	telemetry.CacheMiss()

	// The shared download outlives any single caller; each caller stops
	// waiting when its own ctx ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(string(code), func() (any, error) {
		return s.fetch(fetchCtx, code)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = classify(ClassNetwork, code, ctx.Err())
	}
	if res.Err != nil {
		telemetry.FetchFailed(ClassOf(res.Err).String())
		telemetry.RecordError(span, res.Err)
		return nil, res.Err
	}
	telemetry.SetSpanSuccess(span)
	return res.Val.(*GameRecord), nil
}

// Wait blocks until background cache writes started so far have finished.
func (s *Store) Wait() { s.writes.Wait() }

// load reads a cache entry. Unreadable or corrupt entries count as a miss.
func (s *Store) load(ctx context.Context, code Code) (*GameRecord, bool) {
	blob, err := s.storage.Read(ctx, string(code))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("replay cache read failed", slog.String("code", string(code)), slog.Any("err", err), slog.String("component", "replay_store"))
		}
		return nil, false
	}
	rec, err := Decode(blob)
	if err != nil {
		slog.Warn("corrupt replay cache entry ignored", slog.String("code", string(code)), slog.Any("err", err), slog.String("component", "replay_store"))
		return nil, false
	}
	return rec, true
}

func (s *Store) fetch(ctx context.Context, code Code) (*GameRecord, error) {
	slog.Info("downloading replay data", slog.String("code", string(code)), slog.String("component", "replay_store"))
	blob, err := s.fetcher.Fetch(ctx, code)
	if err != nil {
		if ClassOf(err) == ClassUnknown {
			return nil, classify(ClassNetwork, code, err)
		}
		return nil, err
	}
	rec, err := Decode(blob)
	if err != nil {
		return nil, classify(ClassInvalidData, code, err)
	}

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.storage.Write(ctx, string(code), blob); err != nil {
			telemetry.CacheWriteFailed()
			slog.Error("failed to save replay data to cache", slog.String("code", string(code)), slog.Any("err", err), slog.String("component", "replay_store"))
			return
		}
		slog.Debug("replay saved to cache", slog.String("code", string(code)), slog.String("component", "replay_store"))
	}()
	return rec, nil
}
