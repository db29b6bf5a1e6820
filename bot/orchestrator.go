// Package bot turns chat messages into replay and unit notifications.
//
// The Orchestrator scans each message, drops references surfaced recently in
// the same shared conversation, resolves replay codes through a read-through
// store and posts the results to a Sink. Every reference is handled
// independently; a failure on one never affects its siblings.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/replaybot/recency"
	"github.com/onnwee/replaybot/replay"
	"github.com/onnwee/replaybot/scan"
	"github.com/onnwee/replaybot/telemetry"
	"github.com/onnwee/replaybot/unit"
)

// Message is an incoming chat message.
type Message struct {
	ID             string
	ConversationID string
	// Private is true for one-to-one conversations; they skip duplicate suppression.
	Private bool
	Author  string
	Text    string
}

// Handle identifies a posted placeholder.
type Handle string

// Sink delivers notifications to the chat transport.
type Sink interface {
	PostPlaceholder(ctx context.Context, conv string, n Notification) (Handle, error)
	Update(ctx context.Context, h Handle, n Notification) error
	Retract(ctx context.Context, h Handle) error
	Send(ctx context.Context, conv string, n Notification) error
}

// Resolver returns decoded game records for replay codes.
type Resolver interface {
	Resolve(ctx context.Context, code replay.Code) (*replay.GameRecord, error)
}

// Config holds the orchestrator's tunables.
type Config struct {
	ReplayLinkURL  string
	UnitLinkURL    string
	UnitImageURL   string
	MaxCodes       int
	MaxUnits       int
	ReplayInterval time.Duration
	UnitInterval   time.Duration
	IgnoredWords   []string
	IgnoredAliases []string
}

// Orchestrator composes scanning, duplicate suppression, resolution and
// notification for each message.
type Orchestrator struct {
	cfg      Config
	codes    scan.Codes
	units    scan.Units
	catalog  unit.Catalog
	resolver Resolver
	sink     Sink

	replayRecent *recency.Window
	unitRecent   *recency.Window
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used by both recency windows.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.replayRecent = recency.New(o.cfg.ReplayInterval, recency.WithClock(now))
		o.unitRecent = recency.New(o.cfg.UnitInterval, recency.WithClock(now))
	}
}

// New builds an orchestrator. The alias table is derived from catalog once.
func New(cfg Config, catalog unit.Catalog, resolver Resolver, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:          cfg,
		codes:        scan.Codes{Ignored: cfg.IgnoredWords, Max: cfg.MaxCodes},
		units:        scan.Units{Aliases: unit.BuildAliases(catalog, cfg.IgnoredAliases), Max: cfg.MaxUnits},
		catalog:      catalog,
		resolver:     resolver,
		sink:         sink,
		replayRecent: recency.New(cfg.ReplayInterval),
		unitRecent:   recency.New(cfg.UnitInterval),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage processes one message and returns once every reference in it
// has been notified or has failed.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg Message) {
	ctx, _ = telemetry.NewCorrelation(ctx)
	ctx, span := telemetry.StartSpan(ctx, "bot.handle_message",
		telemetry.Conversation(msg.ConversationID),
		telemetry.Private(msg.Private),
	)
	defer span.End()
	telemetry.MessageHandled()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "orchestrator"))

	codes := o.scanCodes(log, msg)
	units := o.scanUnits(log, msg)
	if len(codes) == 0 && len(units) == 0 {
		return
	}
	log.Info("references found",
		slog.String("author", msg.Author),
		slog.String("conversation", msg.ConversationID),
		slog.Any("replays", codes),
		slog.Any("units", units),
		slog.String("msg_id", msg.ID),
	)
	span.SetAttributes(attribute.Int("replays", len(codes)), attribute.Int("units", len(units)))

	var g errgroup.Group
	for _, code := range codes {
		g.Go(func() error {
			o.surfaceReplay(ctx, log, msg.ConversationID, code)
			return nil
		})
	}
	for _, name := range units {
		g.Go(func() error {
			o.surfaceUnit(ctx, log, msg.ConversationID, name)
			return nil
		})
	}
	_ = g.Wait()
	telemetry.SetSpanSuccess(span)
}

func (o *Orchestrator) scanCodes(log *slog.Logger, msg Message) []replay.Code {
	found, err := o.codes.Scan(msg.Text)
	if err != nil {
		o.dropBatch(log, "replay", err)
		return nil
	}
	telemetry.ReferenceScanned("replay", len(found))
	if msg.Private || len(found) == 0 {
		return found
	}
	keys := make([]string, len(found))
	for i, c := range found {
		keys[i] = string(c)
	}
	admitted := o.replayRecent.Admit(msg.ConversationID, keys)
	telemetry.ReferenceSuppressed("replay", "recent", len(keys)-len(admitted))
	o.replayRecent.Record(msg.ConversationID, admitted)

	out := make([]replay.Code, len(admitted))
	for i, k := range admitted {
		out[i] = replay.Code(k)
	}
	return out
}

func (o *Orchestrator) scanUnits(log *slog.Logger, msg Message) []string {
	found, err := o.units.Tagged(msg.Text)
	if err == nil && msg.Private && len(found) == 0 {
		found, err = o.units.Loose(msg.Text)
	}
	if err != nil {
		o.dropBatch(log, "unit", err)
		return nil
	}
	telemetry.ReferenceScanned("unit", len(found))
	if msg.Private || len(found) == 0 {
		return found
	}
	admitted := o.unitRecent.Admit(msg.ConversationID, found)
	telemetry.ReferenceSuppressed("unit", "recent", len(found)-len(admitted))
	o.unitRecent.Record(msg.ConversationID, admitted)
	return admitted
}

func (o *Orchestrator) dropBatch(log *slog.Logger, kind string, err error) {
	var tm *scan.TooManyError
	if errors.As(err, &tm) {
		telemetry.ReferenceSuppressed(kind, "too_many", tm.Found)
		log.Debug("too many references, ignoring message", slog.String("kind", kind), slog.Int("found", tm.Found), slog.Int("max", tm.Max))
		return
	}
	log.Warn("reference scan failed", slog.String("kind", kind), slog.Any("err", err))
}

type resolution struct {
	rec *replay.GameRecord
	err error
}

func (o *Orchestrator) surfaceReplay(ctx context.Context, log *slog.Logger, conv string, code replay.Code) {
	log = log.With(slog.String("code", code.String()))

	// Resolution starts before the placeholder is posted so the two overlap.
	done := make(chan resolution, 1)
	go func() {
		rec, err := o.resolver.Resolve(ctx, code)
		done <- resolution{rec: rec, err: err}
	}()

	h, postErr := o.sink.PostPlaceholder(ctx, conv, o.placeholderNotification(code))
	res := <-done
	if postErr != nil {
		telemetry.NotificationFailed("post")
		log.Error("failed to post placeholder", slog.Any("err", postErr))
		return
	}

	n, err := o.render(code, res)
	if err != nil {
		class := replay.ClassOf(err)
		log.Error("failed to get replay data", slog.String("class", class.String()), slog.Any("err", err))
		if class == replay.ClassNotFound && code.Suspicious() {
			if err := o.sink.Retract(ctx, h); err != nil {
				telemetry.NotificationFailed("retract")
				log.Error("failed to retract placeholder", slog.Any("err", err))
			}
			return
		}
		n = o.errorNotification(code, class)
	}
	if err := o.sink.Update(ctx, h, n); err != nil {
		telemetry.NotificationFailed("update")
		log.Error("failed to update placeholder", slog.Any("err", err))
	}
}

func (o *Orchestrator) render(code replay.Code, res resolution) (Notification, error) {
	if res.err != nil {
		return Notification{}, res.err
	}
	sum, err := replay.Summarize(res.rec)
	if err != nil {
		return Notification{}, err
	}
	return o.replayNotification(code, sum), nil
}

func (o *Orchestrator) surfaceUnit(ctx context.Context, log *slog.Logger, conv, name string) {
	r, ok := o.catalog.Get(name)
	if !ok {
		log.Warn("alias resolved to unknown unit", slog.String("unit", name))
		return
	}
	if err := o.sink.Send(ctx, conv, o.unitNotification(r)); err != nil {
		telemetry.NotificationFailed("send")
		log.Error("failed to send unit notification", slog.String("unit", name), slog.Any("err", err))
	}
}
