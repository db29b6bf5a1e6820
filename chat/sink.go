package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/onnwee/replaybot/bot"
	"github.com/onnwee/replaybot/telemetry"
)

// MaxMessageLength is Twitch's limit for one chat message.
const MaxMessageLength = 500

const whisperPrefix = "whisper:"

// ErrUnknownHandle is returned for placeholders that were never posted or were already resolved.
var ErrUnknownHandle = errors.New("chat: unknown placeholder handle")

// WhisperConversation returns the conversation id for whispers with userID.
func WhisperConversation(userID string) string { return whisperPrefix + userID }

// Whisperer delivers private messages.
type Whisperer interface {
	SendWhisper(ctx context.Context, fromUserID, toUserID, message string) error
}

type sayer interface {
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
}

// Sink posts notifications to Twitch channels and whispers.
type Sink struct {
	irc       sayer
	whisperer Whisperer
	botUserID string
	limiter   *rate.Limiter

	mu      sync.Mutex
	pending map[bot.Handle]string
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithRate paces outbound messages at perSecond with the given burst.
func WithRate(perSecond float64, burst int) SinkOption {
	return func(s *Sink) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithWhispers enables private conversations through w, sending as botUserID.
func WithWhispers(w Whisperer, botUserID string) SinkOption {
	return func(s *Sink) {
		s.whisperer = w
		s.botUserID = botUserID
	}
}

// NewSink returns a sink writing to irc. Without WithRate it is unpaced.
func NewSink(irc sayer, opts ...SinkOption) *Sink {
	s := &Sink{irc: irc, limiter: rate.NewLimiter(rate.Inf, 1), pending: make(map[bot.Handle]string)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PostPlaceholder reserves a handle for conv. Nothing is sent yet.
func (s *Sink) PostPlaceholder(_ context.Context, conv string, _ bot.Notification) (bot.Handle, error) {
	if _, _, err := s.target(conv); err != nil {
		return "", err
	}
	h := bot.Handle(uuid.NewString())
	s.mu.Lock()
	s.pending[h] = conv
	s.mu.Unlock()
	return h, nil
}

// Update sends the final notification for h.
func (s *Sink) Update(ctx context.Context, h bot.Handle, n bot.Notification) error {
	conv, err := s.take(h)
	if err != nil {
		return err
	}
	return s.deliver(ctx, conv, "", n.Text())
}

// Retract drops the placeholder for h.
func (s *Sink) Retract(_ context.Context, h bot.Handle) error {
	_, err := s.take(h)
	return err
}

// Send posts n to conv immediately.
func (s *Sink) Send(ctx context.Context, conv string, n bot.Notification) error {
	return s.deliver(ctx, conv, "", n.Text())
}

// Reply answers a message in conv; failures are logged.
func (s *Sink) Reply(ctx context.Context, conv, parentMsgID, text string) {
	if err := s.deliver(ctx, conv, parentMsgID, text); err != nil {
		telemetry.NotificationFailed("reply")
		slog.Warn("failed to send reply", slog.String("conversation", conv), slog.Any("err", err), slog.String("component", "chat"))
	}
}

// Pending returns the number of unresolved placeholders.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Sink) take(h bot.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.pending[h]
	if !ok {
		return "", ErrUnknownHandle
	}
	delete(s.pending, h)
	return conv, nil
}

// target splits conv into a channel name or a whisper recipient.
func (s *Sink) target(conv string) (channel, userID string, err error) {
	switch {
	case strings.HasPrefix(conv, "#") && len(conv) > 1:
		return conv[1:], "", nil
	case strings.HasPrefix(conv, whisperPrefix) && len(conv) > len(whisperPrefix):
		if s.whisperer == nil {
			return "", "", errors.New("chat: whispers not configured")
		}
		return "", strings.TrimPrefix(conv, whisperPrefix), nil
	default:
		return "", "", fmt.Errorf("chat: unknown conversation %q", conv)
	}
}

func (s *Sink) deliver(ctx context.Context, conv, parentMsgID, text string) error {
	channel, userID, err := s.target(conv)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chat: rate limit wait: %w", err)
	}
	text = truncate(text, MaxMessageLength)
	if userID != "" {
		return s.whisperer.SendWhisper(ctx, s.botUserID, userID, text)
	}
	if parentMsgID != "" {
		s.irc.Reply(channel, parentMsgID, text)
		return nil
	}
	s.irc.Say(channel, text)
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
