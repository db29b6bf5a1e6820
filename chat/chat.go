package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/replaybot/bot"
	"github.com/onnwee/replaybot/telemetry"
)

// Handler consumes chat messages.
type Handler interface {
	HandleMessage(ctx context.Context, msg bot.Message)
}

// ircClient is the subset of *twitch.Client the bridge uses.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnWhisperMessage(func(twitch.WhisperMessage))
	Join(channels ...string)
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
	Connect() error
	Disconnect() error
}

const (
	pingCommand = "!ping"
	pongReply   = "pong"

	// maxInFlight bounds concurrently handled messages.
	maxInFlight = 16
)

// Bridge feeds Twitch chat into a Handler.
type Bridge struct {
	client   ircClient
	username string
	channels []string
	handler  Handler
	sink     *Sink

	sem       chan struct{}
	wg        sync.WaitGroup
	connected atomic.Bool
}

// NewBridge creates an IRC client for username and wires it to handler. The
// returned sink posts through the same connection.
func NewBridge(username, oauthToken string, channels []string, handler Handler, sinkOpts ...SinkOption) (*Bridge, *Sink) {
	client := twitch.NewClient(username, ensureOAuthPrefix(oauthToken))
	return newBridge(client, username, channels, handler, sinkOpts...)
}

func newBridge(client ircClient, username string, channels []string, handler Handler, sinkOpts ...SinkOption) (*Bridge, *Sink) {
	sink := NewSink(client, sinkOpts...)
	b := &Bridge{
		client:   client,
		username: username,
		channels: normalizeChannels(channels),
		handler:  handler,
		sink:     sink,
		sem:      make(chan struct{}, maxInFlight),
	}
	return b, sink
}

// Connected reports whether the IRC connection is up.
func (b *Bridge) Connected() bool { return b.connected.Load() }

// Run connects, joins the channels and blocks until ctx is done or the
// connection fails. In-flight messages are drained before it returns.
func (b *Bridge) Run(ctx context.Context) error {
	if len(b.channels) == 0 {
		return errors.New("chat: no channels configured")
	}
	b.client.OnConnect(func() {
		b.connected.Store(true)
		telemetry.SetChatConnected(true)
		slog.Info("twitch chat connected", slog.Any("channels", b.channels), slog.String("component", "chat"))
	})
	b.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.onChannelMessage(ctx, msg)
	})
	b.client.OnWhisperMessage(func(msg twitch.WhisperMessage) {
		b.onWhisper(ctx, msg)
	})

	// Handle context cancellation by closing the client
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.client.Disconnect()
		case <-stop:
		}
	}()

	b.client.Join(b.channels...)
	err := b.client.Connect()
	b.connected.Store(false)
	telemetry.SetChatConnected(false)
	b.wg.Wait()
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bridge) onChannelMessage(ctx context.Context, msg twitch.PrivateMessage) {
	if b.isSelf(msg.User.Name) {
		return
	}
	conv := "#" + msg.Channel
	if strings.TrimSpace(msg.Message) == pingCommand {
		b.sink.Reply(ctx, conv, msg.ID, pongReply)
		return
	}
	b.dispatch(ctx, bot.Message{
		ID:             msg.ID,
		ConversationID: conv,
		Author:         msg.User.DisplayName,
		Text:           msg.Message,
	})
}

func (b *Bridge) onWhisper(ctx context.Context, msg twitch.WhisperMessage) {
	if b.isSelf(msg.User.Name) {
		return
	}
	conv := WhisperConversation(msg.User.ID)
	if strings.TrimSpace(msg.Message) == pingCommand {
		b.sink.Reply(ctx, conv, "", pongReply)
		return
	}
	b.dispatch(ctx, bot.Message{
		ID:             msg.MessageID,
		ConversationID: conv,
		Private:        true,
		Author:         msg.User.DisplayName,
		Text:           msg.Message,
	})
}

// dispatch hands msg to the handler on its own goroutine; the IRC read loop
// must not block on replay downloads.
func (b *Bridge) dispatch(ctx context.Context, msg bot.Message) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	b.wg.Add(1)
	go func() {
		defer func() {
			<-b.sem
			b.wg.Done()
		}()
		b.handler.HandleMessage(ctx, msg)
	}()
}

func (b *Bridge) isSelf(name string) bool {
	return strings.EqualFold(name, b.username)
}

func normalizeChannels(in []string) []string {
	var out []string
	for _, c := range in {
		c = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "#"))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func ensureOAuthPrefix(tok string) string {
	if tok == "" || strings.HasPrefix(tok, "oauth:") {
		return tok
	}
	return "oauth:" + tok
}
