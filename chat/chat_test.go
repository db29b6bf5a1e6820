package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/replaybot/bot"
)

type said struct {
	channel, parent, text string
}

type fakeIRC struct {
	mu        sync.Mutex
	said      []said
	joined    []string
	onConnect func()
	onPrivate func(twitch.PrivateMessage)
	onWhisper func(twitch.WhisperMessage)
	connected chan struct{}
	done      chan struct{}
	once      sync.Once
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{connected: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeIRC) OnConnect(cb func())                             { f.onConnect = cb }
func (f *fakeIRC) OnPrivateMessage(cb func(twitch.PrivateMessage)) { f.onPrivate = cb }
func (f *fakeIRC) OnWhisperMessage(cb func(twitch.WhisperMessage)) { f.onWhisper = cb }
func (f *fakeIRC) Join(channels ...string)                         { f.joined = append(f.joined, channels...) }

func (f *fakeIRC) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, said{channel: channel, text: text})
}

func (f *fakeIRC) Reply(channel, parent, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, said{channel: channel, parent: parent, text: text})
}

func (f *fakeIRC) Connect() error {
	f.onConnect()
	close(f.connected)
	<-f.done
	return twitch.ErrClientDisconnected
}

func (f *fakeIRC) Disconnect() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeIRC) messages() []said {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]said(nil), f.said...)
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []bot.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg bot.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

type fakeWhisperer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (w *fakeWhisperer) SendWhisper(_ context.Context, from, to, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.sent = append(w.sent, from+">"+to+":"+message)
	return nil
}

func TestBridgeDispatch(t *testing.T) {
	irc := newFakeIRC()
	handler := &recordingHandler{}
	whisper := &fakeWhisperer{}
	b, _ := newBridge(irc, "ReplayBot", []string{"#Prismata", " other "}, handler, WithWhispers(whisper, "99"))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx) }()
	<-irc.connected

	if !b.Connected() {
		t.Error("bridge not marked connected")
	}
	if strings.Join(irc.joined, ",") != "prismata,other" {
		t.Errorf("joined = %v", irc.joined)
	}

	irc.onPrivate(twitch.PrivateMessage{Channel: "prismata", ID: "m1", Message: "abcde-12345", User: twitch.User{Name: "viewer", DisplayName: "Viewer"}})
	irc.onPrivate(twitch.PrivateMessage{Channel: "prismata", ID: "m2", Message: "abcde-12345", User: twitch.User{Name: "replaybot"}})
	irc.onPrivate(twitch.PrivateMessage{Channel: "prismata", ID: "m3", Message: "!ping", User: twitch.User{Name: "viewer"}})
	irc.onWhisper(twitch.WhisperMessage{MessageID: "w1", Message: "[[tarsier]]", User: twitch.User{ID: "42", Name: "fan", DisplayName: "Fan"}})
	irc.onWhisper(twitch.WhisperMessage{MessageID: "w2", Message: "!ping", User: twitch.User{ID: "42", Name: "fan"}})

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if b.Connected() {
		t.Error("bridge still marked connected")
	}

	if len(handler.msgs) != 2 {
		t.Fatalf("handled %d messages, want 2: %+v", len(handler.msgs), handler.msgs)
	}
	var shared, private bot.Message
	for _, m := range handler.msgs {
		if m.Private {
			private = m
		} else {
			shared = m
		}
	}
	if shared.ConversationID != "#prismata" || shared.Author != "Viewer" || shared.ID != "m1" {
		t.Errorf("shared message = %+v", shared)
	}
	if private.ConversationID != "whisper:42" || private.Text != "[[tarsier]]" {
		t.Errorf("private message = %+v", private)
	}

	if got := irc.messages(); len(got) != 1 || got[0] != (said{channel: "prismata", parent: "m3", text: "pong"}) {
		t.Errorf("irc output = %+v", got)
	}
	if len(whisper.sent) != 1 || whisper.sent[0] != "99>42:pong" {
		t.Errorf("whispers = %v", whisper.sent)
	}
}

func TestBridgeRequiresChannels(t *testing.T) {
	b, _ := newBridge(newFakeIRC(), "bot", []string{" ", "#"}, &recordingHandler{})
	if err := b.Run(context.Background()); err == nil {
		t.Error("Run() without channels succeeded")
	}
}

func TestSinkPlaceholderLifecycle(t *testing.T) {
	irc := newFakeIRC()
	s := NewSink(irc)
	ctx := context.Background()

	h, err := s.PostPlaceholder(ctx, "#prismata", bot.Notification{Title: "abcde-12345", Description: "..."})
	if err != nil {
		t.Fatalf("PostPlaceholder() error = %v", err)
	}
	if len(irc.messages()) != 0 {
		t.Error("placeholder sent to chat")
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d", s.Pending())
	}

	if err := s.Update(ctx, h, bot.Notification{Title: "abcde-12345", Description: "Replay data not found."}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := irc.messages(); len(got) != 1 || got[0].channel != "prismata" || got[0].text != "abcde-12345 | Replay data not found." {
		t.Errorf("said = %+v", got)
	}
	if err := s.Update(ctx, h, bot.Notification{}); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("second Update() error = %v, want ErrUnknownHandle", err)
	}

	h2, _ := s.PostPlaceholder(ctx, "#prismata", bot.Notification{})
	if err := s.Retract(ctx, h2); err != nil {
		t.Fatalf("Retract() error = %v", err)
	}
	if s.Pending() != 0 || len(irc.messages()) != 1 {
		t.Errorf("retract sent output or leaked handle")
	}
}

func TestSinkConversations(t *testing.T) {
	ctx := context.Background()
	s := NewSink(newFakeIRC())
	if _, err := s.PostPlaceholder(ctx, "whisper:1", bot.Notification{}); err == nil {
		t.Error("whisper accepted without whisperer")
	}
	if err := s.Send(ctx, "lobby", bot.Notification{Title: "x"}); err == nil {
		t.Error("unknown conversation accepted")
	}

	w := &fakeWhisperer{err: errors.New("blocked")}
	s = NewSink(newFakeIRC(), WithWhispers(w, "99"))
	if err := s.Send(ctx, "whisper:7", bot.Notification{Title: "Tarsier"}); err == nil {
		t.Error("whisper failure not returned")
	}
}

func TestSinkTruncatesAndPaces(t *testing.T) {
	irc := newFakeIRC()
	s := NewSink(irc, WithRate(1000, 1))
	long := strings.Repeat("é", MaxMessageLength+20)
	if err := s.Send(context.Background(), "#c", bot.Notification{Title: long}); err != nil {
		t.Fatal(err)
	}
	got := irc.messages()[0].text
	if n := len([]rune(got)); n != MaxMessageLength || !strings.HasSuffix(got, "…") {
		t.Errorf("truncated length = %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = NewSink(newFakeIRC(), WithRate(0.001, 1))
	_ = s.Send(context.Background(), "#c", bot.Notification{Title: "first"})
	if err := s.Send(ctx, "#c", bot.Notification{Title: "second"}); err == nil {
		t.Error("rate-limited send with canceled context succeeded")
	}
}
