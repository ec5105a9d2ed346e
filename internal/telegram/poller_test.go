package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/command"
	"github.com/nfc-command/ncc/internal/config"
	"github.com/nfc-command/ncc/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBot struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.MessageConfig
	stopped int
	sendErr error
	cfg     tgbotapi.UpdateConfig
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 10)}
}

func (b *fakeBot) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped++
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, b.sendErr
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), b.sent...)
}

func textUpdate(chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: userID},
		Text: text,
	}}
}

type recordingConversation struct {
	mu     sync.Mutex
	actors []string
	inner  command.Conversation
}

func (r *recordingConversation) HandleMessage(ctx context.Context, msg command.Message) []command.Reply {
	r.mu.Lock()
	r.actors = append(r.actors, audit.ActorFromContext(ctx))
	r.mu.Unlock()
	return r.inner.HandleMessage(ctx, msg)
}

func runPoller(t *testing.T, bot *fakeBot, conv command.Conversation) (context.CancelFunc, chan error) {
	t.Helper()
	cfg := config.TelegramConfig{Enabled: true, Token: "x", PollTimeoutSec: 30}
	p := NewPoller(bot, conv, cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return cancel, done
}

func TestPollerDrivesConversation(t *testing.T) {
	bot := newFakeBot()
	orch := command.NewOrchestrator(session.NewManager(time.Minute, time.Minute), zaptest.NewLogger(t))
	conv := &recordingConversation{inner: orch}
	cancel, done := runPoller(t, bot, conv)

	bot.updates <- textUpdate(5, 9, "/start")
	bot.updates <- textUpdate(5, 9, "04:69:62:e2:58:70:80")
	bot.updates <- textUpdate(5, 9, "0")

	require.Eventually(t, func() bool { return len(bot.messages()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sent := bot.messages()
	for _, m := range sent {
		assert.Equal(t, int64(5), m.ChatID)
	}
	assert.Empty(t, sent[0].ParseMode)
	assert.Equal(t, tgbotapi.ModeMarkdown, sent[2].ParseMode)
	assert.Contains(t, sent[2].Text, "`1B4a41e228,3008`")

	assert.Equal(t, []string{"telegram:9", "telegram:9", "telegram:9"}, conv.actors)
	assert.Equal(t, 30, bot.cfg.Timeout)
	assert.Equal(t, 1, bot.stopped)
}

func TestPollerSkipsNonTextUpdates(t *testing.T) {
	bot := newFakeBot()
	orch := command.NewOrchestrator(session.NewManager(time.Minute, time.Minute), nil)
	cancel, done := runPoller(t, bot, orch)

	bot.updates <- tgbotapi.Update{}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}
	bot.updates <- textUpdate(1, 1, "/help")

	require.Eventually(t, func() bool { return len(bot.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestPollerContinuesAfterSendFailure(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = errors.New("network down")
	orch := command.NewOrchestrator(session.NewManager(time.Minute, time.Minute), nil)
	cancel, done := runPoller(t, bot, orch)

	bot.updates <- textUpdate(1, 1, "/help")
	bot.updates <- textUpdate(1, 1, "/help")

	require.Eventually(t, func() bool { return len(bot.messages()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestPollerStopsWhenUpdatesClose(t *testing.T) {
	bot := newFakeBot()
	orch := command.NewOrchestrator(session.NewManager(time.Minute, time.Minute), nil)
	cancel, done := runPoller(t, bot, orch)
	defer cancel()

	close(bot.updates)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, 0, bot.stopped)
}
