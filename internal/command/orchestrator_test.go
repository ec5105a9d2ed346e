package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/nfc"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telemetry"
)

const chatID = int64(1001)

type auditRecord struct {
	Action string
	Subj   audit.Subject
	Code   string
	Params map[string]interface{}
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAudit) LogAction(_ context.Context, action string, subj audit.Subject, code string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{Action: action, Subj: subj, Code: code})
}

func (f *fakeAudit) LogControlAction(_ context.Context, action string, subj audit.Subject, params map[string]interface{}, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{Action: action, Subj: subj, Code: audit.CodeFromError(err), Params: params})
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r.Action
	}
	return out
}

func (f *fakeAudit) last() auditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []telemetry.Event
	err    error
}

func (f *fakePublisher) PublishChat(_ int64, event telemetry.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type harness struct {
	orch     *Orchestrator
	sessions *session.Manager
	audit    *fakeAudit
	events   *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: session.NewManager(time.Minute, time.Minute),
		audit:    &fakeAudit{},
		events:   &fakePublisher{},
	}
	h.orch = NewOrchestrator(h.sessions, zaptest.NewLogger(t))
	h.orch.SetAuditLogger(h.audit)
	h.orch.SetEventPublisher(h.events)
	return h
}

func (h *harness) send(text string) []Reply {
	return h.orch.HandleMessage(context.Background(), Message{ChatID: chatID, UserID: 7, Text: text})
}

func onlyText(t *testing.T, replies []Reply) string {
	t.Helper()
	require.Len(t, replies, 1)
	return replies[0].Text
}

func TestConversationGeneratesCommands(t *testing.T) {
	h := newHarness(t)

	text := onlyText(t, h.send("/start"))
	assert.Contains(t, text, "04:69:62:e2:58:70:80")

	text = onlyText(t, h.send("04:69:62:e2:58:70:80"))
	assert.Contains(t, text, "send 0")
	s, ok := h.sessions.Get(chatID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingBlock, s.State)
	assert.Equal(t, "04:69:62:e2:58:70:80", s.Identifier)

	replies := h.send("0")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Markdown)

	want := strings.Join([]string{
		"📝 *Generated commands:*",
		"*Full command (one line):*",
		"`1B4a41e228,3008,A20400004A44000041300020111600484934,A20500000000,A20600000000,A20700000000,A20800000000`",
		"*Separate commands (easier to copy):*",
		"• Base NFC:",
		"`1B4a41e228,3008`",
		"Block 4:",
		"`1B4a41e228,3008,A20400004A44000041300020111600484934`",
		"Block 5:",
		"`1B4a41e228,3008,A20500000000`",
		"Block 6:",
		"`1B4a41e228,3008,A20600000000`",
		"Block 7:",
		"`1B4a41e228,3008,A20700000000`",
		"Block 8:",
		"`1B4a41e228,3008,A20800000000`",
	}, "\n")
	assert.Equal(t, want, replies[0].Text)

	_, ok = h.sessions.Get(chatID)
	assert.False(t, ok, "session ends after generating commands")

	assert.Equal(t, []string{
		audit.ActionSessionStart,
		audit.ActionIdentifierAccepted,
		audit.ActionCommandsGenerated,
	}, h.audit.actions())
	assert.Equal(t, audit.OutcomeSuccess, h.audit.last().Code)
	assert.Equal(t, s.ID, h.audit.last().Subj.SessionID)

	assert.Equal(t, []string{telemetry.EventSession, telemetry.EventSession, telemetry.EventCommands}, h.events.types())
}

func TestConversationCustomBlockPreservesCase(t *testing.T) {
	h := newHarness(t)
	h.send("/start")
	h.send("046962e2587080")

	text := onlyText(t, h.send("aa BB cc DD ee FF 00 11 22 33 44 55 66 77 88 99"))
	assert.Contains(t, text, "`1B4a41e228,3008,A204aaBBccDDeeFF00112233445566778899`")
}

func TestConversationInvalidIdentifierReprompts(t *testing.T) {
	h := newHarness(t)
	h.send("/start")

	text := onlyText(t, h.send("04:69:62:e2:58:70"))
	assert.Contains(t, text, "Invalid UID")

	s, ok := h.sessions.Get(chatID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingIdentifier, s.State)

	rec := h.audit.last()
	assert.Equal(t, audit.ActionIdentifierRejected, rec.Action)
	assert.Equal(t, "INVALID_IDENTIFIER", rec.Code)
	assert.Equal(t, "04:69:62:e2:58:70", rec.Params["identifier"])

	assert.Contains(t, onlyText(t, h.send("04:69:62:e2:58:70:80")), "Valid UID received")
}

func TestConversationInvalidBlockReprompts(t *testing.T) {
	h := newHarness(t)
	h.send("/start")
	h.send("04:69:62:e2:58:70:80")

	text := onlyText(t, h.send("00 00 4A 44 00 00 41 30 00 20 11 16 00 48 49"))
	assert.Contains(t, text, "Invalid block 4")

	s, ok := h.sessions.Get(chatID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingBlock, s.State)
	assert.Equal(t, "INVALID_BLOCK", h.audit.last().Code)

	replies := h.send("")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Markdown)
}

func TestConversationInternalErrorEndsSession(t *testing.T) {
	h := newHarness(t)
	h.orch.derive = func(string, string) (*nfc.CommandSet, error) {
		return nil, &nfc.DeriveError{Code: nfc.ErrInternal, Cause: errors.New("boom")}
	}
	h.send("/start")
	h.send("04:69:62:e2:58:70:80")

	text := onlyText(t, h.send("0"))
	assert.Contains(t, text, "Internal error")

	_, ok := h.sessions.Get(chatID)
	assert.False(t, ok)
	assert.Equal(t, "INTERNAL", h.audit.last().Code)
}

type missingIdentifierStore struct {
	*session.Manager
}

func (m missingIdentifierStore) Get(chatID int64) (session.Session, bool) {
	return session.Session{ID: "s-1", ChatID: chatID, State: session.StateAwaitingBlock}, true
}

func TestConversationMissingIdentifierIsSessionError(t *testing.T) {
	a := &fakeAudit{}
	orch := NewOrchestrator(missingIdentifierStore{session.NewManager(time.Minute, time.Minute)}, zaptest.NewLogger(t))
	orch.SetAuditLogger(a)

	replies := orch.HandleMessage(context.Background(), Message{ChatID: chatID, UserID: 7, Text: "0"})
	text := onlyText(t, replies)
	assert.Contains(t, text, "Session error")
	assert.Contains(t, text, "/start")

	rec := a.last()
	assert.Equal(t, audit.ActionSessionError, rec.Action)
	assert.Equal(t, "SESSION_ERROR", rec.Code)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	h.send("/start")
	h.send("04:69:62:e2:58:70:80")

	assert.Contains(t, onlyText(t, h.send("/cancel")), "Operation cancelled")
	_, ok := h.sessions.Get(chatID)
	assert.False(t, ok)
	assert.Equal(t, audit.ActionSessionCancelled, h.audit.last().Action)

	assert.Contains(t, onlyText(t, h.send("/cancel")), "nothing to cancel")
}

func TestStartReplacesSession(t *testing.T) {
	h := newHarness(t)
	h.send("/start")
	h.send("04:69:62:e2:58:70:80")
	h.send("/start")

	s, ok := h.sessions.Get(chatID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingIdentifier, s.State)
	assert.Empty(t, s.Identifier)
	assert.Contains(t, h.audit.actions(), audit.ActionSessionReplaced)
}

func TestTextWithoutSession(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, onlyText(t, h.send("04:69:62:e2:58:70:80")), "/start")
	assert.Empty(t, h.audit.actions())
}

func TestHelpAndUnknownCommands(t *testing.T) {
	h := newHarness(t)

	help := onlyText(t, h.send("/help"))
	assert.Contains(t, help, "/start - ")
	assert.Contains(t, help, "/cancel - ")
	assert.Contains(t, help, "/help - ")

	assert.Equal(t, "Unknown command. Available commands: /start, /cancel, /help", onlyText(t, h.send("/derive")))
}

func TestPublishFailureDoesNotBreakConversation(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("hub down")

	h.send("/start")
	h.send("04:69:62:e2:58:70:80")
	replies := h.send("0")
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Markdown)
}

func TestSessionExpiredIsAudited(t *testing.T) {
	h := newHarness(t)
	h.orch.SessionExpired(session.Session{ID: "s-9", ChatID: chatID, State: session.StateExpired})

	rec := h.audit.last()
	assert.Equal(t, audit.ActionSessionExpired, rec.Action)
	assert.Equal(t, audit.Subject{ChatID: chatID, SessionID: "s-9"}, rec.Subj)
	assert.Equal(t, []string{telemetry.EventSession}, h.events.types())
}

func TestChatsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			h.orch.HandleMessage(ctx, Message{ChatID: chat, UserID: chat, Text: "/start"})
			h.orch.HandleMessage(ctx, Message{ChatID: chat, UserID: chat, Text: "04:69:62:e2:58:70:80"})
			replies := h.orch.HandleMessage(ctx, Message{ChatID: chat, UserID: chat, Text: "0"})
			assert.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, "`1B4a41e228,3008`")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, h.sessions.Len())
}
