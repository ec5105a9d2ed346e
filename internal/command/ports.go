package command

import (
	"context"
	"time"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telemetry"
)

// Message is one incoming chat text.
type Message struct {
	ChatID int64  `json:"chatId"`
	UserID int64  `json:"userId"`
	Text   string `json:"text"`
}

// Reply is one outgoing chat text. Markdown replies use the transport's
// Markdown formatting.
type Reply struct {
	Text     string `json:"text"`
	Markdown bool   `json:"markdown"`
}

// Conversation is what transports need from the orchestrator.
type Conversation interface {
	HandleMessage(ctx context.Context, msg Message) []Reply
}

// SessionStore holds per-chat conversation state.
type SessionStore interface {
	Start(chatID, userID int64) (session.Session, *session.Session)
	Get(chatID int64) (session.Session, bool)
	AcceptIdentifier(chatID int64, identifier string) (session.Session, error)
	Complete(chatID int64) (session.Session, error)
	Cancel(chatID int64) (session.Session, error)
	End(chatID int64) bool
}

// AuditLogger writes audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, subj audit.Subject, code string, latency time.Duration)
	LogControlAction(ctx context.Context, action string, subj audit.Subject, params map[string]interface{}, err error)
}

// EventPublisher publishes telemetry events for a chat.
type EventPublisher interface {
	PublishChat(chatID int64, event telemetry.Event) error
}

var (
	_ SessionStore   = (*session.Manager)(nil)
	_ AuditLogger    = (*audit.Logger)(nil)
	_ EventPublisher = (*telemetry.Hub)(nil)
	_ Conversation   = (*Orchestrator)(nil)
)
