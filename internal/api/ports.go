package api

import (
	"context"
	"net/http"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/command"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telemetry"
)

// ConversationPort is what the API needs from the orchestrator.
type ConversationPort interface {
	HandleMessage(ctx context.Context, msg command.Message) []command.Reply
}

// TelemetryPort is what the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// SessionReadPort lists live sessions.
type SessionReadPort interface {
	List() []session.Session
}

// AuditPort records one-shot derivations.
type AuditPort interface {
	LogControlAction(ctx context.Context, action string, subj audit.Subject, params map[string]interface{}, err error)
}

var (
	_ ConversationPort = (*command.Orchestrator)(nil)
	_ TelemetryPort    = (*telemetry.Hub)(nil)
	_ SessionReadPort  = (*session.Manager)(nil)
	_ AuditPort        = (*audit.Logger)(nil)
)
