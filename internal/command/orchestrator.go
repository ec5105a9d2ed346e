package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/nfc"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telemetry"
)

// Orchestrator drives each chat's conversation.
type Orchestrator struct {
	sessions    SessionStore
	registry    *Registry
	auditLogger AuditLogger
	events      EventPublisher
	logger      *zap.Logger
	derive      func(identifier, block string) (*nfc.CommandSet, error)
}

// NewOrchestrator creates an orchestrator with /start, /cancel and /help
// registered.
func NewOrchestrator(sessions SessionStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		sessions: sessions,
		registry: NewRegistry(),
		logger:   logger,
		derive:   nfc.Derive,
	}
	o.registry.Register(NewHandler("start", "start generating commands for a tag", o.start))
	o.registry.Register(NewHandler("cancel", "cancel the current operation", o.cancel))
	o.registry.Register(NewHandler("help", "list available commands", o.help))
	return o
}

// SetAuditLogger sets the audit trail.
func (o *Orchestrator) SetAuditLogger(logger AuditLogger) {
	o.auditLogger = logger
}

// SetEventPublisher sets the telemetry sink.
func (o *Orchestrator) SetEventPublisher(publisher EventPublisher) {
	o.events = publisher
}

// Registry returns the slash command registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// HandleMessage processes one incoming text and returns the replies to send.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg Message) []Reply {
	if name, _, ok := ParseCommand(msg.Text); ok {
		handler, found := o.registry.Get(name)
		if !found {
			return []Reply{{Text: unknownCommand(o.registry.Names())}}
		}
		return handler.Handle(ctx, msg)
	}

	s, ok := o.sessions.Get(msg.ChatID)
	if !ok {
		return []Reply{{Text: msgNoSession}}
	}

	switch s.State {
	case session.StateAwaitingIdentifier:
		return o.handleIdentifier(ctx, s, msg)
	case session.StateAwaitingBlock:
		return o.handleBlock(ctx, s, msg)
	default:
		o.sessions.End(msg.ChatID)
		return []Reply{{Text: msgNoSession}}
	}
}

// SessionExpired records a session dropped by the idle sweep.
func (o *Orchestrator) SessionExpired(s session.Session) {
	o.logger.Info("Session expired",
		zap.Int64("chat_id", s.ChatID),
		zap.String("session_id", s.ID),
		zap.String("state", string(s.State)))
	o.logAudit(context.Background(), audit.ActionSessionExpired, s, audit.OutcomeSuccess, 0)
	o.publish(s, map[string]interface{}{"state": string(s.State)})
}

func (o *Orchestrator) start(ctx context.Context, msg Message) []Reply {
	s, replaced := o.sessions.Start(msg.ChatID, msg.UserID)
	if replaced != nil {
		o.logAudit(ctx, audit.ActionSessionReplaced, *replaced, audit.OutcomeSuccess, 0)
	}

	o.logger.Info("New conversation started",
		zap.Int64("user_id", msg.UserID),
		zap.Int64("chat_id", msg.ChatID),
		zap.String("session_id", s.ID))
	o.logAudit(ctx, audit.ActionSessionStart, s, audit.OutcomeSuccess, 0)
	o.publish(s, nil)

	return []Reply{{Text: msgStart}}
}

func (o *Orchestrator) cancel(ctx context.Context, msg Message) []Reply {
	s, err := o.sessions.Cancel(msg.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return []Reply{{Text: msgNothing}}
	}
	if err != nil {
		o.sessions.End(msg.ChatID)
		o.logger.Warn("Cancel on finished session", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}

	o.logger.Info("Conversation cancelled", zap.Int64("user_id", msg.UserID), zap.Int64("chat_id", msg.ChatID))
	o.logAudit(ctx, audit.ActionSessionCancelled, s, audit.OutcomeSuccess, 0)
	o.publish(s, nil)

	return []Reply{{Text: msgCancelled}}
}

func (o *Orchestrator) help(context.Context, Message) []Reply {
	return []Reply{{Text: helpText(o.registry)}}
}

func (o *Orchestrator) handleIdentifier(ctx context.Context, s session.Session, msg Message) []Reply {
	identifier := strings.TrimSpace(msg.Text)
	params := map[string]interface{}{"identifier": identifier}

	if !nfc.ValidIdentifier(identifier) {
		o.logger.Debug("Invalid UID", zap.Int64("chat_id", msg.ChatID), zap.String("input", identifier))
		o.logControl(ctx, audit.ActionIdentifierRejected, s, params, nfc.ErrInvalidIdentifier)
		return []Reply{{Text: msgInvalidIdentifier}}
	}

	s, err := o.sessions.AcceptIdentifier(msg.ChatID, identifier)
	if err != nil {
		return o.sessionError(ctx, s, msg, err)
	}

	o.logger.Info("Valid UID received",
		zap.Int64("user_id", msg.UserID),
		zap.Int64("chat_id", msg.ChatID),
		zap.String("identifier", identifier))
	o.logControl(ctx, audit.ActionIdentifierAccepted, s, params, nil)
	o.publish(s, map[string]interface{}{"identifier": identifier})

	return []Reply{{Text: msgAskBlock}}
}

func (o *Orchestrator) handleBlock(ctx context.Context, s session.Session, msg Message) []Reply {
	if s.Identifier == "" {
		o.sessions.End(msg.ChatID)
		return o.sessionError(ctx, s, msg, session.ErrInvalidTransition)
	}

	started := time.Now()
	block := nfc.ResolveBlock(msg.Text)
	set, err := o.derive(s.Identifier, block)

	switch {
	case errors.Is(err, nfc.ErrInvalidBlock):
		o.logger.Debug("Invalid block 4", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		o.logControl(ctx, audit.ActionBlockRejected, s, map[string]interface{}{"block": block}, err)
		return []Reply{{Text: msgInvalidBlock}}
	case err != nil:
		o.sessions.End(msg.ChatID)
		o.logger.Error("Error processing data",
			zap.Int64("chat_id", msg.ChatID),
			zap.String("session_id", s.ID),
			zap.Error(err))
		o.logAudit(ctx, audit.ActionCommandsGenerated, s, nfc.Code(err), time.Since(started))
		o.publish(s, map[string]interface{}{"error": nfc.Code(err)})
		return []Reply{{Text: msgInternal}}
	}

	if done, cerr := o.sessions.Complete(msg.ChatID); cerr == nil {
		s = done
	} else {
		o.sessions.End(msg.ChatID)
	}

	o.logger.Info("Commands generated",
		zap.Int64("user_id", msg.UserID),
		zap.Int64("chat_id", msg.ChatID),
		zap.String("base_command", set.BaseCommand))
	o.logAudit(ctx, audit.ActionCommandsGenerated, s, audit.OutcomeSuccess, time.Since(started))
	o.publishCommands(msg.ChatID, s, set)

	return []Reply{{Text: formatCommands(set), Markdown: true}}
}

func (o *Orchestrator) sessionError(ctx context.Context, s session.Session, msg Message, err error) []Reply {
	o.logger.Error("Session error",
		zap.Int64("user_id", msg.UserID),
		zap.Int64("chat_id", msg.ChatID),
		zap.Error(err))
	o.logControl(ctx, audit.ActionSessionError, s, nil, err)
	o.publish(s, map[string]interface{}{"error": "SESSION_ERROR"})
	return []Reply{{Text: msgSessionError}}
}

func (o *Orchestrator) logAudit(ctx context.Context, action string, s session.Session, code string, latency time.Duration) {
	if o.auditLogger == nil {
		return
	}
	o.auditLogger.LogAction(ctx, action, audit.SubjectOf(s), code, latency)
}

func (o *Orchestrator) logControl(ctx context.Context, action string, s session.Session, params map[string]interface{}, err error) {
	if o.auditLogger == nil {
		return
	}
	o.auditLogger.LogControlAction(ctx, action, audit.SubjectOf(s), params, err)
}

// publish emits a session event carrying the session's current state.
func (o *Orchestrator) publish(s session.Session, extra map[string]interface{}) {
	if o.events == nil {
		return
	}
	data := map[string]interface{}{
		"sessionId": s.ID,
		"state":     string(s.State),
		"ts":        time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := o.events.PublishChat(s.ChatID, telemetry.Event{Type: telemetry.EventSession, Data: data}); err != nil {
		o.logger.Debug("Telemetry publish failed", zap.Error(err))
	}
}

func (o *Orchestrator) publishCommands(chatID int64, s session.Session, set *nfc.CommandSet) {
	if o.events == nil {
		return
	}
	event := telemetry.Event{
		Type: telemetry.EventCommands,
		Data: map[string]interface{}{
			"sessionId":   s.ID,
			"baseCommand": set.BaseCommand,
			"commands":    set.Commands(),
			"ts":          time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := o.events.PublishChat(chatID, event); err != nil {
		o.logger.Debug("Telemetry publish failed", zap.Error(err))
	}
}
