package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nfc-command/ncc/internal/config"
	"github.com/nfc-command/ncc/internal/logging"
	"github.com/nfc-command/ncc/internal/nfc"
	"github.com/nfc-command/ncc/internal/session"
)

// FileName is the audit log file inside the configured directory.
const FileName = "audit.jsonl"

// Audited actions.
const (
	ActionSessionStart       = "session_start"
	ActionSessionReplaced    = "session_replaced"
	ActionIdentifierAccepted = "identifier_accepted"
	ActionIdentifierRejected = "identifier_rejected"
	ActionCommandsGenerated  = "commands_generated"
	ActionBlockRejected      = "block_rejected"
	ActionSessionError       = "session_error"
	ActionSessionCancelled   = "session_cancelled"
	ActionSessionExpired     = "session_expired"
	ActionDerive             = "derive"
)

// Outcomes.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Actor     string                 `json:"actor"`
	ChatID    int64                  `json:"chatId,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	Code      string                 `json:"code"`
	LatencyMs int64                  `json:"latencyMs,omitempty"`
}

// Subject identifies the conversation an action belongs to. The zero value
// is used for one-shot derivations.
type Subject struct {
	ChatID    int64
	SessionID string
}

// SubjectOf returns the subject for a session.
func SubjectOf(s session.Session) Subject {
	return Subject{ChatID: s.ChatID, SessionID: s.ID}
}

type actorKey struct{}

// WithActor returns a context carrying the acting user.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user, or "unknown".
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}

// Logger appends audit entries as JSON lines.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.Writer
	closer   io.Closer
	rotator  *lumberjack.Logger
	now      func() time.Time
}

// NewLogger opens the audit log in cfg.Dir.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, FileName)
	rotator := logging.RotatingWriter(filePath, cfg.MaxSizeMB, cfg.MaxBackups, 0)

	// Touch the file so it exists before the first entry.
	if _, err := rotator.Write(nil); err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &Logger{
		filePath: filePath,
		out:      rotator,
		closer:   rotator,
		rotator:  rotator,
		now:      time.Now,
	}, nil
}

// NewWriterLogger writes entries to w. Used when the trail goes somewhere
// other than a rotated file.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w, now: time.Now}
}

// LogAction records an action with its result code and latency.
func (l *Logger) LogAction(ctx context.Context, action string, subj Subject, code string, latency time.Duration) {
	outcome := OutcomeSuccess
	if code != OutcomeSuccess {
		outcome = OutcomeFailure
	}
	l.write(Entry{
		Timestamp: l.now().UTC(),
		Actor:     ActorFromContext(ctx),
		ChatID:    subj.ChatID,
		SessionID: subj.SessionID,
		Action:    action,
		Outcome:   outcome,
		Code:      code,
		LatencyMs: latency.Milliseconds(),
	})
}

// LogControlAction records an action with its parameters. The code is
// derived from err.
func (l *Logger) LogControlAction(ctx context.Context, action string, subj Subject, params map[string]interface{}, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	l.write(Entry{
		Timestamp: l.now().UTC(),
		Actor:     ActorFromContext(ctx),
		ChatID:    subj.ChatID,
		SessionID: subj.SessionID,
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		Code:      CodeFromError(err),
	})
}

// CodeFromError maps err to the code stored in the trail.
func CodeFromError(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrInvalidTransition):
		return "SESSION_ERROR"
	default:
		return nfc.Code(err)
	}
}

func (l *Logger) write(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// Close flushes and closes the underlying file. Later writes are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.out = nil
	if l.closer != nil {
		err := l.closer.Close()
		l.closer = nil
		return err
	}
	return nil
}

// GetFilePath returns the audit log path, empty for writer-backed loggers.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate moves the current file aside and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator == nil {
		return nil
	}
	if err := l.rotator.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return nil
}
