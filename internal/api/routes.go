package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/auth"
	"github.com/nfc-command/ncc/internal/command"
	"github.com/nfc-command/ncc/internal/nfc"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telemetry"
)

const (
	apiV1        = "/api/v1"
	maxBodyBytes = 64 << 10
)

// RegisterRoutes registers all v1 endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc(apiV1+"/derive", s.protect(s.handleDerive, auth.ScopeDerive))
	mux.HandleFunc(apiV1+"/conversations/{chatId}/messages", s.protect(s.handleConversationMessage, auth.ScopeConverse))
	mux.HandleFunc(apiV1+"/sessions", s.protect(s.handleSessions, auth.ScopeRead))
	mux.HandleFunc(apiV1+"/telemetry", s.protect(s.handleTelemetry, auth.ScopeTelemetry))
}

func (s *Server) protect(h http.HandlerFunc, scope string) http.HandlerFunc {
	if s.authMiddleware == nil {
		return h
	}
	return s.authMiddleware.Protect(h, scope)
}

// DeriveRequest is the body of POST /derive.
type DeriveRequest struct {
	Identifier string `json:"identifier"`
	Block      string `json:"block"`
}

// DeriveResponse is the data of a successful derivation.
type DeriveResponse struct {
	Identifier  string           `json:"identifier"`
	BaseCommand string           `json:"baseCommand"`
	Commands    []string         `json:"commands"`
	Writes      []nfc.BlockWrite `json:"writes"`
	Lines       []string         `json:"lines"`
}

// MessageRequest is the body of POST /conversations/{chatId}/messages.
type MessageRequest struct {
	Text   string `json:"text"`
	UserID int64  `json:"userId,omitempty"`
}

// MessageResponse carries the replies for one message.
type MessageResponse struct {
	ChatID  int64           `json:"chatId"`
	Replies []command.Reply `json:"replies"`
}

// SessionList is the data of GET /sessions.
type SessionList struct {
	Count int               `json:"count"`
	Items []session.Session `json:"items"`
}

// handleDerive handles POST /derive.
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req DeriveRequest
	if err := decodeStrict(w, r, &req); err != nil {
		WriteAPIError(w, err)
		return
	}

	set, err := nfc.Derive(req.Identifier, req.Block)
	s.auditDerive(r.Context(), req, err)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	WriteSuccess(w, DeriveResponse{
		Identifier:  set.Identifier,
		BaseCommand: set.BaseCommand,
		Commands:    set.Commands(),
		Writes:      set.Writes,
		Lines:       set.Lines(),
	})
}

// handleConversationMessage handles POST /conversations/{chatId}/messages.
func (s *Server) handleConversationMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	chatID, err := strconv.ParseInt(r.PathValue("chatId"), 10, 64)
	if err != nil {
		WriteAPIError(w, fmt.Errorf("%w: chatId must be an integer", ErrBadRequest))
		return
	}

	var req MessageRequest
	if err := decodeStrict(w, r, &req); err != nil {
		WriteAPIError(w, err)
		return
	}

	if s.conversation == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Conversation service not available", nil)
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = chatID
	}
	replies := s.conversation.HandleMessage(actorContext(r), command.Message{
		ChatID: chatID,
		UserID: userID,
		Text:   req.Text,
	})

	WriteSuccess(w, MessageResponse{ChatID: chatID, Replies: replies})
}

// handleSessions handles GET /sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.sessions == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Session store not available", nil)
		return
	}

	items := s.sessions.List()
	WriteSuccess(w, SessionList{Count: len(items), Items: items})
}

// handleTelemetry handles GET /telemetry.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry hub not available", nil)
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		if errors.Is(err, telemetry.ErrStopped) {
			WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry stream is shutting down", nil)
			return
		}
		s.logger.Debug("Telemetry stream ended", zap.Error(err))
	}
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	subsystems := map[string]bool{
		"conversation": s.conversation != nil,
		"sessions":     s.sessions != nil,
		"telemetry":    s.telemetryHub != nil,
	}
	active := 0
	if s.sessions != nil {
		active = len(s.sessions.List())
	}

	WriteSuccess(w, map[string]interface{}{
		"status":         "ok",
		"uptimeSec":      time.Since(s.startTime).Seconds(),
		"version":        s.version,
		"authEnabled":    s.authMiddleware != nil,
		"activeSessions": active,
		"subsystems":     subsystems,
	})
}

func (s *Server) auditDerive(ctx context.Context, req DeriveRequest, err error) {
	if s.auditLogger == nil {
		return
	}
	params := map[string]interface{}{"identifier": req.Identifier}
	if req.Block != "" {
		params["block"] = req.Block
	}
	s.auditLogger.LogControlAction(audit.WithActor(ctx, actorOf(ctx)), audit.ActionDerive, audit.Subject{}, params, err)
}

func actorContext(r *http.Request) context.Context {
	return audit.WithActor(r.Context(), actorOf(r.Context()))
}

func actorOf(ctx context.Context) string {
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		return "api:" + claims.Subject
	}
	return "api:anonymous"
}

// decodeStrict decodes a single JSON object, rejecting unknown fields and
// trailing data.
func decodeStrict(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON or unknown fields", ErrBadRequest)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data after JSON object", ErrBadRequest)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Only %s method is allowed", allowed), nil)
}
