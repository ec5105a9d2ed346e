package session

import (
	"errors"
	"fmt"
	"time"
)

// State is the conversation step a session is in.
type State string

const (
	StateAwaitingIdentifier State = "awaiting_identifier"
	StateAwaitingBlock      State = "awaiting_block"
	StateComplete           State = "complete"
	StateCancelled          State = "cancelled"
	StateExpired            State = "expired"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidTransition is returned when a step does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNotFound is returned when a chat has no live session.
	ErrNotFound = errors.New("session not found")
)

// Session is one chat's conversation state.
type Session struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chatId"`
	UserID     int64     `json:"userId"`
	State      State     `json:"state"`
	Identifier string    `json:"identifier,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AcceptIdentifier stores the tag identifier and advances to StateAwaitingBlock.
func (s *Session) AcceptIdentifier(identifier string, now time.Time) error {
	if s.State != StateAwaitingIdentifier {
		return s.invalid("accept identifier")
	}
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidTransition)
	}
	s.Identifier = identifier
	s.move(StateAwaitingBlock, now)
	return nil
}

// Complete marks the commands as generated.
func (s *Session) Complete(now time.Time) error {
	if s.State != StateAwaitingBlock {
		return s.invalid("complete")
	}
	s.move(StateComplete, now)
	return nil
}

// Cancel ends a live session at the user's request.
func (s *Session) Cancel(now time.Time) error {
	if s.State.Terminal() {
		return s.invalid("cancel")
	}
	s.move(StateCancelled, now)
	return nil
}

func (s *Session) expire(now time.Time) {
	s.move(StateExpired, now)
}

func (s *Session) move(to State, now time.Time) {
	s.State = to
	s.UpdatedAt = now
}

func (s *Session) invalid(step string) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, step, s.State)
}

// Idle reports how long the session has gone without activity.
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}
