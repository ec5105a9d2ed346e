package command

import (
	"context"
	"strings"
)

// Handler processes one slash command.
type Handler interface {
	// Name is the command without its leading slash.
	Name() string
	Description() string
	Handle(ctx context.Context, msg Message) []Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	name        string
	description string
	fn          func(ctx context.Context, msg Message) []Reply
}

// NewHandler returns a Handler named name.
func NewHandler(name, description string, fn func(ctx context.Context, msg Message) []Reply) *HandlerFunc {
	return &HandlerFunc{name: name, description: description, fn: fn}
}

// Name returns the command name without its slash.
func (h *HandlerFunc) Name() string { return h.name }

// Description returns the one-line text shown by /help.
func (h *HandlerFunc) Description() string { return h.description }

// Handle runs the wrapped function.
func (h *HandlerFunc) Handle(ctx context.Context, msg Message) []Reply {
	return h.fn(ctx, msg)
}

// Registry manages the available slash commands.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handler, replacing one with the same name.
func (r *Registry) Register(handler Handler) {
	name := strings.ToLower(handler.Name())
	if _, exists := r.handlers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.handlers[name] = handler
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (Handler, bool) {
	handler, exists := r.handlers[strings.ToLower(name)]
	return handler, exists
}

// List returns handlers in registration order.
func (r *Registry) List() []Handler {
	list := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.handlers[name])
	}
	return list
}

// Names returns the slash-prefixed command names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		names = append(names, "/"+name)
	}
	return names
}

// ParseCommand splits "/name@bot args" into name and args. ok is false when
// text is not a slash command.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
