package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nfc-command/ncc/internal/config"
)

// Event types.
const (
	EventReady     = "ready"
	EventHeartbeat = "heartbeat"
	EventSession   = "session"
	EventCommands  = "commands"
	EventFault     = "fault"
)

const (
	globalKey   = "global"
	clientQueue = 100

	defaultHeartbeat = 15 * time.Second
)

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("telemetry hub stopped")

// Event is one SSE message.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
	Chat string                 `json:"chat,omitempty"`
}

type client struct {
	id     string
	chat   string
	w      http.ResponseWriter
	ctx    context.Context
	cancel context.CancelFunc
	lastID int64
	events chan Event
}

// Hub fans events out to SSE clients. Every event is buffered under the
// hub-wide sequence and, for chat events, under its chat's sequence too.
//
// h.mu guards the maps; each EventBuffer has its own lock. Buffers are never
// removed, so a buffer reference stays valid after h.mu is released.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	counters map[string]*int64
	buffers  map[string]*EventBuffer

	bufferSize int
	heartbeat  time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub from the telemetry settings.
func NewHub(cfg config.TelemetryConfig) *Hub {
	heartbeat := cfg.HeartbeatInterval()
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Hub{
		clients:    make(map[string]*client),
		counters:   make(map[string]*int64),
		buffers:    make(map[string]*EventBuffer),
		bufferSize: cfg.EventBufferSize,
		heartbeat:  heartbeat,
		done:       make(chan struct{}),
	}
}

// Subscribe streams events to w until ctx ends or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	var lastEventID int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			lastEventID = id
		}
	}

	clientCtx, cancel := context.WithCancel(ctx)
	c := &client{
		id:     uuid.NewString(),
		chat:   r.URL.Query().Get("chat"),
		w:      w,
		ctx:    clientCtx,
		cancel: cancel,
		lastID: lastEventID,
		events: make(chan Event, clientQueue),
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		cancel()
		return ErrStopped
	default:
	}
	h.clients[c.id] = c
	h.wg.Add(1)
	h.mu.Unlock()

	defer func() {
		h.unregister(c.id)
		h.wg.Done()
	}()

	ready := Event{
		Type: EventReady,
		Data: map[string]interface{}{
			"clientId":    c.id,
			"chat":        c.chat,
			"lastEventId": lastEventID,
		},
	}
	if err := writeEvent(w, ready); err != nil {
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		for _, e := range h.buffer(c.bufferKey()).GetEventsAfter(lastEventID) {
			if err := h.deliver(c, e); err != nil {
				return fmt.Errorf("failed to replay events: %w", err)
			}
		}
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-h.done:
			return nil
		case <-ticker.C:
			beat := Event{
				Type: EventHeartbeat,
				Data: map[string]interface{}{"ts": time.Now().UTC().Format(time.RFC3339)},
			}
			if err := writeEvent(w, beat); err != nil {
				return nil
			}
		case e := <-c.events:
			if err := h.deliver(c, e); err != nil {
				return nil
			}
		}
	}
}

// Publish stamps the event, buffers it and queues it for every matching
// client. A chat event carries its chat's sequence to chat-filtered clients
// and the hub-wide sequence to unfiltered ones, so both streams have
// monotonic IDs to resume from. Clients whose queue is full drop the event
// and recover it from the buffer on reconnect.
func (h *Hub) Publish(event Event) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}

	global := event
	global.ID = h.nextID(globalKey)
	h.buffer(globalKey).AddEvent(global)

	scoped := global
	if event.Chat != "" {
		scoped.ID = h.nextID(event.Chat)
		h.buffer(event.Chat).AddEvent(scoped)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		switch c.chat {
		case "":
			c.offer(global)
		case event.Chat:
			c.offer(scoped)
		}
	}
	return nil
}

// offer queues e without blocking the publisher.
func (c *client) offer(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// PublishChat publishes an event for one chat.
func (h *Hub) PublishChat(chatID int64, event Event) error {
	event.Chat = strconv.FormatInt(chatID, 10)
	return h.Publish(event)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every client and waits for their streams to end.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, c := range h.clients {
			c.cancel()
		}
		h.mu.Unlock()

		h.wg.Wait()
	})
}

// deliver writes e unless the client already has it from a replay.
func (h *Hub) deliver(c *client, e Event) error {
	if e.ID != 0 && e.ID <= c.lastID {
		return nil
	}
	if err := writeEvent(c.w, e); err != nil {
		return err
	}
	if e.ID > c.lastID {
		c.lastID = e.ID
	}
	return nil
}

func (c *client) bufferKey() string {
	if c.chat == "" {
		return globalKey
	}
	return c.chat
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		c.cancel()
		delete(h.clients, id)
	}
}

func (h *Hub) nextID(key string) int64 {
	h.mu.RLock()
	counter, ok := h.counters[key]
	h.mu.RUnlock()
	if ok {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	counter, ok = h.counters[key]
	if !ok {
		counter = new(int64)
		h.counters[key] = counter
	}
	h.mu.Unlock()
	return atomic.AddInt64(counter, 1)
}

func (h *Hub) buffer(key string) *EventBuffer {
	h.mu.RLock()
	b, ok := h.buffers[key]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok = h.buffers[key]
	if !ok {
		b = NewEventBuffer(h.bufferSize)
		h.buffers[key] = b
	}
	return b
}

// writeEvent formats e as an SSE message and flushes it.
func writeEvent(w http.ResponseWriter, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if e.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", e.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
