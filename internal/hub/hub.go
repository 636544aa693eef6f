// Package hub streams service events to browsers over Server-Sent Events.
//
// Events that implement Named are sent as named SSE events, so clients can
// use addEventListener per event type. Every message carries an increasing
// id. A client may pass ?types=a,b to receive only those event names.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeepAlive is the interval between keep-alive comments
const KeepAlive = 30 * time.Second

// Named is implemented by events that carry their own SSE event name
type Named interface {
	EventName() string
}

// message is one encoded SSE frame
type message struct {
	name  string
	frame []byte
}

type subscriber struct {
	id     string
	types  map[string]bool // nil means every event
	frames chan []byte
}

func (s *subscriber) wants(name string) bool {
	return s.types == nil || s.types[name]
}

// Hub fans broadcast events out to the connected SSE streams
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	join    chan *subscriber
	leave   chan *subscriber
	publish chan any
	done    chan struct{}
	seq     uint64
}

// New creates a hub. Call Run to start it.
func New() *Hub {
	return &Hub{
		subs:    make(map[*subscriber]struct{}),
		join:    make(chan *subscriber),
		leave:   make(chan *subscriber),
		publish: make(chan any, 256),
		done:    make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every stream.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for s := range h.subs {
			delete(h.subs, s)
			close(s.frames)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			log.Printf("Event stream opened: %s (total: %d)", s.id, n)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.frames)
			}
			n := len(h.subs)
			h.mu.Unlock()
			log.Printf("Event stream closed: %s (total: %d)", s.id, n)

		case ev := <-h.publish:
			msg, err := h.encode(ev)
			if err != nil {
				log.Printf("Failed to encode event: %v", err)
				continue
			}
			h.fanOut(msg)
		}
	}
}

// encode frames an event as "id", optional "event" and "data" lines
func (h *Hub) encode(ev any) (message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return message{}, err
	}
	h.seq++

	var msg message
	if n, ok := ev.(Named); ok {
		msg.name = n.EventName()
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id: %d\n", h.seq)
	if msg.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", msg.name)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)
	msg.frame = buf.Bytes()
	return msg, nil
}

func (h *Hub) fanOut(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.wants(msg.name) {
			continue
		}
		select {
		case s.frames <- msg.frame:
		default:
			log.Printf("Event stream %s is behind, dropping event", s.id)
		}
	}
}

// Broadcast queues an event for every stream. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Broadcast(event any) {
	select {
	case h.publish <- event:
	default:
		log.Println("Event queue full, dropping event")
	}
}

// Forward broadcasts everything received on events until the channel
// closes or ctx is cancelled
func Forward[T any](ctx context.Context, h *Hub, events <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// ClientCount returns the number of open streams
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP streams events until the client goes away or the hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s := &subscriber{
		id:     uuid.NewString(),
		types:  parseTypes(r.URL.Query().Get("types")),
		frames: make(chan []byte, 64),
	}

	select {
	case h.join <- s:
	case <-h.done:
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.leave <- s:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// parseTypes reads a comma separated filter; empty means no filter
func parseTypes(raw string) map[string]bool {
	var types map[string]bool
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if types == nil {
			types = make(map[string]bool)
		}
		types[t] = true
	}
	return types
}
