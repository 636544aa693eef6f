package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"opsmap/internal/search"
	"opsmap/internal/service"
	"opsmap/internal/view"
)

const (
	// pingPeriod is how often idle sockets are pinged
	pingPeriod = 30 * time.Second
	// snapshotPeriod is how often sockets receive the view state unprompted
	snapshotPeriod = time.Second
	writeWait      = 10 * time.Second
)

// pongWait is how long a socket may stay silent, pongs included, before it
// is dropped. It must exceed pingPeriod.
var pongWait = 2 * pingPeriod

var errUnknownCommand = errors.New("unknown command")

var upgrader = websocket.Upgrader{
	// Origins are checked by the CORS middleware
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// ViewCommand is a user action on a view. Over REST the type comes from
// the path; over the socket it is part of the message.
type ViewCommand struct {
	Type   string     `json:"type"`
	Query  string     `json:"query,omitempty"`
	Key    search.Key `json:"key,omitempty"`
	ID     string     `json:"id,omitempty"`
	X      float64    `json:"x,omitempty"`
	Y      float64    `json:"y,omitempty"`
	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`
}

// ViewReply is the result of a command
type ViewReply struct {
	Type     string         `json:"type"`
	Matches  []string       `json:"matches,omitempty"`
	Selected string         `json:"selected,omitempty"`
	Picked   bool           `json:"picked,omitempty"`
	Error    string         `json:"error,omitempty"`
	Snapshot *view.Snapshot `json:"snapshot,omitempty"`
}

// ViewHandler serves the interactive map views
type ViewHandler struct {
	svc *service.ViewService
}

// NewViewHandler creates a new view handler
func NewViewHandler(svc *service.ViewService) *ViewHandler {
	return &ViewHandler{svc: svc}
}

// Register adds the view routes to mux
func (h *ViewHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/views", h.OpenView)
	mux.HandleFunc("GET /api/views", h.ListViews)
	mux.HandleFunc("GET /api/views/{id}", h.GetView)
	mux.HandleFunc("DELETE /api/views/{id}", h.CloseView)
	mux.HandleFunc("POST /api/views/{id}/{command}", h.Command)
	mux.HandleFunc("GET /api/views/{id}/frame.png", h.Frame)
	mux.HandleFunc("GET /api/views/{id}/ws", h.ServeWS)
}

// OpenView creates a view of the current network. The view outlives the
// request and runs until it is closed.
func (h *ViewHandler) OpenView(w http.ResponseWriter, r *http.Request) {
	id, _ := h.svc.Open(context.WithoutCancel(r.Context()))

	var size ViewCommand
	if err := decodeOptional(r, &size); err != nil {
		_ = h.svc.Close(id)
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if size.Width > 0 && size.Height > 0 {
		ctrl, err := h.svc.Get(id)
		if err == nil {
			ctrl.Resize(size.Width, size.Height)
		}
	}

	info, err := h.svc.Info(id)
	if err != nil {
		writeServiceError(w, "Failed to open view", err)
		return
	}
	writeJSON(w, info, http.StatusCreated)
}

// ListViews returns the open view ids, oldest first
func (h *ViewHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.List(), http.StatusOK)
}

// GetView returns the state of a view
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Info(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Failed to get view", err)
		return
	}
	writeJSON(w, info, http.StatusOK)
}

// CloseView tears a view down
func (h *ViewHandler) CloseView(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.PathValue("id")); err != nil {
		writeServiceError(w, "Failed to close view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Command runs query, key, pick, click, resize or reset on a view
func (h *ViewHandler) Command(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Failed to run command", err)
		return
	}

	var cmd ViewCommand
	if err := decodeOptional(r, &cmd); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	cmd.Type = r.PathValue("command")

	reply, err := runCommand(ctrl, cmd)
	if err != nil {
		writeError(w, "Invalid command", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, reply, http.StatusOK)
}

// Frame renders the view as PNG at its last known viewport size
func (h *ViewHandler) Frame(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Failed to render view", err)
		return
	}

	var buf bytes.Buffer
	if err := ctrl.RenderPNG(&buf); err != nil {
		if errors.Is(err, view.ErrNoViewport) {
			writeError(w, "Failed to render view", err.Error(), http.StatusConflict)
			return
		}
		log.Printf("Failed to render view: %v", err)
		writeError(w, "Failed to render view", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// runCommand applies one command and returns the reply with the resulting
// snapshot
func runCommand(ctrl *view.Controller, cmd ViewCommand) (ViewReply, error) {
	reply := ViewReply{Type: cmd.Type}
	switch cmd.Type {
	case "query":
		reply.Matches = ctrl.SetQuery(cmd.Query)
	case "key":
		st := ctrl.Key(cmd.Key)
		reply.Matches = st.Matches
		reply.Selected = st.Selected
	case "pick":
		reply.Picked = ctrl.Pick(cmd.ID)
		if reply.Picked {
			reply.Selected = cmd.ID
		}
	case "click":
		reply.Selected, reply.Picked = ctrl.Click(cmd.X, cmd.Y)
	case "resize":
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return reply, fmt.Errorf("invalid viewport %gx%g", cmd.Width, cmd.Height)
		}
		ctrl.Resize(cmd.Width, cmd.Height)
	case "reset":
		ctrl.ResetView()
	case "snapshot":
	default:
		return reply, fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
	}
	snap := ctrl.Snapshot()
	reply.Snapshot = &snap
	return reply, nil
}

// viewClient is one socket attached to a view
type viewClient struct {
	conn *websocket.Conn
	ctrl *view.Controller
	send chan ViewReply
	done chan struct{}
}

// ServeWS attaches a websocket to a view. Each command is answered with a
// reply carrying the snapshot, and the snapshot is also pushed periodically
// while the view is open.
func (h *ViewHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Failed to attach to view", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	c := &viewClient{
		conn: conn,
		ctrl: ctrl,
		send: make(chan ViewReply, 64),
		done: make(chan struct{}),
	}
	go c.writePump()
	c.readPump()
}

func (c *viewClient) enqueue(msg ViewReply) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		log.Println("Warning: view socket backlog full, dropping message")
	}
}

func (c *viewClient) writePump() {
	ping := time.NewTicker(pingPeriod)
	tick := time.NewTicker(snapshotPeriod)
	defer func() {
		ping.Stop()
		tick.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing view message: %v", err)
				return
			}
		case <-tick.C:
			if c.ctrl.Closed() {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "view closed"))
				return
			}
			snap := c.ctrl.Snapshot()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ViewReply{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *viewClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd ViewCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("View socket error: %v", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if cmd.Type == "ping" {
			c.enqueue(ViewReply{Type: "pong"})
			continue
		}
		if c.ctrl.Closed() {
			c.enqueue(ViewReply{Type: "error", Error: service.ErrViewNotFound.Error()})
			continue
		}
		reply, err := runCommand(c.ctrl, cmd)
		if err != nil {
			reply = ViewReply{Type: "error", Error: err.Error()}
		}
		c.enqueue(reply)
	}
}
