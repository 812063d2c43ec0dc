/**
 * @description
 * The /ws endpoint keeps mounted views live. A client mounts a view, receives its
 * rendered model, and receives a fresh model after every change that concerns it.
 * Toasts and notification list changes of the session are pushed on the same socket.
 *
 * Key features:
 * - Client frames: {"action":"mount"|"unmount","view":"dashboard","params":{...}}.
 * - Server frames: view, notifications, toast and error.
 * - One hub per workspace fans pushes out to every socket of the session.
 *
 * @dependencies
 * - github.com/gorilla/websocket: the socket, with ping/pong keepalive.
 */
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/domain"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
	sendBufferSize = 32
)

// clientFrame is a message from the browser.
type clientFrame struct {
	Action string         `json:"action"`
	View   string         `json:"view"`
	Params app.ViewParams `json:"params"`
}

// serverFrame is a message to the browser.
type serverFrame struct {
	Type          string                `json:"type"`
	View          app.ViewName          `json:"view,omitempty"`
	Data          interface{}           `json:"data,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
	Unread        *int                  `json:"unreadCount,omitempty"`
	Toasts        []app.Toast           `json:"toasts,omitempty"`
	Error         string                `json:"error,omitempty"`
	Redirect      string                `json:"redirect,omitempty"`
}

// socket is one websocket connection.
type socket struct {
	conn   *websocket.Conn
	ws     *app.Workspace
	out    chan serverFrame
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	mu     sync.Mutex
	mounts map[app.ViewName]*app.Mount
}

// send queues a frame without blocking. A socket that cannot keep up is closed.
func (c *socket) send(f serverFrame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- f:
	case <-c.done:
	default:
		c.logger.Warn("websocket send buffer full, closing", "session_id", c.ws.SessionID())
		c.close()
	}
}

func (c *socket) close() {
	c.once.Do(func() { close(c.done) })
}

func errorFrame(view app.ViewName, err error) serverFrame {
	_, body := classify(err)
	return serverFrame{Type: "error", View: view, Error: body.Error, Redirect: body.Redirect}
}

// hub fans the pushes of one workspace out to its sockets.
type hub struct {
	ws    *app.Workspace
	mu    sync.Mutex
	conns map[*socket]struct{}
}

func (h *hub) broadcast(f serverFrame) {
	h.mu.Lock()
	conns := make([]*socket, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.send(f)
	}
}

func (h *hub) flushToasts() {
	if toasts := h.ws.Toasts.Drain(); len(toasts) > 0 {
		h.broadcast(serverFrame{Type: "toast", Toasts: toasts})
	}
}

func (h *hub) notificationsChanged(items []domain.Notification) {
	unread := domain.UnreadCount(items)
	h.broadcast(serverFrame{Type: "notifications", Notifications: items, Unread: &unread})
}

// attach registers c with the hub of its workspace, creating the hub on first use.
func (s *Server) attach(c *socket) *hub {
	s.hubsMu.Lock()
	defer s.hubsMu.Unlock()
	h, ok := s.hubs[c.ws]
	if !ok {
		h = &hub{ws: c.ws, conns: map[*socket]struct{}{}}
		s.hubs[c.ws] = h
		c.ws.Toasts.OnPush(h.flushToasts)
		c.ws.Notifications.OnChange(h.notificationsChanged)
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return h
}

// detach removes c. The last socket out unhooks the workspace so toasts queue for HTTP again.
func (s *Server) detach(c *socket) {
	s.hubsMu.Lock()
	defer s.hubsMu.Unlock()
	h, ok := s.hubs[c.ws]
	if !ok {
		return
	}
	h.mu.Lock()
	delete(h.conns, c)
	empty := len(h.conns) == 0
	h.mu.Unlock()
	if empty {
		delete(s.hubs, c.ws)
		c.ws.Toasts.OnPush(nil)
		c.ws.Notifications.OnChange(nil)
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.manager.Open(r.Context(), GetSessionIDFromContext(r.Context()))
	if err != nil {
		s.respondWithError(w, r, nil, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.SocketOpened()
		defer s.metrics.SocketClosed()
	}

	c := &socket{
		conn:   conn,
		ws:     ws,
		out:    make(chan serverFrame, sendBufferSize),
		done:   make(chan struct{}),
		logger: s.logger,
		mounts: map[app.ViewName]*app.Mount{},
	}
	h := s.attach(c)
	defer func() {
		s.detach(c)
		c.unmountAll()
	}()

	go c.writePump()
	// Anything queued before the socket opened goes out first.
	h.flushToasts()
	c.readPump()
}

func (c *socket) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.send(serverFrame{Type: "error", Error: "Malformed frame"})
			continue
		}
		c.handle(frame)
	}
}

func (c *socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case f := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *socket) handle(f clientFrame) {
	view, err := app.ParseViewName(f.View)
	if err != nil {
		c.send(errorFrame("", err))
		return
	}
	switch f.Action {
	case "mount":
		c.mount(view, f.Params)
	case "unmount":
		c.unmount(view)
	default:
		c.send(serverFrame{Type: "error", View: view, Error: "Unknown action"})
	}
}

// mount replaces any existing mount of the same view.
func (c *socket) mount(view app.ViewName, params app.ViewParams) {
	c.unmount(view)

	ctx, cancel := context.WithTimeout(context.Background(), subsentryclient.DefaultTimeout)
	defer cancel()
	m, data, err := c.ws.Mount(ctx, view, params, func(u app.ViewUpdate) {
		if u.Err != nil {
			c.send(errorFrame(u.View, u.Err))
			return
		}
		c.send(serverFrame{Type: "view", View: u.View, Data: u.Data})
	})
	if err != nil {
		c.send(errorFrame(view, err))
		return
	}

	c.mu.Lock()
	c.mounts[view] = m
	c.mu.Unlock()
	c.send(serverFrame{Type: "view", View: view, Data: data})
}

func (c *socket) unmount(view app.ViewName) {
	c.mu.Lock()
	m, ok := c.mounts[view]
	delete(c.mounts, view)
	c.mu.Unlock()
	if ok {
		m.Close()
	}
}

func (c *socket) unmountAll() {
	c.mu.Lock()
	mounts := c.mounts
	c.mounts = map[app.ViewName]*app.Mount{}
	c.mu.Unlock()
	for _, m := range mounts {
		m.Close()
	}
}
