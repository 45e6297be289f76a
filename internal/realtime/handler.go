package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Client message types.
const (
	MessageSubscribe    = "subscribe"
	MessageUnsubscribe  = "unsubscribe"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessageError        = "error"
)

type inboundMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
}

type controlMessage struct {
	Type    string `json:"type"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// SnapshotFunc returns the notification for a task that has already finished.
// It lets a client that subscribes late still get its push.
type SnapshotFunc func(ctx context.Context, taskID string) (models.Notification, bool)

// Handler upgrades HTTP requests to WebSockets and serves the subscribe protocol.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	logger   *slog.Logger
}

type HandlerOption func(*Handler)

func WithSnapshot(fn SnapshotFunc) HandlerOption {
	return func(h *Handler) { h.snapshot = fn }
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCheckOrigin replaces the same-origin check done by default.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

func NewHandler(registry *Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(ws, h.logger)
	connID := h.registry.Register(c)
	logger := h.logger.With("conn_id", connID, "client_id", chi.URLParam(r, "clientID"))
	logger.Info("websocket connected")

	go c.writePump()
	defer func() {
		h.registry.Unregister(connID)
		logger.Info("websocket disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			reply(c, controlMessage{Type: MessageError, Message: "invalid JSON message"})
			continue
		}

		switch in.Type {
		case MessageSubscribe:
			taskID := strings.TrimSpace(in.TaskID)
			if taskID == "" {
				reply(c, controlMessage{Type: MessageError, Message: "task_id is required"})
				continue
			}
			if err := h.registry.Subscribe(connID, taskID); err != nil {
				return
			}
			logger.Info("websocket subscribed", "task_id", taskID)
			reply(c, controlMessage{Type: MessageSubscribed, TaskID: taskID})
			h.pushSnapshot(r.Context(), c, taskID)

		case MessageUnsubscribe:
			h.registry.Unsubscribe(connID)
			reply(c, controlMessage{Type: MessageUnsubscribed})

		default:
			reply(c, controlMessage{Type: MessageError, Message: "unknown message type"})
		}
	}
}

func (h *Handler) pushSnapshot(ctx context.Context, c *client, taskID string) {
	if h.snapshot == nil {
		return
	}
	n, ok := h.snapshot(ctx, taskID)
	if !ok {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	c.Send(data)
}

func reply(c *client, msg controlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.Send(data)
}
