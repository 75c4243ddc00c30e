package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"inputfeed/internal/transport/httpdto"
	apperrors "inputfeed/pkg/errors"
	"inputfeed/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ViewerTracker records connected viewers outside this process.
type ViewerTracker interface {
	Join(ctx context.Context, viewerID, subject string) error
	Leave(ctx context.Context, viewerID string) error
	Heartbeat(ctx context.Context, viewerID string) error
}

type Handler struct {
	authz   *Authorizer
	hub     *Hub
	viewers ViewerTracker
	log     *logger.Logger
}

// NewHandler creates the /v1/stream handler. viewers may be nil.
func NewHandler(authz *Authorizer, hub *Hub, viewers ViewerTracker, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{authz: authz, hub: hub, viewers: viewers, log: log.Named("stream")}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connect upgrades the request and streams matching records until the
// viewer disconnects.
func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.authz.Authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	channels, err := h.authz.Channels(claims, c.Query("types"))
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unknown event type", "INVALID_TYPES"))
			return
		}
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("event type not allowed", "FORBIDDEN"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, claims.Subject)
	if err := conn.WriteJSON(httpdto.StreamHello{ClientID: client.ID, Types: channels}); err != nil {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.hub.Register(client)
	for _, ch := range channels {
		h.hub.Subscribe(client, ch)
	}
	h.trackJoin(ctx, client)
	go client.WriteLoop(ctx)

	h.log.Infof("viewer %s connected subject=%q types=%v", client.ID, client.Subject, channels)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.heartbeat(ctx, client)
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	h.hub.Unregister(client)
	h.trackLeave(client)
	h.log.Infof("viewer %s disconnected dropped=%d", client.ID, client.Dropped())
}

func (h *Handler) trackJoin(ctx context.Context, client *Client) {
	if h.viewers == nil {
		return
	}
	if err := h.viewers.Join(ctx, client.ID, client.Subject); err != nil {
		h.log.Warnf("viewer %s: join tracking failed: %v", client.ID, err)
	}
}

func (h *Handler) heartbeat(ctx context.Context, client *Client) {
	if h.viewers == nil {
		return
	}
	if err := h.viewers.Heartbeat(ctx, client.ID); err != nil {
		h.log.Debugf("viewer %s: heartbeat failed: %v", client.ID, err)
	}
}

func (h *Handler) trackLeave(client *Client) {
	if h.viewers == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.viewers.Leave(ctx, client.ID); err != nil {
		h.log.Warnf("viewer %s: leave tracking failed: %v", client.ID, err)
	}
}
