package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamFeed serves the live activity feed as Server-Sent Events.
func (h *Handler) StreamFeed(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	send := func(e activity.Event) error {
		c.SSEvent("activity", e)
		c.Writer.Flush()
		return c.Request.Context().Err()
	}
	if err := h.Feed.Serve(c.Request.Context(), send); err != nil {
		h.Logger.Debug("sse feed closed", "error", err)
	}
}

// FeedSocket serves the live activity feed over a WebSocket.
func (h *Handler) FeedSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The feed is one-way. Reading detects the client going away and
	// answers control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(e activity.Event) error {
		if err := ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		return ws.WriteJSON(e)
	}
	if err := h.Feed.Serve(ctx, send); err != nil {
		h.Logger.Debug("websocket feed closed", "error", err)
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"),
		time.Now().Add(time.Second))
}
