package httpapi

import (
	"net/http"
	"time"

	"edu-crm/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPongWait     = 45 * time.Second
	streamPingInterval = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Access tokens gate the endpoint; the softphone may be served from
	// another origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamCall pushes every ledger write for a call over a websocket, starting
// with the current snapshot. The stream ends when the client goes away.
func (h Handlers) StreamCall(c *gin.Context) {
	sid := c.Param("call_sid")
	log := logger.FromGin(c).With("call_sid", sid)

	ctx := c.Request.Context()
	if rec, err := h.Ledger.Get(ctx, sid); err == nil && !canSee(c, rec) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	sub, err := h.Ledger.Subscribe(ctx, sid)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	h.Metrics.StreamOpened()
	defer h.Metrics.StreamClosed()

	// Reads only serve control frames and detect the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case rec, ok := <-sub.Updates():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "ledger closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			// Ownership can be recorded after the stream opened.
			if !canSee(c, rec) {
				log.Warn("stream closed: caller may not see call")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "forbidden"),
					time.Now().Add(streamWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(rec); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
