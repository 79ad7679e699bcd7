package http

import (
	"time"

	"arcade/internal/server/core"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteWait    = 5 * time.Second
	wsMaxMessage   = 8 << 10
)

// wsSocket adapts a websocket connection to the registry. Writes are serialized by the registry.
type wsSocket struct {
	conn *websocket.Conn
}

func (s wsSocket) Write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s wsSocket) Close() error {
	return s.conn.Close()
}

// serveWS runs the read loop of one websocket connection
func (h *HTTPHandler) serveWS(c *websocket.Conn) {
	connID := uuid.New().String()
	reg := h.svc.Registry()
	ns := h.svc.Namespace()
	log := h.log.With().Str("conn_id", connID).Logger()

	reg.Register(connID, wsSocket{conn: c})
	log.Debug().Str("remote", c.RemoteAddr().String()).Msg("websocket connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		// another connection may already own the session
		if session := reg.Unregister(connID); session != "" && !reg.Connected(session) {
			h.svc.Disconnect(session)
		}
		log.Debug().Msg("websocket closed")
	}()

	c.SetReadLimit(wsMaxMessage)
	c.SetReadDeadline(time.Now().Add(wsPongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go keepAlive(c, done)

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessageRate), h.cfg.MessageBurst)

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		c.SetReadDeadline(time.Now().Add(wsPongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			reg.SendConn(connID, ns.Event(core.EventError, core.ErrorEvent{
				Message: "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
			}))
			continue
		}

		h.proc.Handle(connID, data)
	}
}

// keepAlive pings until done closes or a ping fails
func keepAlive(c *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
