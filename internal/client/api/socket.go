package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var ErrNotConnected = errors.New("websocket not connected")

// Socket is a live websocket connection to the room server.
// Incoming frames are delivered to the handler from a single reader goroutine.
type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	err     error
}

// Dial opens the websocket and starts reading. onFrame must not block for long.
func Dial(wsURL string, onFrame func(Frame)) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Socket{
		conn: conn,
		done: make(chan struct{}),
	}
	go s.readLoop(onFrame)
	return s, nil
}

func (s *Socket) readLoop(onFrame func(Frame)) {
	defer close(s.done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.err = err
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			f = Frame{Type: "invalid", Data: json.RawMessage(fmt.Sprintf("%q", raw))}
		}
		onFrame(f)
	}
}

// Send writes one message of the given type
func (s *Socket) Send(msgType string, data any) error {
	if s == nil {
		return ErrNotConnected
	}
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	frame := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{msgType, data}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

// Done is closed when the reader exits
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err reports why the reader stopped, nil for a clean close
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

// Close sends a close frame and tears the connection down
func (s *Socket) Close() error {
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
	return s.conn.Close()
}
