// Package session holds the mutable state of one interactive client.
package session

import (
	"io"
	"os"
	"sync"

	"arcade/internal/client/api"
)

type Session struct {
	APIBaseURL string
	Client     *api.Client
	Socket     *api.Socket
	Verbose    bool

	// Namespace is the event prefix the server was started with
	Namespace string

	// Out receives asynchronous websocket output; readline's stdout keeps the prompt intact
	Out io.Writer

	mu          sync.Mutex
	sessionID   string
	displayName string
	roomCode    string
	mode        string
	watch       bool
	lastTick    int
}

func New(baseURL string) *Session {
	return &Session{
		APIBaseURL: baseURL,
		Client:     api.New(baseURL),
		Namespace:  "snake",
		Out:        os.Stdout,
		watch:      true,
	}
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) SetSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

func (s *Session) SetDisplayName(name string) {
	s.mu.Lock()
	s.displayName = name
	s.mu.Unlock()
}

// Room returns the current room code and mode
func (s *Session) Room() (code, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode, s.mode
}

func (s *Session) SetRoom(code, mode string) {
	s.mu.Lock()
	s.roomCode, s.mode = code, mode
	s.mu.Unlock()
}

func (s *Session) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watch
}

func (s *Session) SetWatching(on bool) {
	s.mu.Lock()
	s.watch = on
	s.mu.Unlock()
}

func (s *Session) LastTick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

func (s *Session) SetLastTick(tick int) {
	s.mu.Lock()
	s.lastTick = tick
	s.mu.Unlock()
}

// Connected reports whether a websocket is open
func (s *Session) Connected() bool {
	if s.Socket == nil {
		return false
	}
	select {
	case <-s.Socket.Done():
		return false
	default:
		return true
	}
}
