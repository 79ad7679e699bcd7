package registry

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Socket is the write side of a live transport connection
type Socket interface {
	Write(data []byte) error
	Close() error
}

type conn struct {
	id        string
	sessionID string
	socket    Socket
	writeMu   sync.Mutex
}

// Registry tracks live connections and their session association.
// Send and Broadcast never fail on a dead peer, the connection is pruned instead.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*conn
	sessions map[string]string // sessionID -> connID
	onPrune  func(sessionID string)
	log      zerolog.Logger
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:    make(map[string]*conn),
		sessions: make(map[string]string),
		log:      logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection with no session yet
func (r *Registry) Register(connID string, socket Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &conn{id: connID, socket: socket}
}

// OnPrune sets the callback run when a failed write removes the last connection of a session.
// It runs on its own goroutine since writes happen under callers' locks.
func (r *Registry) OnPrune(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPrune = fn
}

// Unregister drops the connection, clears its session mapping and closes the socket.
// Returns the session the connection was bound to, if any.
func (r *Registry) Unregister(connID string) string {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ""
	}
	delete(r.conns, connID)
	if c.sessionID != "" && r.sessions[c.sessionID] == connID {
		delete(r.sessions, c.sessionID)
	}
	r.mu.Unlock()

	c.writeMu.Lock()
	c.socket.Close()
	c.writeMu.Unlock()
	return c.sessionID
}

// Associate binds a session to a connection, replacing any earlier binding of either side
func (r *Registry) Associate(connID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	if c.sessionID != "" && r.sessions[c.sessionID] == connID {
		delete(r.sessions, c.sessionID)
	}
	c.sessionID = sessionID
	r.sessions[sessionID] = connID
	return true
}

// SessionOf returns the session bound to a connection
func (r *Registry) SessionOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[connID]; ok {
		return c.sessionID
	}
	return ""
}

// Connected reports whether a session has a live connection
func (r *Registry) Connected(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send delivers msg to the live connection of a session
func (r *Registry) Send(sessionID string, msg any) bool {
	r.mu.RLock()
	connID, ok := r.sessions[sessionID]
	var c *conn
	if ok {
		c = r.conns[connID]
	}
	r.mu.RUnlock()

	if c == nil {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal outbound message")
		return false
	}
	return r.write(c, data)
}

// SendConn delivers msg to a connection that may not have a session yet
func (r *Registry) SendConn(connID string, msg any) bool {
	r.mu.RLock()
	c := r.conns[connID]
	r.mu.RUnlock()

	if c == nil {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal outbound message")
		return false
	}
	return r.write(c, data)
}

// Broadcast sends msg to every connection accepted by pred, nil pred matches all.
// Returns the number of successful deliveries.
func (r *Registry) Broadcast(msg any, pred func(connID, sessionID string) bool) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal outbound message")
		return 0
	}

	r.mu.RLock()
	targets := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		if pred == nil || pred(c.id, c.sessionID) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if r.write(c, data) {
			sent++
		}
	}
	return sent
}

func (r *Registry) write(c *conn, data []byte) bool {
	c.writeMu.Lock()
	err := c.socket.Write(data)
	c.writeMu.Unlock()

	if err != nil {
		r.log.Debug().Err(err).Str("conn_id", c.id).Msg("pruning dead connection")
		r.prune(c.id)
		return false
	}
	return true
}

// prune unregisters a dead connection. The transport's own cleanup will find it
// gone, so the session is reported here instead.
func (r *Registry) prune(connID string) {
	session := r.Unregister(connID)
	if session == "" || r.Connected(session) {
		return
	}

	r.mu.RLock()
	fn := r.onPrune
	r.mu.RUnlock()
	if fn != nil {
		go fn(session)
	}
}
