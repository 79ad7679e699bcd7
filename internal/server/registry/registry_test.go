package registry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	broken bool
	closed bool
}

func (f *fakeSocket) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) types(t *testing.T) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, frame := range f.frames {
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg.Type)
	}
	return out
}

type msg struct {
	Type string `json:"type"`
}

func TestSendResolvesSession(t *testing.T) {
	r := New(zerolog.Nop())
	sock := &fakeSocket{}
	r.Register("c1", sock)

	assert.False(t, r.Send("s1", msg{"hello"}))
	require.True(t, r.Associate("c1", "s1"))
	assert.True(t, r.Connected("s1"))
	assert.Equal(t, "s1", r.SessionOf("c1"))

	assert.True(t, r.Send("s1", msg{"hello"}))
	assert.Equal(t, []string{"hello"}, sock.types(t))
}

func TestAssociateLastWriteWins(t *testing.T) {
	r := New(zerolog.Nop())
	r.Register("c1", &fakeSocket{})

	r.Associate("c1", "s1")
	r.Associate("c1", "s2")

	assert.False(t, r.Connected("s1"))
	assert.True(t, r.Connected("s2"))
	assert.False(t, r.Associate("missing", "s3"))
}

func TestUnregisterClosesAndClears(t *testing.T) {
	r := New(zerolog.Nop())
	sock := &fakeSocket{}
	r.Register("c1", sock)
	r.Associate("c1", "s1")

	assert.Equal(t, "s1", r.Unregister("c1"))
	assert.True(t, sock.closed)
	assert.False(t, r.Connected("s1"))
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, "", r.Unregister("c1"))
}

func TestReconnectKeepsNewerBinding(t *testing.T) {
	r := New(zerolog.Nop())
	r.Register("old", &fakeSocket{})
	r.Associate("old", "s1")
	r.Register("new", &fakeSocket{})
	r.Associate("new", "s1")

	r.Unregister("old")
	assert.True(t, r.Connected("s1"))
}

func TestBroadcastPrunesDeadPeers(t *testing.T) {
	r := New(zerolog.Nop())
	alive, dead, other := &fakeSocket{}, &fakeSocket{broken: true}, &fakeSocket{}
	r.Register("c1", alive)
	r.Register("c2", dead)
	r.Register("c3", other)
	r.Associate("c1", "s1")
	r.Associate("c2", "s2")
	r.Associate("c3", "s3")

	members := map[string]bool{"s1": true, "s2": true}
	sent := r.Broadcast(msg{"update"}, func(_, sessionID string) bool { return members[sessionID] })

	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"update"}, alive.types(t))
	assert.Empty(t, other.types(t))
	assert.True(t, dead.closed)
	assert.False(t, r.Connected("s2"))
	assert.Equal(t, 2, r.Count())

	assert.False(t, r.Send("s2", msg{"again"}))
}

func TestBroadcastNilPredicateReachesAll(t *testing.T) {
	r := New(zerolog.Nop())
	a, b := &fakeSocket{}, &fakeSocket{}
	r.Register("c1", a)
	r.Register("c2", b)

	assert.Equal(t, 2, r.Broadcast(msg{"all"}, nil))
	assert.True(t, r.SendConn("c2", msg{"direct"}))
	assert.Equal(t, []string{"all", "direct"}, b.types(t))
}

func TestPruneReportsLostSession(t *testing.T) {
	r := New(zerolog.Nop())
	lost := make(chan string, 2)
	r.OnPrune(func(sessionID string) { lost <- sessionID })

	r.Register("c1", &fakeSocket{broken: true})
	r.Associate("c1", "s1")
	assert.False(t, r.Send("s1", msg{"update"}))

	select {
	case got := <-lost:
		assert.Equal(t, "s1", got)
	case <-time.After(time.Second):
		t.Fatal("prune callback not called")
	}

	// Pruned connection is gone, the transport cleanup sees nothing
	assert.Equal(t, "", r.Unregister("c1"))
}

func TestPruneSkipsUnboundAndReplacedConnections(t *testing.T) {
	r := New(zerolog.Nop())
	lost := make(chan string, 2)
	r.OnPrune(func(sessionID string) { lost <- sessionID })

	r.Register("anon", &fakeSocket{broken: true})
	assert.False(t, r.SendConn("anon", msg{"hello"}))

	// A newer connection owns s1, losing the stale one is not a disconnect
	stale := &fakeSocket{broken: true}
	r.Register("old", stale)
	r.Associate("old", "s1")
	r.Register("new", &fakeSocket{})
	r.Associate("new", "s1")
	assert.False(t, r.SendConn("old", msg{"hello"}))
	assert.True(t, stale.closed)
	assert.True(t, r.Connected("s1"))

	select {
	case got := <-lost:
		t.Fatalf("unexpected prune of %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}
