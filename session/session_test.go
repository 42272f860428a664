package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/spyserver/network"
	"golang.org/x/time/rate"
)

// MockConnection is a test double for the network.Connection interface.
// A non-nil stall blocks every write until it is closed.
type MockConnection struct {
	mu     sync.Mutex
	sent   []*network.Envelope
	closed bool
	stall  chan struct{}
}

func (m *MockConnection) WriteEnvelope(env *network.Envelope) error {
	if m.stall != nil {
		<-m.stall
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
	return nil
}
func (m *MockConnection) ReadEnvelope() (*network.Envelope, error) { return nil, nil }
func (m *MockConnection) Ping() error                              { return nil }
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                     { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)      {}

func (m *MockConnection) frames() []*network.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*network.Envelope(nil), m.sent...)
}

func (m *MockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, "player1", &MockConnection{}, nil)

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()
	manager.Add(NewSession("session1", "p100", &MockConnection{}, nil))
	manager.Add(NewSession("session2", "p200", &MockConnection{}, nil))
	manager.Add(NewSession("session3", "p100", &MockConnection{}, nil))

	assert.Len(t, manager.GetByPlayerID("p100"), 2)
	assert.Len(t, manager.GetByPlayerID("p200"), 1)
	assert.Empty(t, manager.GetByPlayerID("p300"))
}

func TestManager_InRoom(t *testing.T) {
	manager := NewManager()
	a := NewSession("a", "pa", &MockConnection{}, nil)
	b := NewSession("b", "pb", &MockConnection{}, nil)
	c := NewSession("c", "pc", &MockConnection{}, nil)
	a.SetRoomCode("123456")
	b.SetRoomCode("123456")
	c.SetRoomCode("654321")
	manager.Add(a)
	manager.Add(b)
	manager.Add(c)

	assert.ElementsMatch(t, []*Session{a, b}, manager.InRoom("123456"))
	b.SetRoomCode("")
	assert.Equal(t, []*Session{a}, manager.InRoom("123456"))
}

func TestSession_SendAndReply(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", "p", conn, nil)

	defer sess.Close()

	require.NoError(t, sess.Send(network.EvtVoteSubmitted, network.VoteSubmittedEvent{VoterID: "p"}))
	require.NoError(t, sess.Reply(7, network.OK()))

	require.Eventually(t, func() bool { return len(conn.frames()) == 2 }, time.Second, 2*time.Millisecond)
	sent := conn.frames()
	assert.Equal(t, network.EvtVoteSubmitted, sent[0].Event)
	assert.Zero(t, sent[0].Ack)
	assert.JSONEq(t, `{"voterId":"p"}`, string(sent[0].Data))
	assert.Equal(t, network.EvtAck, sent[1].Event)
	assert.Equal(t, uint64(7), sent[1].Ack)
	assert.JSONEq(t, `{"success":true}`, string(sent[1].Data))
}

func TestSession_StalledClientIsClosedInsteadOfBlocking(t *testing.T) {
	conn := &MockConnection{stall: make(chan struct{})}
	defer close(conn.stall)
	sess := NewSession("s", "p", conn, nil)

	start := time.Now()
	var err error
	for i := 0; i <= SendBufferSize+1 && err == nil; i++ {
		err = sess.Send(network.EvtVoteSubmitted, network.VoteSubmittedEvent{VoterID: "p"})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, ErrSendOverflow)
	assert.True(t, conn.isClosed())

	select {
	case <-sess.Done():
	default:
		t.Fatal("Expected session to be closed after overflow")
	}
	assert.ErrorIs(t, sess.Send(network.EvtPong, nil), ErrSessionClosed)
}

func TestSession_Allow(t *testing.T) {
	sess := NewSession("s", "p", &MockConnection{}, rate.NewLimiter(rate.Every(time.Hour), 2))
	assert.True(t, sess.Allow())
	assert.True(t, sess.Allow())
	assert.False(t, sess.Allow())

	unlimited := NewSession("u", "p", &MockConnection{}, nil)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}
}
