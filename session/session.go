// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/network"
	"golang.org/x/time/rate"
)

// SendBufferSize 每个会话待发送帧的上限, 写满的客户端会被断开
const SendBufferSize = 256

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendOverflow  = errors.New("send buffer full")
)

// Session 一个 websocket 连接. PlayerID 是跨重连保持不变的逻辑身份.
type Session struct {
	ID         string
	PlayerID   string
	Conn       network.Connection
	CreatedAt  time.Time
	roomCode   string
	lastActive time.Time
	limiter    *rate.Limiter
	mutex      sync.RWMutex

	send      chan *network.Envelope
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps conn and starts its writer. A nil limiter admits every command.
// Send and Reply never block: frames are queued and written by the writer goroutine.
func NewSession(id, playerID string, conn network.Connection, limiter *rate.Limiter) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		PlayerID:   playerID,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		limiter:    limiter,
		send:       make(chan *network.Envelope, SendBufferSize),
		done:       make(chan struct{}),
	}
	go s.writePump()
	return s
}

func (s *Session) writePump() {
	for {
		select {
		case env := <-s.send:
			if err := s.Conn.WriteEnvelope(env); err != nil {
				logger.Log.Debugw("session write failed", "session", s.ID, "event", env.Event, "error", err)
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// enqueue hands env to the writer. A client that cannot keep up is disconnected.
func (s *Session) enqueue(env *network.Envelope) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- env:
		return nil
	default:
		logger.Log.Warnw("send buffer full, closing session", "session", s.ID, "player", s.PlayerID, "event", env.Event)
		s.Close()
		return ErrSendOverflow
	}
}

func (s *Session) RoomCode() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomCode
}

func (s *Session) SetRoomCode(code string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomCode = code
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Allow consumes one token of the inbound command budget.
func (s *Session) Allow() bool {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
	return s.limiter == nil || s.limiter.Allow()
}

// Send emits a server event.
func (s *Session) Send(event string, payload interface{}) error {
	env, err := network.NewEnvelope(event, 0, payload)
	if err != nil {
		return err
	}
	return s.enqueue(env)
}

// SendEnvelope queues an already encoded frame.
func (s *Session) SendEnvelope(env *network.Envelope) error {
	return s.enqueue(env)
}

// Reply answers the command that carried ack.
func (s *Session) Reply(ack uint64, payload interface{}) error {
	env, err := network.NewEnvelope(network.EvtAck, ack, payload)
	if err != nil {
		return err
	}
	return s.enqueue(env)
}

func (s *Session) GetID() string {
	return s.ID
}

// Close stops the writer and closes the connection. Queued frames are dropped.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByPlayerID(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

// InRoom lists sessions currently associated with a room code.
func (m *Manager) InRoom(code string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomCode() == code {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
