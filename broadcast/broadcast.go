// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomCode, event string, payload interface{}) error
	SendToSession(sessionID, event string, payload interface{}) error
}

// 基于房间的广播器, 房间成员即当前 RoomCode 指向该房间的会话
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom marshals payload once and queues it on every session in the room.
// A session that cannot take it is skipped; its read loop will notice the close.
func (b *RoomBroadcaster) BroadcastToRoom(roomCode, event string, payload interface{}) error {
	env, err := network.NewEnvelope(event, 0, payload)
	if err != nil {
		return err
	}

	for _, s := range b.sessionManager.InRoom(roomCode) {
		if err := s.SendEnvelope(env); err != nil {
			logger.Log.Debugw("broadcast enqueue failed", "room", roomCode, "event", event, "session", s.ID, "error", err)
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToSession(sessionID, event string, payload interface{}) error {
	s, ok := b.sessionManager.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return s.Send(event, payload)
}
