package server

import (
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/rpc"
)

// Stats implements rpc.StatsProvider.
func (s *GameServer) Stats() rpc.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return rpc.Stats{
		Rooms:         s.registry.RoomCount(),
		Players:       s.registry.PlayerCount(),
		Spectators:    s.registry.SpectatorCount(),
		Connections:   s.sessions.Count(),
		PendingTimers: s.timers.Len(),
		Commands:      s.monitor.RequestCount(),
		UptimeSeconds: s.monitor.Uptime().Seconds(),
	}
}

// RoomSnapshot implements rpc.StatsProvider.
func (s *GameServer) RoomSnapshot(code string) (room.SerializedRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registry.GetRoom(code)
	if !ok {
		return room.SerializedRoom{}, false
	}
	return room.SerializeRoom(r), true
}

// cleanupInactiveRooms is the cron job evicting idle rooms.
func (s *GameServer) cleanupInactiveRooms() {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.registry.CleanupInactiveRooms()
	for _, code := range evicted {
		s.dropRoomLocked(code)
	}
	s.monitor.SetActiveRooms(s.registry.RoomCount())
	if len(evicted) > 0 {
		logger.Log.Infow("idle rooms evicted", "count", len(evicted))
	}
}
