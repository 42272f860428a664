package server

import (
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/session"
	"github.com/wfunc/spyserver/state"
)

// removeMemberLocked takes a member out of a room and repairs whatever the departure
// broke: host, turn, pending votes, or the whole game.
func (s *GameServer) removeMemberLocked(code, playerID string) room.RemoveResult {
	r, ok := s.registry.GetRoom(code)
	if !ok {
		return room.RemoveResult{}
	}
	departure, wasPlayer := s.engine.Departure(r, playerID)

	res := s.registry.RemoveMember(code, playerID)
	if !res.Found {
		return res
	}
	s.clearDraftLocked(code, playerID)
	s.timers.Cancel(graceKey(playerID))
	for _, sess := range s.sessions.GetByPlayerID(playerID) {
		if sess.RoomCode() == code {
			sess.SetRoomCode("")
		}
	}

	if res.RoomDeleted {
		s.dropRoomLocked(code)
		s.monitor.SetActiveRooms(s.registry.RoomCount())
		return res
	}

	r = res.Room
	s.broadcaster.BroadcastToRoom(code, network.EvtPlayerLeft, network.PlayerLeftEvent{
		PlayerID: playerID,
		Nickname: res.Nickname,
	})

	if wasPlayer && r.Phase.Active() {
		s.reconcileLocked(r, departure)
		return res
	}
	if !r.Phase.Active() {
		s.promoteLocked(r)
	}
	s.emitRoomUpdateLocked(r)
	return res
}

// reconcileLocked continues a running game after a player left it.
func (s *GameServer) reconcileLocked(r *room.Room, d state.Departure) {
	out := s.engine.Reconcile(r, d)
	switch {
	case out.GameOver != nil:
		s.afterGameEndedLocked(r, out.GameOver)
	case out.EnteredDiscussion:
		s.emitRoomUpdateLocked(r)
		s.beginDiscussionLocked(r)
	case out.SpeakerChanged:
		s.emitRoomUpdateLocked(r)
		s.beginTurnLocked(r)
	case out.AllVoted:
		s.emitRoomUpdateLocked(r)
		s.scheduleSettleLocked(r)
	default:
		s.emitRoomUpdateLocked(r)
	}
}

// dropRoomLocked forgets everything the coordinator keeps for a deleted room.
func (s *GameServer) dropRoomLocked(code string) {
	s.timers.CancelPrefix(code + ":")
	delete(s.drafts, code)
	for _, sess := range s.sessions.InRoom(code) {
		sess.SetRoomCode("")
	}
}

// handleDisconnect keeps the member's seat for the reconnect grace period.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := sess.RoomCode()
	if code == "" {
		return
	}
	r, ok := s.registry.GetRoom(code)
	if !ok {
		return
	}
	if connID, ok := r.MemberConnID(sess.PlayerID); !ok || connID != sess.ID {
		return
	}

	playerID, sessionID := sess.PlayerID, sess.ID
	logger.Log.Infow("member disconnected, holding seat", "room", code, "player", playerID, "grace", s.cfg.Game.ReconnectGrace)

	s.timers.Schedule(graceKey(playerID), s.cfg.Game.ReconnectGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.recoverTimer(code)

		r, ok := s.registry.GetRoom(code)
		if !ok {
			return
		}
		if connID, ok := r.MemberConnID(playerID); !ok || connID != sessionID {
			return
		}
		logger.Log.Infow("reconnect grace expired", "room", code, "player", playerID)
		s.removeMemberLocked(code, playerID)
	})
}

// resumeMembership reattaches a returning identity to the room it still belongs to.
func (s *GameServer) resumeMembership(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, _, ok := s.registry.FindMember(sess.PlayerID)
	if !ok {
		return
	}
	if r, ok := s.registry.GetRoom(code); ok {
		s.rebindLocked(sess, r)
	}
}

// rebindLocked points a member at a new connection without touching game state and
// resends the private role.
func (s *GameServer) rebindLocked(sess *session.Session, r *room.Room) {
	if s.timers.Cancel(graceKey(sess.PlayerID)) {
		s.monitor.IncReconnects()
		logger.Log.Infow("member reconnected", "room", r.Code, "player", sess.PlayerID)
	}
	s.registry.UpdateMemberConnection(r.Code, sess.PlayerID, sess.ID)
	s.bindSessionLocked(sess, r.Code)
	s.emitRoomUpdateLocked(r)

	if p, ok := r.Player(sess.PlayerID); ok && r.Phase.Active() && p.Role != models.RoleNone {
		sess.Send(network.EvtGameStarted, network.GameStartedEvent{Role: p.Role, Word: p.Word})
	}
}
