package server

import (
	"errors"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/session"
	"github.com/wfunc/spyserver/utils"
)

func (s *GameServer) handlePing(sess *session.Session, env *network.Envelope) (interface{}, error) {
	return "pong", nil
}

func (s *GameServer) handleCreateRoom(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.CreateRoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}
	nickname, err := utils.ValidateNickname(req.Nickname)
	if err != nil {
		return nil, err
	}
	seats := s.cfg.Game.DefaultSpectatorSeats
	if req.SpectatorSeats != nil {
		seats = *req.SpectatorSeats
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveCurrentRoomLocked(sess)
	r := s.registry.CreateRoom(sess.PlayerID, nickname, sess.ID, room.Options{
		DescriptionTime: req.DescriptionTime,
		DiscussionTime:  req.DiscussionTime,
		SpectatorSeats:  seats,
	})
	s.bindSessionLocked(sess, r.Code)
	s.monitor.SetActiveRooms(s.registry.RoomCount())
	s.emitRoomUpdateLocked(r)

	return network.CreateRoomResponse{Response: network.OK(), RoomCode: r.Code}, nil
}

// handleJoinRoom seats the caller as a player, or as a spectator once a game is running
// or a finished room is full. Joining a room one is already in rebinds the connection.
func (s *GameServer) handleJoinRoom(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.JoinRoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}
	if err := utils.ValidateRoomCode(req.RoomCode); err != nil {
		return nil, err
	}
	nickname, err := utils.ValidateNickname(req.Nickname)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registry.GetRoom(req.RoomCode)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if kind := r.MemberKind(sess.PlayerID); kind != room.MemberNone {
		s.rebindLocked(sess, r)
		return network.JoinRoomResponse{Response: network.OK(), Mode: kind.String()}, nil
	}

	if code, _, ok := s.registry.FindMember(sess.PlayerID); ok && code != req.RoomCode {
		s.removeMemberLocked(code, sess.PlayerID)
	}

	mode := network.ModePlayer
	if r.Phase.Active() {
		_, err = s.registry.AddSpectator(r.Code, sess.PlayerID, nickname, sess.ID)
		mode = network.ModeSpectator
	} else {
		_, err = s.registry.AddPlayer(r.Code, sess.PlayerID, nickname, sess.ID)
		if errors.Is(err, models.ErrRoomFull) && r.Phase == models.PhaseEnded {
			_, err = s.registry.AddSpectator(r.Code, sess.PlayerID, nickname, sess.ID)
			mode = network.ModeSpectator
		}
	}
	if err != nil {
		return nil, err
	}

	s.bindSessionLocked(sess, r.Code)
	s.broadcaster.BroadcastToRoom(r.Code, network.EvtPlayerJoined, network.PlayerJoinedEvent{
		PlayerID: sess.PlayerID,
		Nickname: nickname,
		Mode:     mode,
	})
	s.emitRoomUpdateLocked(r)

	return network.JoinRoomResponse{Response: network.OK(), Mode: mode}, nil
}

func (s *GameServer) handleRejoinRoom(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.RoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	s.rebindLocked(sess, r)
	return network.OK(), nil
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.RoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.memberRoomLocked(sess, req.RoomCode); err != nil {
		return nil, err
	}
	s.removeMemberLocked(req.RoomCode, sess.PlayerID)
	sess.SetRoomCode("")
	return network.OK(), nil
}

func (s *GameServer) handleToggleReady(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.RoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	allReady, err := s.engine.ToggleReady(r, sess.PlayerID)
	if err != nil {
		return nil, err
	}
	s.emitRoomUpdateLocked(r)
	return network.ToggleReadyResponse{Response: network.OK(), AllReady: allReady}, nil
}

// handleRestartGame returns an ENDED room to WAITING once every player is ready.
func (s *GameServer) handleRestartGame(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.RoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	if r.HostID != sess.PlayerID {
		return nil, models.ErrNotHost
	}
	if r.Phase != models.PhaseEnded {
		return nil, models.ErrGameNotEnded
	}
	if !r.AllReady() {
		return nil, models.ErrNotAllReady
	}
	if err := s.engine.ResetRoom(r); err != nil {
		return nil, err
	}
	logger.Log.Infow("room reset", "room", r.Code)

	s.promoteLocked(r)
	s.emitRoomUpdateLocked(r)
	return network.OK(), nil
}

// ---------- helpers ----------

// memberRoomLocked resolves code to a room the session's player belongs to.
func (s *GameServer) memberRoomLocked(sess *session.Session, code string) (*room.Room, error) {
	if err := utils.ValidateRoomCode(code); err != nil {
		return nil, err
	}
	r, ok := s.registry.GetRoom(code)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if r.MemberKind(sess.PlayerID) == room.MemberNone {
		return nil, models.ErrNotInRoom
	}
	return r, nil
}

// bindSessionLocked routes room broadcasts to sess. Older sockets of the same
// player stop receiving that room's events.
func (s *GameServer) bindSessionLocked(sess *session.Session, code string) {
	for _, other := range s.sessions.GetByPlayerID(sess.PlayerID) {
		if other.ID != sess.ID && other.RoomCode() == code {
			other.SetRoomCode("")
		}
	}
	sess.SetRoomCode(code)
}

func (s *GameServer) leaveCurrentRoomLocked(sess *session.Session) {
	if code, _, ok := s.registry.FindMember(sess.PlayerID); ok {
		s.removeMemberLocked(code, sess.PlayerID)
	}
	sess.SetRoomCode("")
}

func (s *GameServer) emitRoomUpdateLocked(r *room.Room) {
	s.broadcaster.BroadcastToRoom(r.Code, network.EvtRoomUpdate, room.SerializeRoom(r))
}

// promoteLocked seats queued spectators and announces each one.
func (s *GameServer) promoteLocked(r *room.Room) {
	for _, p := range s.registry.PromoteSpectators(r) {
		s.broadcaster.BroadcastToRoom(r.Code, network.EvtPlayerJoined, network.PlayerJoinedEvent{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Mode:     network.ModePlayer,
		})
	}
}
