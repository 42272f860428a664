package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/session"
	"github.com/wfunc/spyserver/utils"
)

// handleStartGame validates under the lock, fetches a word pair without it, then
// re-validates and deals. A concurrent start loses with "Game already started".
func (s *GameServer) handleStartGame(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.RoomRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err == nil && r.HostID != sess.PlayerID {
		err = models.ErrNotHost
	}
	if err == nil {
		err = s.engine.CheckCanStart(r)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	used := append([]string(nil), r.UsedWordPairIDs...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), wordFetchTimeout)
	pair, resetHistory, err := s.engine.SelectWordPair(ctx, used)
	cancel()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err = s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	if r.HostID != sess.PlayerID {
		return nil, models.ErrNotHost
	}
	if err := s.engine.BeginGame(r, pair, resetHistory); err != nil {
		return nil, err
	}
	s.monitor.IncGamesStarted()
	delete(s.drafts, r.Code)
	logger.Log.Infow("game started", "room", r.Code, "players", len(r.Players), "wordPair", pair.ID)

	for _, p := range r.OrderedPlayers() {
		if err := s.broadcaster.SendToSession(p.ConnID, network.EvtGameStarted, network.GameStartedEvent{Role: p.Role, Word: p.Word}); err != nil {
			logger.Log.Debugw("role not delivered", "room", r.Code, "player", p.ID, "error", err)
		}
	}
	s.emitRoomUpdateLocked(r)
	s.beginTurnLocked(r)
	return network.OK(), nil
}

func (s *GameServer) handleSubmitDescription(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.TextRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	nextTurn, err := s.engine.SubmitDescription(r, sess.PlayerID, req.Text)
	if err != nil {
		return nil, err
	}
	s.clearDraftLocked(r.Code, sess.PlayerID)

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtNewDescription, r.Descriptions[len(r.Descriptions)-1])
	s.afterDescriptionLocked(r, nextTurn)
	return network.OK(), nil
}

// handleSetDescriptionDraft keeps the speaker's unsent text for the turn timeout.
// Drafts from anyone but the current speaker are ignored.
func (s *GameServer) handleSetDescriptionDraft(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.TextRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	if speaker := s.engine.CurrentSpeaker(r); speaker != nil && speaker.ID == sess.PlayerID {
		s.setDraftLocked(r.Code, sess.PlayerID, utils.NormalizeDraft(req.Text))
	}
	return network.OK(), nil
}

func (s *GameServer) handleSubmitVote(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.VoteRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}
	if req.TargetID == "" {
		return nil, models.Validation("Vote target is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	allVoted, err := s.engine.SubmitVote(r, sess.PlayerID, req.TargetID)
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtVoteSubmitted, network.VoteSubmittedEvent{VoterID: sess.PlayerID})
	s.emitRoomUpdateLocked(r)
	if allVoted {
		s.scheduleSettleLocked(r)
	}
	return network.OK(), nil
}

func (s *GameServer) handleSendVoteMessage(sess *session.Session, env *network.Envelope) (interface{}, error) {
	var req network.TextRequest
	if err := decode(env, &req); err != nil {
		return nil, err
	}
	text, err := utils.ValidateMessage(req.Text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.memberRoomLocked(sess, req.RoomCode)
	if err != nil {
		return nil, err
	}
	p, ok := r.Player(sess.PlayerID)
	if !ok {
		return nil, models.ErrPlayerNotFound
	}

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtVoteMessage, models.VoteMessage{
		ID:        uuid.New().String(),
		PlayerID:  p.ID,
		Nickname:  p.Nickname,
		Text:      text,
		Timestamp: models.UnixMilli(s.now()),
	})
	return network.OK(), nil
}
