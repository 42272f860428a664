package server

import (
	"time"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/state"
)

func phaseKey(code string) string { return code + ":phase" }

func graceKey(playerID string) string { return "disconnect:" + playerID }

// stamp identifies one phase segment of a room. A timer armed in one segment
// must not act in another.
type stamp struct {
	phase     models.Phase
	turnStart int64
	seq       uint64
}

func stampOf(r *room.Room) stamp {
	return stamp{phase: r.Phase, turnStart: r.TurnStartTime, seq: r.TurnSeq}
}

func (s *GameServer) units(n int) time.Duration {
	return time.Duration(n) * s.cfg.Game.TimeUnit
}

// scheduleLocked arms the room's single phase timer, replacing any pending one.
// fn runs under mu only if the room still exists in the same phase segment.
func (s *GameServer) scheduleLocked(r *room.Room, delay time.Duration, fn func(r *room.Room)) {
	code := r.Code
	want := stampOf(r)
	s.timers.Schedule(phaseKey(code), delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.recoverTimer(code)

		cur, ok := s.registry.GetRoom(code)
		if !ok || stampOf(cur) != want {
			logger.Log.Debugw("stale phase timer ignored", "room", code, "phase", want.phase)
			return
		}
		fn(cur)
	})
}

func (s *GameServer) recoverTimer(code string) {
	if r := recover(); r != nil {
		logger.Log.Errorw("timer callback panic", "room", code, "panic", r)
	}
}

// ---------- describing ----------

func (s *GameServer) beginTurnLocked(r *room.Room) {
	speaker := s.engine.CurrentSpeaker(r)
	if speaker == nil {
		logger.Log.Warnw("no speaker for turn", "room", r.Code, "round", r.CurrentRound, "index", r.CurrentTurnIndex)
		return
	}
	delete(s.drafts, r.Code)

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtStartTurn, network.StartTurnEvent{
		PlayerID:  speaker.ID,
		Nickname:  speaker.Nickname,
		Round:     r.CurrentRound,
		TimeLimit: r.DescriptionTime,
		StartTime: r.TurnStartTime,
	})
	s.scheduleLocked(r, s.units(r.DescriptionTime), s.onTurnTimeout)
}

// onTurnTimeout commits the speaker's draft, possibly empty, and moves on.
func (s *GameServer) onTurnTimeout(r *room.Room) {
	speaker := s.engine.CurrentSpeaker(r)
	if speaker == nil {
		return
	}
	draft := s.takeDraftLocked(r.Code, speaker.ID)
	d, nextTurn, err := s.engine.TimeoutDescription(r, speaker.ID, draft)
	if err != nil {
		logger.Log.Warnw("turn timeout failed", "room", r.Code, "player", speaker.ID, "error", err)
		return
	}
	logger.Log.Infow("description timed out", "room", r.Code, "player", speaker.Nickname, "draft", d.Text != "")

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtDescriptionTimeout, network.DescriptionTimeoutEvent{
		PlayerID: speaker.ID,
		Nickname: speaker.Nickname,
	})
	s.broadcaster.BroadcastToRoom(r.Code, network.EvtNewDescription, d)
	s.afterDescriptionLocked(r, nextTurn)
}

func (s *GameServer) afterDescriptionLocked(r *room.Room, nextTurn bool) {
	s.emitRoomUpdateLocked(r)
	if nextTurn {
		s.beginTurnLocked(r)
		return
	}
	s.beginDiscussionLocked(r)
}

// ---------- discussing & voting ----------

func (s *GameServer) beginDiscussionLocked(r *room.Room) {
	delete(s.drafts, r.Code)
	s.broadcaster.BroadcastToRoom(r.Code, network.EvtStartDiscussing, network.PhaseTimerEvent{
		TimeLimit: r.DiscussionTime,
		StartTime: r.TurnStartTime,
	})
	s.scheduleLocked(r, s.units(r.DiscussionTime), s.onDiscussionTimeout)
}

// onDiscussionTimeout opens the voting window, unless everyone already voted while
// this callback waited for the lock.
func (s *GameServer) onDiscussionTimeout(r *room.Room) {
	if len(r.Votes) > 0 && s.engine.AllVoted(r) {
		s.settleLocked(r)
		return
	}
	if err := s.engine.StartVoting(r); err != nil {
		logger.Log.Warnw("start voting failed", "room", r.Code, "error", err)
		return
	}
	s.emitRoomUpdateLocked(r)
	s.broadcaster.BroadcastToRoom(r.Code, network.EvtStartVoting, network.PhaseTimerEvent{
		TimeLimit: state.VotingWindow,
		StartTime: r.TurnStartTime,
	})
	s.scheduleLocked(r, s.units(state.VotingWindow), s.onVotingTimeout)
}

func (s *GameServer) onVotingTimeout(r *room.Room) {
	if filled := s.engine.FillAbstentions(r); len(filled) > 0 {
		logger.Log.Infow("missing votes counted as abstain", "room", r.Code, "players", filled)
	}
	s.settleLocked(r)
}

// scheduleSettleLocked fast-forwards voting once every alive player has voted.
// It replaces the pending discussion or voting timer.
func (s *GameServer) scheduleSettleLocked(r *room.Room) {
	s.scheduleLocked(r, s.cfg.Game.SettleDelay, s.settleLocked)
}

// settleLocked tallies the votes, shows the result, then either ends the game or
// starts the next round after the result delay.
func (s *GameServer) settleLocked(r *room.Room) {
	result, err := s.engine.ProcessVotes(r)
	if err != nil {
		logger.Log.Warnw("process votes failed", "room", r.Code, "error", err)
		return
	}
	if result.EliminatedPlayerID != nil {
		s.monitor.IncEliminations()
	}
	logger.Log.Infow("votes settled", "room", r.Code, "round", r.CurrentRound, "reason", result.Reason, "eliminated", result.EliminatedNickname)

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtVoteResult, result)
	s.emitRoomUpdateLocked(r)

	s.scheduleLocked(r, s.cfg.Game.ResultDelay, func(r *room.Room) {
		if gameResult := s.engine.CheckWinCondition(r); gameResult != nil {
			s.endGameLocked(r, gameResult)
			return
		}
		s.startNextRoundLocked(r)
	})
}

// ---------- round & game end ----------

func (s *GameServer) startNextRoundLocked(r *room.Room) {
	if err := s.engine.StartNextRound(r); err != nil {
		logger.Log.Warnw("start next round failed", "room", r.Code, "error", err)
		return
	}
	s.emitRoomUpdateLocked(r)
	s.beginTurnLocked(r)
}

func (s *GameServer) endGameLocked(r *room.Room, result *models.GameResult) {
	if err := s.engine.EndGame(r, result); err != nil {
		logger.Log.Warnw("end game failed", "room", r.Code, "error", err)
		return
	}
	s.afterGameEndedLocked(r, result)
}

// afterGameEndedLocked announces a room that just entered ENDED and seats waiting spectators.
func (s *GameServer) afterGameEndedLocked(r *room.Room, result *models.GameResult) {
	s.timers.Cancel(phaseKey(r.Code))
	delete(s.drafts, r.Code)
	s.monitor.IncGamesEnded(result.Winner)
	logger.Log.Infow("game over", "room", r.Code, "winner", result.Winner, "spy", result.SpyNickname, "rounds", result.Rounds)

	s.broadcaster.BroadcastToRoom(r.Code, network.EvtGameOver, result)
	s.promoteLocked(r)
	s.emitRoomUpdateLocked(r)
}

// ---------- drafts ----------

func (s *GameServer) setDraftLocked(code, playerID, text string) {
	drafts, ok := s.drafts[code]
	if !ok {
		drafts = make(map[string]string)
		s.drafts[code] = drafts
	}
	drafts[playerID] = text
}

func (s *GameServer) takeDraftLocked(code, playerID string) string {
	text := s.drafts[code][playerID]
	s.clearDraftLocked(code, playerID)
	return text
}

func (s *GameServer) clearDraftLocked(code, playerID string) {
	if drafts, ok := s.drafts[code]; ok {
		delete(drafts, playerID)
		if len(drafts) == 0 {
			delete(s.drafts, code)
		}
	}
}
