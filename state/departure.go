// state/departure.go
package state

import (
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/room"
)

// Departure describes a player as they were just before leaving a running game.
// Take it with Engine.Departure before removing the player from the room.
type Departure struct {
	PlayerID   string
	Nickname   string
	Role       models.Role
	WasAlive   bool
	SeqIndex   int // position in the round's speaking order, -1 if not in it
	WasSpeaker bool
}

// Reconciliation reports what Reconcile changed.
type Reconciliation struct {
	GameOver          *models.GameResult
	SpeakerChanged    bool
	EnteredDiscussion bool
	AllVoted          bool
}

// Departure snapshots playerID for a later Reconcile. ok is false for non-players.
func (e *Engine) Departure(r *room.Room, playerID string) (Departure, bool) {
	p, ok := r.Players[playerID]
	if !ok {
		return Departure{}, false
	}
	d := Departure{
		PlayerID: p.ID,
		Nickname: p.Nickname,
		Role:     p.Role,
		WasAlive: p.IsAlive,
		SeqIndex: -1,
	}
	if r.Phase == models.PhaseDescribing {
		for i, id := range e.TurnSequence(r) {
			if id == playerID {
				d.SeqIndex = i
				break
			}
		}
		d.WasSpeaker = d.SeqIndex >= 0 && d.SeqIndex == r.CurrentTurnIndex
	}
	return d, true
}

// Reconcile restores the game invariants after d has been removed from r:
// a departed spy hands the win to the civilians, too few alive players hand it to
// the spy, and a departed speaker passes the turn on.
func (e *Engine) Reconcile(r *room.Room, d Departure) Reconciliation {
	var out Reconciliation
	if !r.Phase.Active() {
		return out
	}

	if d.Role == models.RoleSpy {
		out.GameOver = e.result(r, models.WinnerCivilians, d.PlayerID, d.Nickname)
	} else {
		out.GameOver = e.CheckWinCondition(r)
	}
	if out.GameOver != nil {
		if err := e.EndGame(r, out.GameOver); err != nil {
			out.GameOver = nil
		}
		return out
	}

	switch r.Phase {
	case models.PhaseDescribing:
		if d.SeqIndex >= 0 && d.SeqIndex < r.CurrentTurnIndex {
			r.CurrentTurnIndex--
		}
		if r.CurrentTurnIndex >= len(e.TurnSequence(r)) {
			e.enterDiscussion(r)
			out.EnteredDiscussion = true
			return out
		}
		if d.WasSpeaker {
			r.MarkTurnStart(e.now())
			out.SpeakerChanged = true
		}
	case models.PhaseDiscussing, models.PhaseVoting:
		out.AllVoted = len(r.Votes) > 0 && e.AllVoted(r)
	}
	return out
}
