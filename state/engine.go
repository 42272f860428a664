// state/engine.go
package state

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/utils"
)

// SpyWinAliveCount 存活人数不超过该值且卧底仍存活时, 卧底获胜
const SpyWinAliveCount = 2

// VotingWindow is the length of the explicit voting phase, in time units.
const VotingWindow = 15

// Engine applies the game rules to a room. It holds no per-room state, callers
// serialize access to each room.
type Engine struct {
	words   WordPairSource
	machine *Machine
	now     func() time.Time
	rng     *rand.Rand
	rngMu   sync.Mutex // SelectWordPair runs outside the coordinator lock
}

type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithEngineRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

func NewEngine(words WordPairSource, opts ...EngineOption) *Engine {
	e := &Engine{
		words:   words,
		machine: NewGameMachine(),
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ---------- game start ----------

// CheckCanStart validates phase and player count without touching the room.
func (e *Engine) CheckCanStart(r *room.Room) error {
	if r.Phase != models.PhaseWaiting {
		return models.ErrGameStarted
	}
	if len(r.Players) < room.MinPlayers {
		return models.ErrNotEnoughPlayers
	}
	if len(r.Players) > room.MaxPlayers {
		return models.ErrTooManyPlayers
	}
	return nil
}

// StartGame selects a word pair and deals roles in one call. The coordinator splits
// this into SelectWordPair and BeginGame so the store is not queried under its lock.
func (e *Engine) StartGame(ctx context.Context, r *room.Room) error {
	if err := e.CheckCanStart(r); err != nil {
		return err
	}
	pair, reset, err := e.SelectWordPair(ctx, r.UsedWordPairIDs)
	if err != nil {
		return err
	}
	return e.BeginGame(r, pair, reset)
}

// SelectWordPair picks an enabled pair not in used. When every enabled pair has been
// used it picks from all enabled pairs and reports that the history must be reset.
func (e *Engine) SelectWordPair(ctx context.Context, used []string) (models.WordPair, bool, error) {
	pairs, err := e.words.FindMany(ctx, models.FindOptions{EnabledOnly: true, ExcludeIDs: used})
	if err != nil {
		return models.WordPair{}, false, fmt.Errorf("find unused word pairs: %w", err)
	}
	if len(pairs) > 0 {
		return e.pick(pairs), false, nil
	}

	pairs, err = e.words.FindMany(ctx, models.FindOptions{EnabledOnly: true})
	if err != nil {
		return models.WordPair{}, false, fmt.Errorf("find word pairs: %w", err)
	}
	if len(pairs) == 0 {
		return models.WordPair{}, false, models.ErrNoWordPairs
	}
	return e.pick(pairs), true, nil
}

func (e *Engine) pick(pairs []models.WordPair) models.WordPair {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return utils.RandomItem(pairs, e.rng)
}

// BeginGame deals roles and words from pair and enters the first description turn.
func (e *Engine) BeginGame(r *room.Room, pair models.WordPair, resetHistory bool) error {
	if err := e.CheckCanStart(r); err != nil {
		return err
	}
	if err := e.machine.ChangePhase(r, models.PhaseDescribing); err != nil {
		return err
	}

	if resetHistory {
		r.UsedWordPairIDs = nil
	}
	r.UsedWordPairIDs = append(r.UsedWordPairIDs, pair.ID)
	r.WordPairID = pair.ID
	r.WordA = pair.WordA
	r.WordB = pair.WordB

	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	e.rngMu.Lock()
	order := utils.Shuffle(ids, e.rng)
	e.rngMu.Unlock()
	spyID := order[0]

	for _, id := range order {
		p := r.Players[id]
		p.IsAlive = true
		p.IsReady = false
		if id == spyID {
			p.Role = models.RoleSpy
			p.Word = pair.WordB
		} else {
			p.Role = models.RoleCivilian
			p.Word = pair.WordA
		}
	}

	r.TurnOrder = order
	r.CurrentRound = 1
	r.CurrentTurnIndex = 0
	r.Descriptions = nil
	r.Votes = make(map[string]string)
	r.LastGameResult = nil
	now := e.now()
	r.MarkTurnStart(now)
	r.Touch(now)
	return nil
}

// ---------- describing ----------

// TurnSequence is the speaking order for the current round: alive players from
// TurnOrder, reversed on even rounds.
func (e *Engine) TurnSequence(r *room.Room) []string {
	seq := make([]string, 0, len(r.TurnOrder))
	for _, id := range r.TurnOrder {
		if p, ok := r.Players[id]; ok && p.IsAlive {
			seq = append(seq, id)
		}
	}
	if r.CurrentRound%2 == 0 {
		for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
			seq[i], seq[j] = seq[j], seq[i]
		}
	}
	return seq
}

// CurrentSpeaker returns the player whose turn it is, or nil outside DESCRIBING.
func (e *Engine) CurrentSpeaker(r *room.Room) *room.Player {
	if r.Phase != models.PhaseDescribing {
		return nil
	}
	seq := e.TurnSequence(r)
	if r.CurrentTurnIndex < 0 || r.CurrentTurnIndex >= len(seq) {
		return nil
	}
	return r.Players[seq[r.CurrentTurnIndex]]
}

// SubmitDescription records the current speaker's description and advances the turn.
// nextTurn is false when the round's descriptions are complete and DISCUSSING began.
func (e *Engine) SubmitDescription(r *room.Room, playerID, text string) (bool, error) {
	if err := e.checkSpeaker(r, playerID); err != nil {
		return false, err
	}
	text, err := utils.ValidateDescription(text)
	if err != nil {
		return false, err
	}
	e.appendDescription(r, r.Players[playerID], text, false)
	return e.advanceTurn(r), nil
}

// TimeoutDescription commits the speaker's draft, possibly empty, when the turn timer fires.
func (e *Engine) TimeoutDescription(r *room.Room, playerID, draft string) (models.Description, bool, error) {
	if err := e.checkSpeaker(r, playerID); err != nil {
		return models.Description{}, false, err
	}
	d := e.appendDescription(r, r.Players[playerID], utils.NormalizeDraft(draft), true)
	return d, e.advanceTurn(r), nil
}

func (e *Engine) checkSpeaker(r *room.Room, playerID string) error {
	if r.Phase != models.PhaseDescribing {
		return models.ErrNotDescribing
	}
	p, ok := r.Players[playerID]
	if !ok || !p.IsAlive {
		return models.ErrPlayerNotAlive
	}
	if cur := e.CurrentSpeaker(r); cur == nil || cur.ID != playerID {
		return models.ErrNotYourTurn
	}
	return nil
}

func (e *Engine) appendDescription(r *room.Room, p *room.Player, text string, timedOut bool) models.Description {
	d := models.Description{
		PlayerID:  p.ID,
		Nickname:  p.Nickname,
		Text:      text,
		Round:     r.CurrentRound,
		Timestamp: models.UnixMilli(e.now()),
		TimedOut:  timedOut,
	}
	r.Descriptions = append(r.Descriptions, d)
	r.Touch(e.now())
	return d
}

// advanceTurn moves to the next speaker, or to DISCUSSING after the last one.
func (e *Engine) advanceTurn(r *room.Room) bool {
	r.CurrentTurnIndex++
	if r.CurrentTurnIndex < len(e.TurnSequence(r)) {
		r.MarkTurnStart(e.now())
		return true
	}
	e.enterDiscussion(r)
	return false
}

func (e *Engine) enterDiscussion(r *room.Room) {
	if err := e.machine.ChangePhase(r, models.PhaseDiscussing); err != nil {
		return
	}
	r.Votes = make(map[string]string)
	r.MarkTurnStart(e.now())
}

// ---------- voting ----------

// StartVoting opens the explicit voting window after discussion.
func (e *Engine) StartVoting(r *room.Room) error {
	if r.Phase != models.PhaseDiscussing {
		return models.ErrNotVoting
	}
	if err := e.machine.ChangePhase(r, models.PhaseVoting); err != nil {
		return err
	}
	r.Votes = make(map[string]string)
	now := e.now()
	r.MarkTurnStart(now)
	r.Touch(now)
	return nil
}

// SubmitVote records or replaces voterID's vote. allVoted reports whether every
// alive player has now voted.
func (e *Engine) SubmitVote(r *room.Room, voterID, targetID string) (bool, error) {
	if r.Phase != models.PhaseDiscussing && r.Phase != models.PhaseVoting {
		return false, models.ErrNotVoting
	}
	voter, ok := r.Players[voterID]
	if !ok || !voter.IsAlive {
		return false, models.ErrVoterNotAlive
	}
	if targetID != models.AbstainID {
		target, ok := r.Players[targetID]
		if !ok || !target.IsAlive {
			return false, models.ErrTargetNotAlive
		}
		if targetID == voterID {
			return false, models.ErrSelfVote
		}
	}
	if r.Votes == nil {
		r.Votes = make(map[string]string)
	}
	r.Votes[voterID] = targetID
	r.Touch(e.now())
	return e.AllVoted(r), nil
}

// AllVoted reports whether every alive player has a recorded vote.
func (e *Engine) AllVoted(r *room.Room) bool {
	alive := 0
	for id, p := range r.Players {
		if !p.IsAlive {
			continue
		}
		alive++
		if _, ok := r.Votes[id]; !ok {
			return false
		}
	}
	return alive > 0
}

// FillAbstentions records abstain for every alive player who has not voted and
// returns their ids.
func (e *Engine) FillAbstentions(r *room.Room) []string {
	if r.Votes == nil {
		r.Votes = make(map[string]string)
	}
	var filled []string
	for id, p := range r.Players {
		if !p.IsAlive {
			continue
		}
		if _, ok := r.Votes[id]; !ok {
			r.Votes[id] = models.AbstainID
			filled = append(filled, id)
		}
	}
	sort.Strings(filled)
	return filled
}

// ProcessVotes tallies the votes, eliminates the strict leader if any and moves to RESULT.
func (e *Engine) ProcessVotes(r *room.Room) (*models.VoteResult, error) {
	if r.Phase != models.PhaseDiscussing && r.Phase != models.PhaseVoting {
		return nil, models.ErrNotVoting
	}
	tally := utils.CountVotes(r.Votes)
	result := &models.VoteResult{
		VoteCounts: tally.Counts,
		Reason:     tally.Outcome,
	}
	if tally.EliminatedID != "" {
		if p, ok := r.Players[tally.EliminatedID]; ok {
			p.IsAlive = false
			id := p.ID
			result.EliminatedPlayerID = &id
			result.EliminatedNickname = p.Nickname
			result.IsSpyEliminated = p.Role == models.RoleSpy
		} else {
			result.Reason = models.OutcomeNoVotes
		}
	}
	if err := e.machine.ChangePhase(r, models.PhaseResult); err != nil {
		return nil, err
	}
	now := e.now()
	r.MarkTurnStart(now)
	r.Touch(now)
	return result, nil
}

// CheckWinCondition returns the game result if the game is decided, else nil.
func (e *Engine) CheckWinCondition(r *room.Room) *models.GameResult {
	spy := r.Spy()
	if spy == nil {
		return nil
	}
	if !spy.IsAlive {
		return e.result(r, models.WinnerCivilians, spy.ID, spy.Nickname)
	}
	if r.AliveCount() <= SpyWinAliveCount {
		return e.result(r, models.WinnerSpy, spy.ID, spy.Nickname)
	}
	return nil
}

func (e *Engine) result(r *room.Room, winner, spyID, spyNickname string) *models.GameResult {
	return &models.GameResult{
		Winner:      winner,
		SpyID:       spyID,
		SpyNickname: spyNickname,
		WordA:       r.WordA,
		WordB:       r.WordB,
		Rounds:      r.CurrentRound,
	}
}

// StartNextRound leaves RESULT for another description round.
func (e *Engine) StartNextRound(r *room.Room) error {
	if err := e.machine.ChangePhase(r, models.PhaseDescribing); err != nil {
		return err
	}
	r.CurrentRound++
	r.CurrentTurnIndex = 0
	r.Votes = make(map[string]string)
	now := e.now()
	r.MarkTurnStart(now)
	r.Touch(now)
	return nil
}

// EndGame records result and moves to ENDED. Ready flags are cleared for the next game.
func (e *Engine) EndGame(r *room.Room, result *models.GameResult) error {
	if err := e.machine.ChangePhase(r, models.PhaseEnded); err != nil {
		return err
	}
	r.LastGameResult = result
	r.ClearTurnStart()
	r.Touch(e.now())
	for _, p := range r.Players {
		p.IsReady = false
	}
	return nil
}

// ---------- after the game ----------

// ToggleReady flips a player's ready flag in ENDED and reports whether all players are ready.
func (e *Engine) ToggleReady(r *room.Room, playerID string) (bool, error) {
	if r.Phase != models.PhaseEnded {
		return false, models.ErrGameNotEnded
	}
	p, ok := r.Players[playerID]
	if !ok {
		return false, models.ErrPlayerNotFound
	}
	p.IsReady = !p.IsReady
	r.Touch(e.now())
	return r.AllReady(), nil
}

// ResetRoom returns an ENDED room to WAITING. Players, host, settings and the
// used word-pair history are kept.
func (e *Engine) ResetRoom(r *room.Room) error {
	if r.Phase != models.PhaseEnded {
		return models.ErrGameNotEnded
	}
	if err := e.machine.ChangePhase(r, models.PhaseWaiting); err != nil {
		return err
	}
	for _, p := range r.Players {
		p.Role = models.RoleNone
		p.Word = ""
		p.IsAlive = true
		p.IsReady = false
	}
	r.CurrentRound = 0
	r.CurrentTurnIndex = 0
	r.TurnOrder = nil
	r.Descriptions = nil
	r.Votes = make(map[string]string)
	r.WordPairID = ""
	r.WordA = ""
	r.WordB = ""
	r.LastGameResult = nil
	r.ClearTurnStart()
	r.Touch(e.now())
	return nil
}
