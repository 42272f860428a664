// models/models.go
package models

import (
	"time"
)

// Phase 房间所处的游戏阶段
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseDescribing Phase = "describing"
	PhaseDiscussing Phase = "discussing"
	PhaseVoting     Phase = "voting"
	PhaseResult     Phase = "result"
	PhaseEnded      Phase = "ended"
)

func (p Phase) String() string {
	return string(p)
}

// Active reports whether a game is running (anything but WAITING and ENDED).
func (p Phase) Active() bool {
	return p != PhaseWaiting && p != PhaseEnded
}

// Role 玩家身份
type Role string

const (
	RoleNone     Role = ""
	RoleCivilian Role = "civilian"
	RoleSpy      Role = "spy"
)

// AbstainID is the reserved vote target meaning "no accusation".
const AbstainID = "__abstain__"

const (
	WinnerSpy       = "spy"
	WinnerCivilians = "civilians"
)

// Vote outcome reasons reported in VoteResult.Reason.
const (
	OutcomeEliminated = "eliminated"
	OutcomeTie        = "tie"
	OutcomeAbstain    = "abstain"
	OutcomeNoVotes    = "no_votes"
)

// WordPair 词组, WordA 为平民词, WordB 为卧底词
type WordPair struct {
	ID        string    `json:"id"`
	WordA     string    `json:"wordA"`
	WordB     string    `json:"wordB"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// FindOptions filters WordPairStore.FindMany.
type FindOptions struct {
	EnabledOnly bool
	ExcludeIDs  []string
}

// WordPairInput carries fields for creating a word pair.
type WordPairInput struct {
	WordA string `json:"wordA"`
	WordB string `json:"wordB"`
}

// WordPairUpdate carries optional fields for updating a word pair.
type WordPairUpdate struct {
	WordA   *string `json:"wordA,omitempty"`
	WordB   *string `json:"wordB,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// Description 玩家在发言阶段提交的描述
type Description struct {
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	Round     int    `json:"round"`
	Timestamp int64  `json:"timestamp"`
	TimedOut  bool   `json:"timedOut,omitempty"`
}

// VoteResult 一轮投票的结算结果
type VoteResult struct {
	EliminatedPlayerID *string        `json:"eliminatedPlayerId"`
	EliminatedNickname string         `json:"eliminatedNickname,omitempty"`
	VoteCounts         map[string]int `json:"voteCounts"`
	IsSpyEliminated    bool           `json:"isSpyEliminated"`
	Reason             string         `json:"reason"`
}

// GameResult 游戏结束时的结果
type GameResult struct {
	Winner      string `json:"winner"`
	SpyID       string `json:"spyId"`
	SpyNickname string `json:"spyNickname"`
	WordA       string `json:"wordA,omitempty"`
	WordB       string `json:"wordB,omitempty"`
	Rounds      int    `json:"rounds"`
}

// VoteMessage is a free-form chat line sent while players argue.
type VoteMessage struct {
	ID        string `json:"id"`
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// UnixMilli converts t to epoch milliseconds.
func UnixMilli(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
