// room/room.go
package room

import (
	"sort"
	"time"

	"github.com/wfunc/spyserver/models"
)

const (
	MaxPlayers = 8
	MinPlayers = 3
)

var (
	DescriptionTimes = []int{15, 30, 45, 60}
	DiscussionTimes  = []int{30, 60, 90, 120}
)

const (
	DefaultDescriptionTime = 30
	DefaultDiscussionTime  = 60
)

// Player 房间内的玩家, ConnID 为当前连接的会话ID, 重连时会被替换
type Player struct {
	ID       string
	Nickname string
	Role     models.Role
	Word     string
	IsAlive  bool
	IsHost   bool
	IsReady  bool
	ConnID   string
	JoinedAt time.Time
}

// Spectator 观战者, 按 SpectatorQueue 顺序等待补位
type Spectator struct {
	ID       string
	Nickname string
	ConnID   string
	JoinedAt time.Time
}

// MemberKind tells whether an id belongs to a player or a spectator.
type MemberKind int

const (
	MemberNone MemberKind = iota
	MemberPlayer
	MemberSpectator
)

func (k MemberKind) String() string {
	switch k {
	case MemberPlayer:
		return "player"
	case MemberSpectator:
		return "spectator"
	default:
		return "none"
	}
}

// Room 是一局游戏的聚合根. Players/Spectators 负责查找, TurnOrder/SpectatorQueue 负责顺序.
// Room 本身不加锁, 调用方需要保证对同一房间的修改是串行的.
type Room struct {
	Code   string
	HostID string

	Players        map[string]*Player
	Spectators     map[string]*Spectator
	SpectatorQueue []string
	SpectatorSeats int

	Phase            models.Phase
	CurrentRound     int
	CurrentTurnIndex int
	TurnOrder        []string
	TurnStartTime    int64 // epoch ms, 0 when not applicable
	TurnSeq          uint64

	DescriptionTime int
	DiscussionTime  int

	Descriptions    []models.Description
	Votes           map[string]string
	WordPairID      string
	WordA           string
	WordB           string
	UsedWordPairIDs []string
	LastGameResult  *models.GameResult

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Options are the host-chosen settings of a new room.
type Options struct {
	DescriptionTime int
	DiscussionTime  int
	SpectatorSeats  int
}

func newRoom(code string, host *Player, opts Options, now time.Time) *Room {
	host.IsHost = true
	return &Room{
		Code:            code,
		HostID:          host.ID,
		Players:         map[string]*Player{host.ID: host},
		Spectators:      make(map[string]*Spectator),
		SpectatorSeats:  opts.SpectatorSeats,
		Phase:           models.PhaseWaiting,
		DescriptionTime: opts.DescriptionTime,
		DiscussionTime:  opts.DiscussionTime,
		Votes:           make(map[string]string),
		CreatedAt:       now,
		LastActivityAt:  now,
	}
}

// Touch records activity for idle eviction.
func (r *Room) Touch(now time.Time) {
	r.LastActivityAt = now
}

// MarkTurnStart stamps a new phase segment. TurnSeq changes even when two
// segments start within the same millisecond.
func (r *Room) MarkTurnStart(now time.Time) {
	r.TurnStartTime = models.UnixMilli(now)
	r.TurnSeq++
}

// ClearTurnStart marks that no timed segment is running.
func (r *Room) ClearTurnStart() {
	r.TurnStartTime = 0
	r.TurnSeq++
}

func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.Players[id]
	return p, ok
}

// Host returns the current host, or nil for an empty room.
func (r *Room) Host() *Player {
	return r.Players[r.HostID]
}

// MemberKind reports whether id is a player, a spectator or unknown here.
func (r *Room) MemberKind(id string) MemberKind {
	if _, ok := r.Players[id]; ok {
		return MemberPlayer
	}
	if _, ok := r.Spectators[id]; ok {
		return MemberSpectator
	}
	return MemberNone
}

// MemberConnID returns the live connection bound to a player or spectator.
func (r *Room) MemberConnID(id string) (string, bool) {
	if p, ok := r.Players[id]; ok {
		return p.ConnID, true
	}
	if s, ok := r.Spectators[id]; ok {
		return s.ConnID, true
	}
	return "", false
}

// NicknameTaken is an exact, case-sensitive match against players and spectators.
func (r *Room) NicknameTaken(nickname string) bool {
	for _, p := range r.Players {
		if p.Nickname == nickname {
			return true
		}
	}
	for _, s := range r.Spectators {
		if s.Nickname == nickname {
			return true
		}
	}
	return false
}

// AliveCount counts players still in the game.
func (r *Room) AliveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

// AllReady reports whether every player (spectators excluded) is ready.
func (r *Room) AllReady() bool {
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return len(r.Players) > 0
}

// Spy returns the player holding the spy role, if roles are assigned.
func (r *Room) Spy() *Player {
	for _, p := range r.Players {
		if p.Role == models.RoleSpy {
			return p
		}
	}
	return nil
}

// OrderedPlayers walks TurnOrder first, then any players missing from it by join time.
func (r *Room) OrderedPlayers() []*Player {
	out := make([]*Player, 0, len(r.Players))
	seen := make(map[string]bool, len(r.Players))
	for _, id := range r.TurnOrder {
		if p, ok := r.Players[id]; ok && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	rest := make([]*Player, 0, len(r.Players)-len(out))
	for id, p := range r.Players {
		if !seen[id] {
			rest = append(rest, p)
		}
	}
	sortByJoin(rest)
	return append(out, rest...)
}

// OrderedSpectators walks SpectatorQueue first, then any spectators missing from it.
func (r *Room) OrderedSpectators() []*Spectator {
	out := make([]*Spectator, 0, len(r.Spectators))
	seen := make(map[string]bool, len(r.Spectators))
	for _, id := range r.SpectatorQueue {
		if s, ok := r.Spectators[id]; ok && !seen[id] {
			out = append(out, s)
			seen[id] = true
		}
	}
	for id, s := range r.Spectators {
		if !seen[id] {
			out = append(out, s)
		}
	}
	return out
}

func sortByJoin(players []*Player) {
	sort.Slice(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if a.JoinedAt.Equal(b.JoinedAt) {
			return a.ID < b.ID
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func pick(allowed []int, value, fallback int) int {
	for _, v := range allowed {
		if v == value {
			return v
		}
	}
	return fallback
}
