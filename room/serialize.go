package room

import (
	"github.com/wfunc/spyserver/models"
)

// SerializedPlayer never carries a word. Role is only exposed once the game has ended.
type SerializedPlayer struct {
	ID       string      `json:"id"`
	Nickname string      `json:"nickname"`
	Role     models.Role `json:"role,omitempty"`
	IsAlive  bool        `json:"isAlive"`
	IsHost   bool        `json:"isHost"`
	IsReady  bool        `json:"isReady"`
	JoinedAt int64       `json:"joinedAt"`
}

type SerializedSpectator struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	JoinedAt int64  `json:"joinedAt"`
}

// SerializedRoom 是发送给客户端的房间快照
type SerializedRoom struct {
	Code             string                `json:"code"`
	HostID           string                `json:"hostId"`
	Players          []SerializedPlayer    `json:"players"`
	Spectators       []SerializedSpectator `json:"spectators"`
	SpectatorSeats   int                   `json:"spectatorSeats"`
	Phase            models.Phase          `json:"phase"`
	CurrentRound     int                   `json:"currentRound"`
	CurrentTurnIndex int                   `json:"currentTurnIndex"`
	TurnOrder        []string              `json:"turnOrder"`
	TurnStartTime    *int64                `json:"turnStartTime"`
	DescriptionTime  int                   `json:"descriptionTime"`
	DiscussionTime   int                   `json:"discussionTime"`
	Descriptions     []models.Description  `json:"descriptions"`
	Votes            map[string]string     `json:"votes,omitempty"`
	WordPairID       string                `json:"wordPairId,omitempty"`
	UsedWordPairIDs  []string              `json:"usedWordPairIds"`
	LastGameResult   *models.GameResult    `json:"lastGameResult,omitempty"`
	CreatedAt        int64                 `json:"createdAt"`
}

// SerializeRoom projects a room into ordered, word-free arrays for transmission.
func SerializeRoom(room *Room) SerializedRoom {
	out := SerializedRoom{
		Code:             room.Code,
		HostID:           room.HostID,
		Players:          make([]SerializedPlayer, 0, len(room.Players)),
		Spectators:       make([]SerializedSpectator, 0, len(room.Spectators)),
		SpectatorSeats:   room.SpectatorSeats,
		Phase:            room.Phase,
		CurrentRound:     room.CurrentRound,
		CurrentTurnIndex: room.CurrentTurnIndex,
		TurnOrder:        append([]string{}, room.TurnOrder...),
		DescriptionTime:  room.DescriptionTime,
		DiscussionTime:   room.DiscussionTime,
		Descriptions:     append([]models.Description{}, room.Descriptions...),
		WordPairID:       room.WordPairID,
		UsedWordPairIDs:  append([]string{}, room.UsedWordPairIDs...),
		CreatedAt:        models.UnixMilli(room.CreatedAt),
	}

	if room.TurnStartTime != 0 {
		ts := room.TurnStartTime
		out.TurnStartTime = &ts
	}

	revealRoles := room.Phase == models.PhaseEnded
	for _, p := range room.OrderedPlayers() {
		sp := SerializedPlayer{
			ID:       p.ID,
			Nickname: p.Nickname,
			IsAlive:  p.IsAlive,
			IsHost:   p.IsHost,
			IsReady:  p.IsReady,
			JoinedAt: models.UnixMilli(p.JoinedAt),
		}
		if revealRoles {
			sp.Role = p.Role
		}
		out.Players = append(out.Players, sp)
	}

	for _, s := range room.OrderedSpectators() {
		out.Spectators = append(out.Spectators, SerializedSpectator{
			ID:       s.ID,
			Nickname: s.Nickname,
			JoinedAt: models.UnixMilli(s.JoinedAt),
		})
	}

	if room.Phase == models.PhaseDiscussing || room.Phase == models.PhaseVoting {
		out.Votes = make(map[string]string, len(room.Votes))
		for voter, target := range room.Votes {
			out.Votes[voter] = target
		}
	}

	if room.Phase == models.PhaseEnded && room.LastGameResult != nil {
		// words are revealed through game_over only
		res := *room.LastGameResult
		res.WordA, res.WordB = "", ""
		out.LastGameResult = &res
	}

	return out
}
