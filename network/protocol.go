package network

import (
	"encoding/json"

	"github.com/wfunc/spyserver/models"
)

// 客户端 -> 服务端
const (
	CmdPing                = "ping"
	CmdCreateRoom          = "create_room"
	CmdJoinRoom            = "join_room"
	CmdRejoinRoom          = "rejoin_room"
	CmdLeaveRoom           = "leave_room"
	CmdStartGame           = "start_game"
	CmdSubmitDescription   = "submit_description"
	CmdSetDescriptionDraft = "set_description_draft"
	CmdSubmitVote          = "submit_vote"
	CmdSendVoteMessage     = "send_vote_message"
	CmdToggleReady         = "toggle_ready"
	CmdRestartGame         = "restart_game"
)

// 服务端 -> 客户端
const (
	EvtAck                = "ack"
	EvtPong               = "pong"
	EvtConnected          = "connected"
	EvtRoomUpdate         = "room_update"
	EvtPlayerJoined       = "player_joined"
	EvtPlayerLeft         = "player_left"
	EvtGameStarted        = "game_started"
	EvtStartTurn          = "start_turn"
	EvtNewDescription     = "new_description"
	EvtDescriptionTimeout = "description_timeout"
	EvtStartDiscussing    = "start_discussing"
	EvtStartVoting        = "start_voting"
	EvtVoteSubmitted      = "vote_submitted"
	EvtVoteResult         = "vote_result"
	EvtVoteMessage        = "vote_message"
	EvtGameOver           = "game_over"
	EvtError              = "error"
)

// Envelope is one websocket text frame. A command carrying a non-zero Ack expects
// exactly one "ack" frame back with the same Ack.
type Envelope struct {
	Event string          `json:"event"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event string, ack uint64, payload interface{}) (*Envelope, error) {
	env := &Envelope{Event: event, Ack: ack}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return env, nil
}

// Decode unmarshals the envelope data into v. Empty data leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ---------- requests ----------

type CreateRoomRequest struct {
	Nickname        string `json:"nickname"`
	DescriptionTime int    `json:"descriptionTime,omitempty"`
	DiscussionTime  int    `json:"discussionTime,omitempty"`
	SpectatorSeats  *int   `json:"spectatorSeats,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Nickname string `json:"nickname"`
}

// RoomRequest is used by commands that only name the room.
type RoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// TextRequest carries free text for descriptions, drafts and chat.
type TextRequest struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

type VoteRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
}

// ---------- responses ----------

// Response is the common ack payload. Specific responses embed it.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func OK() Response { return Response{Success: true} }

func Fail(message, code string) Response {
	return Response{Success: false, Error: message, Code: code}
}

type CreateRoomResponse struct {
	Response
	RoomCode string `json:"roomCode,omitempty"`
}

type JoinRoomResponse struct {
	Response
	Mode string `json:"mode,omitempty"`
}

type ToggleReadyResponse struct {
	Response
	AllReady bool `json:"allReady"`
}

// ---------- events ----------

const (
	ModePlayer    = "player"
	ModeSpectator = "spectator"
)

type ConnectedEvent struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type PlayerJoinedEvent struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Mode     string `json:"mode"`
}

type PlayerLeftEvent struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// GameStartedEvent is unicast to one player only.
type GameStartedEvent struct {
	Role models.Role `json:"role"`
	Word string      `json:"word"`
}

type StartTurnEvent struct {
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Round     int    `json:"round"`
	TimeLimit int    `json:"timeLimit"`
	StartTime int64  `json:"startTime"`
}

type DescriptionTimeoutEvent struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// PhaseTimerEvent is the payload of start_discussing and start_voting.
type PhaseTimerEvent struct {
	TimeLimit int   `json:"timeLimit"`
	StartTime int64 `json:"startTime"`
}

type VoteSubmittedEvent struct {
	VoterID string `json:"voterId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
