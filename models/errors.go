package models

// ErrorKind classifies a GameError for the client and for logging.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindConflict
	KindNotFound
	KindExhausted
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// GameError is an expected rule violation. Its message is safe to show to players.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func NewError(kind ErrorKind, msg string) *GameError {
	return &GameError{Kind: kind, Message: msg}
}

func Validation(msg string) *GameError { return NewError(KindValidation, msg) }
func Conflict(msg string) *GameError   { return NewError(KindConflict, msg) }
func NotFound(msg string) *GameError   { return NewError(KindNotFound, msg) }

var (
	ErrRoomNotFound      = NotFound("Room not found")
	ErrPlayerNotFound    = NotFound("Player not found")
	ErrNotInRoom         = NotFound("Not in this room")
	ErrRoomFull          = Conflict("Room is full (max 8 players)")
	ErrGameStarted       = Conflict("Game already started")
	ErrGameNotStarted    = Conflict("Game has not started")
	ErrNicknameTaken     = Conflict("Nickname already taken")
	ErrAlreadyInRoom     = Conflict("Already in this room")
	ErrSpectatorsFull    = Conflict("No spectator seats available")
	ErrSpectatorsOff     = Conflict("Spectating is disabled in this room")
	ErrNotEnoughPlayers  = Conflict("Need at least 3 players to start")
	ErrTooManyPlayers    = Conflict("Maximum 8 players allowed")
	ErrNotDescribing     = Conflict("Not in description phase")
	ErrNotYourTurn       = Conflict("Not your turn")
	ErrPlayerNotAlive    = Conflict("Player not found or not alive")
	ErrNotVoting         = Conflict("Not in voting or discussing phase")
	ErrVoterNotAlive     = Conflict("Voter not found or not alive")
	ErrTargetNotAlive    = Conflict("Target not found or not alive")
	ErrSelfVote          = Conflict("Cannot vote for yourself")
	ErrGameNotEnded      = Conflict("Game not ended yet")
	ErrNotAllReady       = Conflict("Not all players are ready")
	ErrNotHost           = Conflict("Only the host can do this")
	ErrRateLimited       = Conflict("Too many requests")
	ErrEmptyDescription  = Validation("Description cannot be empty")
	ErrDescriptionLength = Validation("Description too long (max 200 characters)")
	ErrEmptyMessage      = Validation("Message cannot be empty")
	ErrMessageLength     = Validation("Message too long (max 200 characters)")
	ErrNoWordPairs       = NewError(KindExhausted, "No word pairs available")
	ErrInternal          = NewError(KindInternal, "Internal server error")
)
