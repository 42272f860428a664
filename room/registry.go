package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/utils"
)

// DefaultIdleTimeout 房间无活动超过该时间会被清理
const DefaultIdleTimeout = 2 * time.Hour

// Registry 管理所有房间. 锁只保护 rooms 映射本身, 房间内部状态由调用方串行修改.
type Registry struct {
	rooms             map[string]*Room
	mutex             sync.RWMutex
	now               func() time.Time
	rng               *rand.Rand
	idleTimeout       time.Duration
	maxSpectatorSeats int
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRand(rng *rand.Rand) RegistryOption {
	return func(r *Registry) { r.rng = rng }
}

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

func WithMaxSpectatorSeats(n int) RegistryOption {
	return func(r *Registry) {
		if n >= 0 {
			r.maxSpectatorSeats = n
		}
	}
}

// NewRegistry 创建房间注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:             make(map[string]*Room),
		now:               time.Now,
		idleTimeout:       DefaultIdleTimeout,
		maxSpectatorSeats: MaxPlayers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom seeds the host as the sole player under a fresh unique 6-digit code.
// Unsupported timing values fall back to the defaults; seats are clamped.
func (m *Registry) CreateRoom(hostID, hostNickname, hostConnID string, opts Options) *Room {
	opts.DescriptionTime = pick(DescriptionTimes, opts.DescriptionTime, DefaultDescriptionTime)
	opts.DiscussionTime = pick(DiscussionTimes, opts.DiscussionTime, DefaultDiscussionTime)
	if opts.SpectatorSeats < 0 {
		opts.SpectatorSeats = 0
	}
	if opts.SpectatorSeats > m.maxSpectatorSeats {
		opts.SpectatorSeats = m.maxSpectatorSeats
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	code := utils.GenerateRoomCode(m.rng)
	for {
		if _, exists := m.rooms[code]; !exists {
			break
		}
		code = utils.GenerateRoomCode(m.rng)
	}

	now := m.now()
	host := &Player{
		ID:       hostID,
		Nickname: hostNickname,
		IsAlive:  true,
		ConnID:   hostConnID,
		JoinedAt: now,
	}
	room := newRoom(code, host, opts, now)
	m.rooms[code] = room

	logger.Log.Infow("room created", "room", code, "host", hostNickname,
		"descriptionTime", opts.DescriptionTime, "discussionTime", opts.DiscussionTime,
		"spectatorSeats", opts.SpectatorSeats)
	return room
}

// GetRoom 获取房间
func (m *Registry) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[code]
	return room, exists
}

// AddPlayer joins a room as a player. Only WAITING and ENDED rooms accept players.
func (m *Registry) AddPlayer(code, playerID, nickname, connID string) (*Room, error) {
	room, ok := m.GetRoom(code)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if room.Phase.Active() {
		return nil, models.ErrGameStarted
	}
	if room.MemberKind(playerID) != MemberNone {
		return nil, models.ErrAlreadyInRoom
	}
	if len(room.Players) >= MaxPlayers {
		return nil, models.ErrRoomFull
	}
	if room.NicknameTaken(nickname) {
		return nil, models.ErrNicknameTaken
	}

	now := m.now()
	room.Players[playerID] = &Player{
		ID:       playerID,
		Nickname: nickname,
		IsAlive:  true,
		ConnID:   connID,
		JoinedAt: now,
	}
	room.Touch(now)

	logger.Log.Infow("player joined", "room", code, "player", nickname)
	return room, nil
}

// AddSpectator queues a spectator in a room whose game has started.
func (m *Registry) AddSpectator(code, id, nickname, connID string) (*Room, error) {
	room, ok := m.GetRoom(code)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if room.Phase == models.PhaseWaiting {
		return nil, models.ErrGameNotStarted
	}
	if room.MemberKind(id) != MemberNone {
		return nil, models.ErrAlreadyInRoom
	}
	if room.SpectatorSeats <= 0 {
		return nil, models.ErrSpectatorsOff
	}
	if len(room.Spectators) >= room.SpectatorSeats {
		return nil, models.ErrSpectatorsFull
	}
	if room.NicknameTaken(nickname) {
		return nil, models.ErrNicknameTaken
	}

	now := m.now()
	room.Spectators[id] = &Spectator{
		ID:       id,
		Nickname: nickname,
		ConnID:   connID,
		JoinedAt: now,
	}
	room.SpectatorQueue = append(room.SpectatorQueue, id)
	room.Touch(now)

	logger.Log.Infow("spectator joined", "room", code, "spectator", nickname)
	return room, nil
}

// RemoveResult describes what RemoveMember did.
type RemoveResult struct {
	Room         *Room // nil when the room was deleted or never existed
	Found        bool
	Nickname     string
	WasHost      bool
	WasSpectator bool
	WasAlive     bool
	RoomDeleted  bool
}

// RemoveMember removes a player or spectator. Votes cast by a removed player are
// dropped and votes against them become abstentions. An empty room is deleted.
func (m *Registry) RemoveMember(code, id string) RemoveResult {
	room, ok := m.GetRoom(code)
	if !ok {
		return RemoveResult{}
	}

	now := m.now()
	if s, ok := room.Spectators[id]; ok {
		delete(room.Spectators, id)
		room.SpectatorQueue = removeID(room.SpectatorQueue, id)
		room.Touch(now)
		logger.Log.Infow("spectator left", "room", code, "spectator", s.Nickname)
		return RemoveResult{Room: room, Found: true, Nickname: s.Nickname, WasSpectator: true}
	}

	player, ok := room.Players[id]
	if !ok {
		return RemoveResult{Room: room}
	}

	res := RemoveResult{
		Found:    true,
		Nickname: player.Nickname,
		WasHost:  player.IsHost,
		WasAlive: player.IsAlive,
	}

	delete(room.Players, id)
	room.TurnOrder = removeID(room.TurnOrder, id)
	delete(room.Votes, id)
	for voter, target := range room.Votes {
		if target == id {
			room.Votes[voter] = models.AbstainID
		}
	}
	room.Touch(now)

	if len(room.Players) == 0 {
		m.DeleteRoom(code)
		res.RoomDeleted = true
		logger.Log.Infow("room deleted (no players)", "room", code)
		return res
	}

	if res.WasHost {
		next := room.OrderedPlayers()[0]
		next.IsHost = true
		room.HostID = next.ID
		logger.Log.Infow("new host assigned", "room", code, "host", next.Nickname)
	}

	logger.Log.Infow("player left", "room", code, "player", player.Nickname)
	res.Room = room
	return res
}

// UpdateMemberConnection rebinds a member to a new live connection. Game state is untouched.
func (m *Registry) UpdateMemberConnection(code, id, connID string) (bool, MemberKind) {
	room, ok := m.GetRoom(code)
	if !ok {
		return false, MemberNone
	}
	if p, ok := room.Players[id]; ok {
		p.ConnID = connID
		room.Touch(m.now())
		return true, MemberPlayer
	}
	if s, ok := room.Spectators[id]; ok {
		s.ConnID = connID
		room.Touch(m.now())
		return true, MemberSpectator
	}
	return false, MemberNone
}

// FindMember returns the code of the room holding id, if any.
func (m *Registry) FindMember(id string) (string, MemberKind, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for code, room := range m.rooms {
		if kind := room.MemberKind(id); kind != MemberNone {
			return code, kind, true
		}
	}
	return "", MemberNone, false
}

// PromoteSpectators moves queued spectators into free player seats, FIFO.
func (m *Registry) PromoteSpectators(room *Room) []*Player {
	var promoted []*Player
	now := m.now()

	for len(room.Players) < MaxPlayers && len(room.SpectatorQueue) > 0 {
		id := room.SpectatorQueue[0]
		room.SpectatorQueue = room.SpectatorQueue[1:]

		s, ok := room.Spectators[id]
		if !ok {
			continue
		}
		delete(room.Spectators, id)

		p := &Player{
			ID:       s.ID,
			Nickname: s.Nickname,
			IsAlive:  true,
			ConnID:   s.ConnID,
			JoinedAt: now,
		}
		room.Players[id] = p
		if len(room.TurnOrder) > 0 {
			room.TurnOrder = append(room.TurnOrder, id)
		}
		promoted = append(promoted, p)
	}

	if len(promoted) > 0 {
		room.Touch(now)
		logger.Log.Infow("spectators promoted", "room", room.Code, "count", len(promoted))
	}
	return promoted
}

// DeleteRoom 从注册表中移除房间
func (m *Registry) DeleteRoom(code string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[code]; !exists {
		return false
	}
	delete(m.rooms, code)
	return true
}

// CleanupInactiveRooms evicts rooms idle longer than the idle timeout and returns their codes.
func (m *Registry) CleanupInactiveRooms() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	var evicted []string
	for code, room := range m.rooms {
		if now.Sub(room.LastActivityAt) > m.idleTimeout {
			delete(m.rooms, code)
			evicted = append(evicted, code)
			logger.Log.Infow("cleaned up inactive room", "room", code)
		}
	}
	return evicted
}

// Codes 返回所有房间号
func (m *Registry) Codes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (m *Registry) RoomCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// PlayerCount counts players across all rooms.
func (m *Registry) PlayerCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n := 0
	for _, room := range m.rooms {
		n += len(room.Players)
	}
	return n
}

// SpectatorCount counts spectators across all rooms.
func (m *Registry) SpectatorCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n := 0
	for _, room := range m.rooms {
		n += len(room.Spectators)
	}
	return n
}
