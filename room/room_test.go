package room

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/spyserver/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewRegistry(WithClock(clock.Now), WithRand(rand.New(rand.NewSource(42)))), clock
}

// newTestRoom creates a room hosted by "alice" with extra players joined in order.
func newTestRoom(t *testing.T, reg *Registry, extra ...string) *Room {
	t.Helper()
	room := reg.CreateRoom("alice", "Alice", "conn-alice", Options{DescriptionTime: 30, DiscussionTime: 60, SpectatorSeats: 2})
	for _, id := range extra {
		_, err := reg.AddPlayer(room.Code, id, strings.ToUpper(id[:1])+id[1:], "conn-"+id)
		require.NoError(t, err)
	}
	return room
}

func hostCount(room *Room) int {
	n := 0
	for _, p := range room.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestRegistry_CreateAndGetRoom(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg)

	assert.Len(t, room.Code, 6)
	assert.Equal(t, models.PhaseWaiting, room.Phase)
	assert.Equal(t, "alice", room.HostID)
	assert.Equal(t, 1, hostCount(room))
	assert.Equal(t, 30, room.DescriptionTime)
	assert.Equal(t, 60, room.DiscussionTime)

	got, ok := reg.GetRoom(room.Code)
	require.True(t, ok)
	assert.Same(t, room, got)
}

func TestRegistry_CreateRoom_NormalizesOptions(t *testing.T) {
	reg, _ := newTestRegistry()
	room := reg.CreateRoom("h", "Host", "c", Options{DescriptionTime: 17, DiscussionTime: 0, SpectatorSeats: 99})

	assert.Equal(t, DefaultDescriptionTime, room.DescriptionTime)
	assert.Equal(t, DefaultDiscussionTime, room.DiscussionTime)
	assert.Equal(t, MaxPlayers, room.SpectatorSeats)
}

func TestRegistry_CreateRoom_UniqueCodes(t *testing.T) {
	reg, _ := newTestRegistry()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		room := reg.CreateRoom("h", "Host", "c", Options{})
		assert.False(t, seen[room.Code], "duplicate code %s", room.Code)
		seen[room.Code] = true
	}
	assert.Equal(t, 100, reg.RoomCount())
}

func TestRegistry_AddPlayer(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob")

	assert.Len(t, room.Players, 2)
	bob, ok := room.Player("bob")
	require.True(t, ok)
	assert.True(t, bob.IsAlive)
	assert.False(t, bob.IsHost)
	assert.Equal(t, "conn-bob", bob.ConnID)
}

func TestRegistry_AddPlayer_Failures(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob")

	_, err := reg.AddPlayer("000000", "x", "X", "c")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	_, err = reg.AddPlayer(room.Code, "bob2", "Bob", "c")
	assert.ErrorIs(t, err, models.ErrNicknameTaken)

	// case-sensitive exact match
	_, err = reg.AddPlayer(room.Code, "bob3", "bob", "c")
	assert.NoError(t, err)

	room.Phase = models.PhaseDescribing
	_, err = reg.AddPlayer(room.Code, "late", "Late", "c")
	assert.ErrorIs(t, err, models.ErrGameStarted)
}

func TestRegistry_AddPlayer_Full(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "p2", "p3", "p4", "p5", "p6", "p7", "p8")
	require.Len(t, room.Players, MaxPlayers)

	_, err := reg.AddPlayer(room.Code, "p9", "P9", "c")
	assert.ErrorIs(t, err, models.ErrRoomFull)
	assert.Len(t, room.Players, MaxPlayers)
}

func TestRegistry_AddPlayer_AfterGameEnded(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")
	room.Phase = models.PhaseEnded

	_, err := reg.AddPlayer(room.Code, "dave", "Dave", "c")
	require.NoError(t, err)
	assert.Len(t, room.Players, 4)
}

func TestRegistry_AddSpectator(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")

	_, err := reg.AddSpectator(room.Code, "sam", "Sam", "c")
	assert.ErrorIs(t, err, models.ErrGameNotStarted)

	room.Phase = models.PhaseDescribing
	_, err = reg.AddSpectator(room.Code, "sam", "Sam", "c")
	require.NoError(t, err)
	_, err = reg.AddSpectator(room.Code, "tom", "Bob", "c")
	assert.ErrorIs(t, err, models.ErrNicknameTaken)
	_, err = reg.AddSpectator(room.Code, "tom", "Tom", "c")
	require.NoError(t, err)
	_, err = reg.AddSpectator(room.Code, "uma", "Uma", "c")
	assert.ErrorIs(t, err, models.ErrSpectatorsFull)

	assert.Equal(t, []string{"sam", "tom"}, room.SpectatorQueue)

	_, err = reg.AddPlayer(room.Code, "vic", "Sam", "c")
	assert.Error(t, err)
}

func TestRegistry_AddSpectator_Disabled(t *testing.T) {
	reg, _ := newTestRegistry()
	room := reg.CreateRoom("h", "Host", "c", Options{})
	room.Phase = models.PhaseVoting

	_, err := reg.AddSpectator(room.Code, "s", "S", "c")
	assert.ErrorIs(t, err, models.ErrSpectatorsOff)
}

func TestRegistry_RemoveMember_HostReassigned(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")

	res := reg.RemoveMember(room.Code, "alice")
	require.True(t, res.Found)
	assert.True(t, res.WasHost)
	require.NotNil(t, res.Room)
	assert.Len(t, room.Players, 2)
	assert.Equal(t, 1, hostCount(room))
	assert.Contains(t, []string{"bob", "carol"}, room.HostID)
	assert.True(t, room.Players[room.HostID].IsHost)

	_, ok := reg.GetRoom(room.Code)
	assert.True(t, ok)
}

func TestRegistry_RemoveMember_DeletesEmptyRoom(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg)

	res := reg.RemoveMember(room.Code, "alice")
	assert.True(t, res.RoomDeleted)
	assert.Nil(t, res.Room)
	_, ok := reg.GetRoom(room.Code)
	assert.False(t, ok)
}

func TestRegistry_RemoveMember_ScrubsVotes(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol", "dave")
	room.Phase = models.PhaseVoting
	room.TurnOrder = []string{"alice", "bob", "carol", "dave"}
	room.Votes = map[string]string{
		"alice": "carol",
		"bob":   "carol",
		"carol": "dave",
	}

	reg.RemoveMember(room.Code, "carol")

	assert.Equal(t, map[string]string{
		"alice": models.AbstainID,
		"bob":   models.AbstainID,
	}, room.Votes)
	assert.Equal(t, []string{"alice", "bob", "dave"}, room.TurnOrder)
}

func TestRegistry_RemoveMember_Spectator(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")
	room.Phase = models.PhaseDescribing
	_, err := reg.AddSpectator(room.Code, "sam", "Sam", "c")
	require.NoError(t, err)

	res := reg.RemoveMember(room.Code, "sam")
	assert.True(t, res.WasSpectator)
	assert.Empty(t, room.Spectators)
	assert.Empty(t, room.SpectatorQueue)
	assert.Len(t, room.Players, 3)
}

func TestRegistry_UpdateMemberConnection(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob")

	ok, kind := reg.UpdateMemberConnection(room.Code, "bob", "conn-new")
	assert.True(t, ok)
	assert.Equal(t, MemberPlayer, kind)
	assert.Equal(t, "conn-new", room.Players["bob"].ConnID)

	ok, kind = reg.UpdateMemberConnection(room.Code, "nobody", "x")
	assert.False(t, ok)
	assert.Equal(t, MemberNone, kind)

	code, kind, found := reg.FindMember("bob")
	assert.True(t, found)
	assert.Equal(t, room.Code, code)
	assert.Equal(t, MemberPlayer, kind)
}

func TestRegistry_PromoteSpectators(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "p2", "p3", "p4", "p5", "p6", "p7")
	room.Phase = models.PhaseDescribing
	room.TurnOrder = []string{"alice", "p2", "p3", "p4", "p5", "p6", "p7"}
	room.SpectatorSeats = 3
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := reg.AddSpectator(room.Code, id, strings.ToUpper(id), "conn-"+id)
		require.NoError(t, err)
	}

	room.Phase = models.PhaseEnded
	promoted := reg.PromoteSpectators(room)

	require.Len(t, promoted, 1)
	assert.Equal(t, "s1", promoted[0].ID)
	assert.True(t, promoted[0].IsAlive)
	assert.False(t, promoted[0].IsHost)
	assert.Len(t, room.Players, MaxPlayers)
	assert.Equal(t, []string{"s2", "s3"}, room.SpectatorQueue)
	assert.Equal(t, "s1", room.TurnOrder[len(room.TurnOrder)-1])
}

func TestRegistry_CleanupInactiveRooms(t *testing.T) {
	reg, clock := newTestRegistry()
	stale := newTestRoom(t, reg)
	clock.Advance(90 * time.Minute)
	fresh := reg.CreateRoom("z", "Zed", "c", Options{})
	clock.Advance(31 * time.Minute)

	evicted := reg.CleanupInactiveRooms()

	assert.Equal(t, []string{stale.Code}, evicted)
	_, ok := reg.GetRoom(fresh.Code)
	assert.True(t, ok)
}

func TestRegistry_Counts(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob")
	room.Phase = models.PhaseDescribing
	_, err := reg.AddSpectator(room.Code, "s", "S", "c")
	require.NoError(t, err)
	reg.CreateRoom("z", "Zed", "c", Options{})

	assert.Equal(t, 2, reg.RoomCount())
	assert.Equal(t, 3, reg.PlayerCount())
	assert.Equal(t, 1, reg.SpectatorCount())
	assert.Len(t, reg.Codes(), 2)
}

func TestSerializeRoom_OrderAndPrivacy(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")
	room.Phase = models.PhaseDiscussing
	room.TurnOrder = []string{"carol", "alice"} // bob missing: falls back after ordered ids
	room.WordA, room.WordB = "orange", "tangerine"
	for id, p := range room.Players {
		p.Word = "orange"
		p.Role = models.RoleCivilian
		if id == "carol" {
			p.Word = "tangerine"
			p.Role = models.RoleSpy
		}
	}
	room.Votes["alice"] = "carol"

	s := SerializeRoom(room)

	ids := []string{s.Players[0].ID, s.Players[1].ID, s.Players[2].ID}
	assert.Equal(t, []string{"carol", "alice", "bob"}, ids)
	assert.Equal(t, map[string]string{"alice": "carol"}, s.Votes)
	assert.Nil(t, s.LastGameResult)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "orange")
	assert.NotContains(t, string(raw), "tangerine")
	assert.NotContains(t, string(raw), `"spy"`)
}

func TestSerializeRoom_PhaseGatedFields(t *testing.T) {
	reg, _ := newTestRegistry()
	room := newTestRoom(t, reg, "bob", "carol")
	room.Votes["alice"] = "bob"
	room.LastGameResult = &models.GameResult{Winner: models.WinnerSpy, SpyID: "bob", WordA: "a", WordB: "b"}
	room.Players["bob"].Role = models.RoleSpy

	room.Phase = models.PhaseResult
	s := SerializeRoom(room)
	assert.Nil(t, s.Votes)
	assert.Nil(t, s.LastGameResult)
	assert.Nil(t, s.TurnStartTime)

	room.Phase = models.PhaseEnded
	s = SerializeRoom(room)
	require.NotNil(t, s.LastGameResult)
	assert.Equal(t, models.WinnerSpy, s.LastGameResult.Winner)
	assert.Empty(t, s.LastGameResult.WordA)
	for _, p := range s.Players {
		if p.ID == "bob" {
			assert.Equal(t, models.RoleSpy, p.Role)
		}
	}
}
