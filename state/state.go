package state

import (
	"errors"
	"sync"

	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/room"
)

// ErrTransitionNotAllowed is returned when a phase change is not in the transition table
// or its guard rejects it.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Guard decides whether a registered transition may happen for a room.
type Guard func(r *room.Room) bool

// Machine 阶段状态机, 只保存允许的阶段转换及其条件
type Machine struct {
	transitions map[models.Phase]map[models.Phase]Guard // from -> to -> guard
	mutex       sync.RWMutex
}

// NewMachine returns an empty machine. Use NewGameMachine for the game's phase graph.
func NewMachine() *Machine {
	return &Machine{
		transitions: make(map[models.Phase]map[models.Phase]Guard),
	}
}

// NewGameMachine registers WAITING → DESCRIBING → DISCUSSING → VOTING → RESULT →
// (DESCRIBING | ENDED), ENDED → WAITING, plus early exits to ENDED when players leave.
func NewGameMachine() *Machine {
	m := NewMachine()
	m.AddTransition(models.PhaseWaiting, models.PhaseDescribing, func(r *room.Room) bool {
		n := len(r.Players)
		return n >= room.MinPlayers && n <= room.MaxPlayers
	})
	m.AddTransition(models.PhaseDescribing, models.PhaseDiscussing, nil)
	m.AddTransition(models.PhaseDiscussing, models.PhaseVoting, nil)
	m.AddTransition(models.PhaseDiscussing, models.PhaseResult, nil)
	m.AddTransition(models.PhaseVoting, models.PhaseResult, nil)
	m.AddTransition(models.PhaseResult, models.PhaseDescribing, nil)
	m.AddTransition(models.PhaseResult, models.PhaseEnded, nil)
	m.AddTransition(models.PhaseEnded, models.PhaseWaiting, nil)
	for _, from := range []models.Phase{models.PhaseDescribing, models.PhaseDiscussing, models.PhaseVoting} {
		m.AddTransition(from, models.PhaseEnded, nil)
	}
	return m
}

func (m *Machine) AddTransition(from, to models.Phase, guard Guard) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.Phase]Guard)
	}
	m.transitions[from][to] = guard
}

// CanTransition reports whether r may move from its current phase to `to`.
func (m *Machine) CanTransition(r *room.Room, to models.Phase) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	targets, exists := m.transitions[r.Phase]
	if !exists {
		return false
	}
	guard, exists := targets[to]
	if !exists {
		return false
	}
	return guard == nil || guard(r)
}

// ChangePhase moves r to `to` or returns ErrTransitionNotAllowed leaving r untouched.
func (m *Machine) ChangePhase(r *room.Room, to models.Phase) error {
	if !m.CanTransition(r, to) {
		return ErrTransitionNotAllowed
	}
	r.Phase = to
	return nil
}
