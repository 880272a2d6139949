package game

import (
	"math/rand"

	"github.com/grandline/duelserver/internal/gamelog"
)

// Attack is the in-flight attack between declaration and damage
// resolution. Powers are snapshotted at declaration and adjusted by
// blocker redirection and counter staging.
type Attack struct {
	Attacker UnitRef
	Target   UnitRef

	AttackerPower int
	TargetPower   int

	DoubleAttack  bool
	Banish        bool
	IgnoreBlocker bool
}

// PowerDelta records one temporary power modification applied while a
// counter card was staged, so unstage can reverse it exactly.
type PowerDelta struct {
	CardID int // 0 for a leader; see Leader flag
	Leader bool
	Player int
	Amount int
	Temp   bool // also recorded in the owner's TempPower map
}

// StagedCounter captures everything a single staged counter did: the
// card (nil for a manual power addition), the DON it cost, every power
// delta it applied, and any attack-state flags it set.
type StagedCounter struct {
	Card        *CardInstance
	DonSpent    int
	Deltas      []PowerDelta
	ManualPower int
	AttackFlags []string // attack-state flags this entry turned on

	reversed bool // set on unstage so expiry undos become no-ops
}

// PendingKind tags the single outstanding interaction.
type PendingKind int

const (
	PendingSelectTarget PendingKind = iota
	PendingKOTarget
	PendingAttachDon
	PendingDiscard
	PendingRecover
	PendingPlayFromHand
	PendingSearch
	PendingSearchPlay
)

func (k PendingKind) String() string {
	switch k {
	case PendingSelectTarget:
		return "select-target"
	case PendingKOTarget:
		return "ko-target"
	case PendingAttachDon:
		return "attach-don"
	case PendingDiscard:
		return "discard-from-hand"
	case PendingRecover:
		return "recover-from-trash"
	case PendingPlayFromHand:
		return "play-from-hand"
	case PendingSearch:
		return "search-and-select-to-hand"
	case PendingSearchPlay:
		return "search-and-play"
	default:
		return "unknown"
	}
}

// Candidate is one selectable option inside a pending effect, with
// enough metadata for the client to display it.
type Candidate struct {
	ID      int    `json:"id"`
	Leader  bool   `json:"leader,omitempty"`
	Player  int    `json:"player"`
	Number  string `json:"number"`
	Name    string `json:"name"`
	Cost    int    `json:"cost"`
	Power   int    `json:"power"`
	Counter int    `json:"counter,omitempty"`
	Zone    string `json:"zone,omitempty"`
}

// PendingEffect is the single currently-open interaction. Only the
// owning player may resolve or skip it.
type PendingEffect struct {
	Kind       PendingKind
	Owner      int
	Candidates []Candidate
	Max        int
	Optional   bool
	Message    string

	// Continuation runs after the player responds, with the selection
	// bound to SELECTED / ALL_SELECTED.
	Continuation []ScriptAction

	// Script context.
	Source      *CardInstance
	SourceOwner int
	Amount      int // e.g. DON count for attach-don

	// For search kinds: how many cards were taken off the top, and the
	// cards themselves, held outside the deck until resolution.
	SearchCount int
	held        []*CardInstance

	// Index into Match.StagedCounters when this interaction was opened
	// from inside counter staging, else -1.
	StagedIndex int
}

// TriggerPrompt is the orthogonal prompt opened when a revealed Life
// card carries a Trigger effect.
type TriggerPrompt struct {
	Owner int
	Card  *CardInstance
}

// ActiveEffect is a registered delayed-expiry effect; Undo applies its
// inverse at the boundary named by Scope.
type ActiveEffect struct {
	Scope ExpiryScope
	Undo  func(e *Engine)
}

// Match is the authoritative state of one game.
type Match struct {
	Players [2]*PlayerState

	Turn       int // 1-based; monotone
	Current    int // index of the current player
	Phase      Phase
	BattleStep BattleStep

	PendingAttack       *Attack
	StagedCounters      []*StagedCounter
	PendingCounterPower int
	pendingLifeHits     int // damage points left when a trigger prompt paused resolution

	Pending        *PendingEffect
	PendingTrigger *TriggerPrompt
	ActiveEffects  []*ActiveEffect

	Winner int // 0, 1, or -1 while the match runs
	Over   bool
	Result string

	Logger gamelog.Logger

	rng    *rand.Rand
	nextID int
}

// NextID generates a unique per-match card instance id.
func (m *Match) NextID() int {
	m.nextID++
	return m.nextID
}

// Opponent returns the other player's index.
func (m *Match) Opponent(player int) int {
	return 1 - player
}

// CurrentPlayer returns the state of the player whose turn it is.
func (m *Match) CurrentPlayer() *PlayerState {
	return m.Players[m.Current]
}

// PlayerIndex maps a user identity to a player index, or -1.
func (m *Match) PlayerIndex(identity string) int {
	for i, p := range m.Players {
		if p.Identity == identity {
			return i
		}
	}
	return -1
}

// registerActiveEffect queues an undo for the given expiry scope.
func (m *Match) registerActiveEffect(scope ExpiryScope, undo func(e *Engine)) {
	if scope == ExpiryNone || undo == nil {
		return
	}
	m.ActiveEffects = append(m.ActiveEffects, &ActiveEffect{Scope: scope, Undo: undo})
}
