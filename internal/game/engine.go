package game

import (
	"math/rand"

	"github.com/grandline/duelserver/internal/gamelog"
)

// PlayerSetup is one player's inputs to match construction.
type PlayerSetup struct {
	Identity string
	Name     string
	Leader   *CardDef
	Deck     []*CardDef
}

// MatchConfig holds everything needed to build a match.
type MatchConfig struct {
	Players   [2]PlayerSetup
	Scripts   *ScriptCatalog
	Logger    gamelog.Logger
	Seed      int64 // 0 for nondeterministic
	NoShuffle bool  // skip the deck shuffle (deterministic tests)
}

// Engine owns a single Match and exposes every intent as an operation
// that either mutates state or fails with a typed RuleError leaving the
// state unchanged.
type Engine struct {
	State   *Match
	Runtime *Runtime
}

// NewEngine builds the initial match state: per-instance cards, shuffled
// decks, Life dealt from the top of the deck per the leader's life
// value, opening hands, and leader scripts registered.
func NewEngine(cfg MatchConfig) *Engine {
	m := &Match{Winner: -1, Logger: cfg.Logger}
	if m.Logger == nil {
		m.Logger = gamelog.NewRingLogger(0)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	m.rng = rand.New(rand.NewSource(seed))

	e := &Engine{State: m, Runtime: NewRuntime(cfg.Scripts)}

	for i := 0; i < 2; i++ {
		setup := cfg.Players[i]
		ps := newPlayerState(setup.Identity, setup.Name)

		leader := &CardInstance{ID: m.NextID(), Def: setup.Leader, Owner: i}
		ps.Leader = newSlot(leader)

		for _, def := range setup.Deck {
			ps.Deck = append(ps.Deck, &CardInstance{ID: m.NextID(), Def: def, Owner: i})
		}
		if !cfg.NoShuffle {
			m.rng.Shuffle(len(ps.Deck), func(a, b int) {
				ps.Deck[a], ps.Deck[b] = ps.Deck[b], ps.Deck[a]
			})
		}

		// Life comes off the top of the deck, face down.
		life := setup.Leader.Life
		for j := 0; j < life && len(ps.Deck) > 0; j++ {
			top := ps.Deck[len(ps.Deck)-1]
			ps.Deck = ps.Deck[:len(ps.Deck)-1]
			ps.Life = append(ps.Life, top)
		}

		for j := 0; j < InitialHandSize; j++ {
			ps.Draw()
		}

		m.Players[i] = ps
		e.Runtime.Register(leader, i)
	}

	return e
}

// Start begins turn 1 for player 0, running the server-driven phases
// and stopping in Main.
func (e *Engine) Start() {
	e.beginTurn(0)
}

// beginTurn advances to a new turn for the given player and runs the
// Refresh, Draw, and DON phases.
func (e *Engine) beginTurn(player int) {
	m := e.State
	m.Turn++
	m.Current = player
	m.BattleStep = BattleStepNone
	e.log(gamelog.NewTurnEvent(m.Turn, player))

	// Next-turn-start undos fire at the first turn boundary after
	// registration, whichever player's turn begins; a "during your
	// opponent's turn" effect registered mid-opponent-turn thus ends
	// when the turn comes back, never later.
	e.expireEffects(ExpiryNextTurnStart)
	e.refreshPhase()
	e.drawPhase()
	if m.Over {
		return
	}
	e.donPhase()

	m.Phase = PhaseMain
	e.log(gamelog.NewPhaseChangeEvent(m.Turn, m.Phase.String()))
}

// refreshPhase resets the current player's units and DON for the turn.
func (e *Engine) refreshPhase() {
	m := e.State
	m.Phase = PhaseRefresh
	e.log(gamelog.NewPhaseChangeEvent(m.Turn, m.Phase.String()))

	p := m.CurrentPlayer()
	for _, s := range p.FieldSlots() {
		s.Rested = false
		s.CanAttack = true
		// Attached DON returns active on refresh (but rested on KO).
		p.DonActive += s.AttachedDon
		s.AttachedDon = 0
		s.FieldFlags = make(map[string]bool)
	}
	p.DonActive += p.DonRested
	p.DonRested = 0

	p.TempPower = make(map[int]int)
	p.OncePerTurn = make(map[string]bool)
	p.Restrictions = make(map[Restriction]bool)
}

// drawPhase draws one card; skipped on the first player's first turn.
// Drawing from an empty deck loses the match for the drawer.
func (e *Engine) drawPhase() {
	m := e.State
	m.Phase = PhaseDraw
	e.log(gamelog.NewPhaseChangeEvent(m.Turn, m.Phase.String()))

	if m.Turn == 1 {
		return
	}
	e.drawOrLose(m.Current, 1)
}

// drawOrLose draws n cards for the player; deck-out ends the match.
func (e *Engine) drawOrLose(player, n int) {
	m := e.State
	p := m.Players[player]
	for i := 0; i < n; i++ {
		if p.Draw() == nil {
			e.win(m.Opponent(player), "deck out")
			return
		}
	}
	e.log(gamelog.NewDrawEvent(m.Turn, m.Phase.String(), player, n))
}

// donPhase deals DON from the pool: 1 on turn 1, 2 otherwise, clamped
// to the remaining supply.
func (e *Engine) donPhase() {
	m := e.State
	m.Phase = PhaseDon
	p := m.CurrentPlayer()

	gain := 2
	if m.Turn == 1 {
		gain = 1
	}
	gain = min(gain, p.DonDeck)
	p.DonDeck -= gain
	p.DonActive += gain
	e.log(gamelog.NewDonDealtEvent(m.Turn, m.Current, gain))
}

// EndTurn runs the End phase and hands the turn over.
func (e *Engine) EndTurn(player int) error {
	m := e.State
	if err := e.requireActor(player); err != nil {
		return err
	}
	if m.Phase != PhaseMain && m.Phase != PhaseBattle {
		return ruleErr(ErrPhase, "cannot end turn during %s", m.Phase)
	}
	if m.BattleStep != BattleStepNone {
		return ruleErr(ErrPhase, "cannot end turn during %s", m.BattleStep)
	}

	m.Phase = PhaseEnd
	e.log(gamelog.NewPhaseChangeEvent(m.Turn, m.Phase.String()))

	e.Runtime.DispatchTurnEnd(e, player)
	if m.Over {
		return nil
	}

	m.Players[player].Restrictions = make(map[Restriction]bool)
	e.expireEffects(ExpiryEndOfTurn)

	e.beginTurn(m.Opponent(player))
	return nil
}

// Forfeit ends the match in the opponent's favor; delivered by the
// gateway on explicit surrender or on a fired disconnect timer.
func (e *Engine) Forfeit(player int) error {
	if e.State.Over {
		return ruleErr(ErrFinished, "match is over")
	}
	e.State.Logger.Log(gamelog.GameEvent{
		Turn:    e.State.Turn,
		Player:  player,
		Type:    gamelog.EventForfeit,
		Details: "forfeit",
	})
	e.win(e.State.Opponent(player), "forfeit")
	return nil
}

// Abort ends the match without a winner (collaborator failure, panic).
func (e *Engine) Abort(reason string) {
	m := e.State
	m.Over = true
	m.Winner = -1
	m.Result = reason
}

// --- Validation helpers ---

// requireActor checks that the match is live, the pending-interaction
// protocol allows this player to act, and it is their turn.
func (e *Engine) requireActor(player int) error {
	if err := e.requireLive(player); err != nil {
		return err
	}
	if e.State.Current != player {
		return ruleErr(ErrActor, "not your turn")
	}
	return nil
}

// requireLive checks the match is running and no interaction is open.
// An open pending effect or trigger prompt blocks every other intent
// from both players until its owner answers it.
func (e *Engine) requireLive(player int) error {
	m := e.State
	if m.Over {
		return ruleErr(ErrFinished, "match is over")
	}
	if m.Pending != nil {
		if m.Pending.Owner == player {
			return ruleErr(ErrPhase, "resolve the pending %s first", m.Pending.Kind)
		}
		return ruleErr(ErrPhase, "waiting on the opponent's %s", m.Pending.Kind)
	}
	if m.PendingTrigger != nil {
		if m.PendingTrigger.Owner == player {
			return ruleErr(ErrPhase, "respond to the trigger first")
		}
		return ruleErr(ErrPhase, "waiting on the opponent's trigger")
	}
	return nil
}

// --- Unit resolution and power ---

// resolveUnit finds a field unit by token within one player's side.
func (e *Engine) resolveUnit(player int, token string) (*Slot, UnitRef, error) {
	isLeader, id, err := parseUnitToken(token)
	if err != nil {
		return nil, UnitRef{}, ruleErr(ErrTarget, "%v", err)
	}
	p := e.State.Players[player]
	if isLeader {
		return p.Leader, UnitRef{Player: player, IsLeader: true}, nil
	}
	slot, _ := p.FindCharacter(id)
	if slot == nil {
		return nil, UnitRef{}, ruleErr(ErrTarget, "no character #%d on your field", id)
	}
	return slot, UnitRef{Player: player, CardID: id}, nil
}

// slotForRef returns the slot a UnitRef points at, or nil when the unit
// has left the field.
func (e *Engine) slotForRef(ref UnitRef) *Slot {
	p := e.State.Players[ref.Player]
	if ref.IsLeader {
		return p.Leader
	}
	slot, _ := p.FindCharacter(ref.CardID)
	return slot
}

// EffectivePower computes a unit's current power: base + attached DON
// bonus + per-turn temporary modifiers + CONSTANT script contributions.
func (e *Engine) EffectivePower(owner int, slot *Slot) int {
	p := e.State.Players[owner]
	power := slot.Card.Def.Power
	power += slot.AttachedDon * DonPowerBonus
	power += p.TempPower[slot.Card.ID]
	power += e.Runtime.DynamicPower(e, owner, slot)
	if power < 0 {
		power = 0
	}
	return power
}

// HasKeyword reports a keyword from print, field flags, or CONSTANT
// scripts.
func (e *Engine) HasKeyword(owner int, slot *Slot, kw string) bool {
	if slot.Card.Def.HasKeyword(kw) || slot.HasFlag(kw) {
		return true
	}
	return e.Runtime.HasDynamicKeyword(e, owner, slot, kw)
}

// --- Expiry ---

// expireEffects applies and removes every registered undo for the scope,
// most recent first.
func (e *Engine) expireEffects(scope ExpiryScope) {
	m := e.State
	var keep []*ActiveEffect
	var fire []*ActiveEffect
	for _, ae := range m.ActiveEffects {
		if ae.Scope == scope {
			fire = append(fire, ae)
		} else {
			keep = append(keep, ae)
		}
	}
	m.ActiveEffects = keep
	for i := len(fire) - 1; i >= 0; i-- {
		fire[i].Undo(e)
	}
}

// --- Outcome ---

func (e *Engine) win(player int, reason string) {
	m := e.State
	if m.Over {
		return
	}
	m.Over = true
	m.Winner = player
	m.Result = reason
	e.log(gamelog.NewWinEvent(m.Turn, player, reason))
}

func (e *Engine) log(event gamelog.GameEvent) {
	e.State.Logger.Log(event)
}
