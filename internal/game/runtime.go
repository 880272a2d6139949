package game

import (
	"sort"
	"strconv"

	"github.com/grandline/duelserver/internal/gamelog"
)

// Runtime executes card scripts against the engine. Field cards are
// registered while in play; events, counters, and Life triggers execute
// straight from the catalog without registration.
type Runtime struct {
	catalog  *ScriptCatalog
	registry map[int]*registration

	// Non-nil while a counter card's script runs, so its power mods and
	// attack flags are recorded for reversal.
	staging *StagedCounter
}

type registration struct {
	card  *CardInstance
	owner int
}

func NewRuntime(catalog *ScriptCatalog) *Runtime {
	if catalog == nil {
		catalog = NewScriptCatalog()
	}
	return &Runtime{
		catalog:  catalog,
		registry: make(map[int]*registration),
	}
}

// scriptCtx is the execution context of one script entry.
type scriptCtx struct {
	source   *CardInstance
	owner    int
	selected []Candidate // bound after a pending interaction resolves
}

// scriptFor resolves a card's script: an explicit script_ref wins over
// the card number.
func (r *Runtime) scriptFor(def *CardDef) *CardScript {
	key := def.Number
	if def.ScriptRef != "" {
		key = def.ScriptRef
	}
	return r.catalog.Lookup(key)
}

// Register tracks a card entering the field so its hooks and CONSTANT
// entries participate in dispatch.
func (r *Runtime) Register(ci *CardInstance, owner int) {
	r.registry[ci.ID] = &registration{card: ci, owner: owner}
}

// Unregister drops a card leaving the field.
func (r *Runtime) Unregister(id int) {
	delete(r.registry, id)
}

// HasEntries reports whether the card has catalog entries for the
// trigger.
func (r *Runtime) HasEntries(ci *CardInstance, trig TriggerType) bool {
	return r.HasCatalogEntries(ci.Def, trig)
}

// HasCatalogEntries reports the same from a bare definition.
func (r *Runtime) HasCatalogEntries(def *CardDef, trig TriggerType) bool {
	return len(r.scriptFor(def).EntriesFor(trig)) > 0
}

// Dispatch runs the card's entries for one trigger. Entries whose
// conditions fail are skipped silently.
func (r *Runtime) Dispatch(e *Engine, trig TriggerType, ci *CardInstance, owner int) {
	r.ExecuteDirect(e, trig, ci, owner)
}

// ExecuteDirect runs catalog entries without requiring registration;
// used for events, counters, and Life triggers.
func (r *Runtime) ExecuteDirect(e *Engine, trig TriggerType, ci *CardInstance, owner int) {
	script := r.scriptFor(ci.Def)
	if script == nil {
		return
	}
	ctx := &scriptCtx{source: ci, owner: owner}
	for _, entry := range script.EntriesFor(trig) {
		if !r.conditionsPass(e, ctx, entry.Conditions) {
			continue
		}
		r.execActions(e, ctx, entry.Actions)
		if e.State.Over {
			return
		}
	}
}

// DispatchTurnEnd fires TURN_END entries on the ending player's
// registered cards, in card-id order for determinism.
func (r *Runtime) DispatchTurnEnd(e *Engine, player int) {
	var regs []*registration
	for _, reg := range r.registry {
		if reg.owner == player {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].card.ID < regs[j].card.ID })
	for _, reg := range regs {
		r.ExecuteDirect(e, TriggerTurnEnd, reg.card, reg.owner)
		if e.State.Over {
			return
		}
	}
}

// --- CONSTANT evaluation (pull-style) ---

// DynamicPower sums CONSTANT power contributions that apply to the
// given unit. Filters compare printed values, never dynamic ones, so
// evaluation cannot recurse.
func (r *Runtime) DynamicPower(e *Engine, owner int, slot *Slot) int {
	total := 0
	r.eachConstantAction(e, func(reg *registration, ctx *scriptCtx, a *ScriptAction) {
		if a.Kind != ActModifyPower {
			return
		}
		if r.constantApplies(e, reg, a, owner, slot) {
			total += a.Amount
		}
	})
	return total
}

// HasDynamicKeyword reports a keyword granted by a CONSTANT entry.
func (r *Runtime) HasDynamicKeyword(e *Engine, owner int, slot *Slot, kw string) bool {
	found := false
	r.eachConstantAction(e, func(reg *registration, ctx *scriptCtx, a *ScriptAction) {
		if a.Kind != ActGrantKeyword || a.Keyword != kw {
			return
		}
		if r.constantApplies(e, reg, a, owner, slot) {
			found = true
		}
	})
	return found
}

// eachConstantAction visits every action of every passing CONSTANT
// entry across the registry.
func (r *Runtime) eachConstantAction(e *Engine, visit func(*registration, *scriptCtx, *ScriptAction)) {
	for _, reg := range r.registry {
		script := r.scriptFor(reg.card.Def)
		if script == nil {
			continue
		}
		ctx := &scriptCtx{source: reg.card, owner: reg.owner}
		for _, entry := range script.EntriesFor(TriggerConstant) {
			if !r.conditionsPass(e, ctx, entry.Conditions) {
				continue
			}
			for i := range entry.Actions {
				visit(reg, ctx, &entry.Actions[i])
			}
		}
	}
}

// constantApplies decides whether a CONSTANT action reaches the unit.
func (r *Runtime) constantApplies(e *Engine, reg *registration, a *ScriptAction, owner int, slot *Slot) bool {
	switch a.Target {
	case "", "self":
		return reg.card.ID == slot.Card.ID
	case "leader":
		return owner == reg.owner && slot == e.State.Players[reg.owner].Leader
	case "opponent-leader":
		opp := e.State.Opponent(reg.owner)
		return owner == opp && slot == e.State.Players[opp].Leader
	}
	if a.Filter == nil {
		return false
	}
	if !sideMatches(a.Filter.Side, reg.owner, owner) {
		return false
	}
	if slot == e.State.Players[owner].Leader && !a.Filter.IncludeLeader {
		return false
	}
	return matchesFilter(slot.Card, a.Filter)
}

// --- Conditions ---

func (r *Runtime) conditionsPass(e *Engine, ctx *scriptCtx, conds []Condition) bool {
	for i := range conds {
		if !r.evalCondition(e, ctx, &conds[i]) {
			return false
		}
	}
	return true
}

func (r *Runtime) evalCondition(e *Engine, ctx *scriptCtx, c *Condition) bool {
	m := e.State
	p := m.Players[ctx.owner]
	switch c.Kind {
	case CondAttachedDon:
		slot := e.sourceSlot(ctx)
		return slot != nil && slot.AttachedDon >= c.Amount
	case CondRestedDon:
		return p.DonRested >= c.Amount
	case CondLifeCount:
		side := p
		if c.Target == "opponent" {
			side = m.Players[m.Opponent(ctx.owner)]
		}
		return compareOp(len(side.Life), c.Op, c.Amount)
	case CondRestriction:
		side := p
		if c.Target == "opponent" {
			side = m.Players[m.Opponent(ctx.owner)]
		}
		return side.Restrictions[Restriction(c.Value)]
	case CondMyTurn:
		return m.Current == ctx.owner
	case CondOpponentTurn:
		return m.Current != ctx.owner
	case CondLeaderNumber:
		return p.Leader.Card.Def.Number == c.Value
	case CondLeaderTrait:
		return p.Leader.Card.Def.Trait == c.Value
	case CondSourceActive:
		slot := e.sourceSlot(ctx)
		return slot != nil && !slot.Rested
	case CondOncePerTurn:
		return !p.OncePerTurn[c.Key]
	default:
		// Forward compatibility: a newer catalog must not brick the
		// server, so unknown conditions pass.
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "",
			"unknown condition "+c.Kind+", treated as met"))
		return true
	}
}

func compareOp(a int, op string, b int) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case "", ">=":
		return a >= b
	default:
		return a == b
	}
}

// sourceSlot finds the script source on its owner's field, or nil when
// it has left play.
func (e *Engine) sourceSlot(ctx *scriptCtx) *Slot {
	p := e.State.Players[ctx.owner]
	for _, s := range p.FieldSlots() {
		if s.Card.ID == ctx.source.ID {
			return s
		}
	}
	return nil
}

// --- Actions ---

func (r *Runtime) execActions(e *Engine, ctx *scriptCtx, actions []ScriptAction) {
	for i := range actions {
		r.execAction(e, ctx, &actions[i])
		if e.State.Over {
			return
		}
		// A pending interaction suspends the rest of the entry; the
		// continuation carries the remainder.
		if e.State.Pending != nil {
			return
		}
	}
}

func (r *Runtime) execAction(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	switch a.Kind {
	case ActModifyPower:
		r.execModifyPower(e, ctx, a)
	case ActDrawCards:
		e.drawOrLose(ctx.owner, max(a.Amount, 1))
	case ActAttachDon:
		r.execAttachDon(e, ctx, a)
	case ActLifeToHand:
		r.execLifeToHand(e, ctx, a)
	case ActKOCharacter:
		r.execKO(e, ctx, a)
	case ActBounceToHand:
		r.execBounce(e, ctx, a)
	case ActGrantKeyword:
		r.execGrantKeyword(e, ctx, a)
	case ActRestSelf:
		if slot := e.sourceSlot(ctx); slot != nil {
			slot.Rested = true
		}
	case ActReviveSelf:
		if slot := e.sourceSlot(ctx); slot != nil {
			slot.FieldFlags[flagSurviveKO] = true
		}
	case ActSetRestriction:
		r.execSetRestriction(e, ctx, a)
	case ActAddAttackState:
		e.setAttackFlag(a.State, true)
		if r.staging != nil {
			r.staging.AttackFlags = append(r.staging.AttackFlags, a.State)
		}
	case ActAddFieldState:
		for _, t := range r.actionSlots(e, ctx, a) {
			t.slot.FieldFlags[a.State] = true
		}
	case ActSetOncePerTurn:
		m.Players[ctx.owner].OncePerTurn[a.Key] = true
	case ActLog:
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "", a.Message))
	case ActConditional:
		if a.Condition == nil || r.evalCondition(e, ctx, a.Condition) {
			r.execActions(e, ctx, a.Actions)
		}
	case ActPendingSelectTarget, ActPendingKOTarget, ActPendingAttachDon,
		ActPendingSearch, ActPendingSearchPlay, ActPendingPlayFromHand,
		ActPendingDiscard, ActPendingRecover:
		r.execPendingAction(e, ctx, a)
	default:
		// Unknown actions are no-ops; see the condition note.
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "",
			"unknown action "+a.Kind+", skipped"))
	}
}

// flagSurviveKO marks a character whose ON_KO script revives it: the
// KO is cancelled and the character stays, rested.
const flagSurviveKO = "survive-ko"

// actionTarget is one resolved unit an action applies to.
type actionTarget struct {
	owner int
	slot  *Slot
	ref   UnitRef
}

// actionSlots resolves an action's targets: self, leaders, the pending
// selection, or a filter sweep over the field.
func (r *Runtime) actionSlots(e *Engine, ctx *scriptCtx, a *ScriptAction) []actionTarget {
	m := e.State
	opp := m.Opponent(ctx.owner)
	switch a.Target {
	case "", "self":
		if slot := e.sourceSlot(ctx); slot != nil {
			return []actionTarget{{ctx.owner, slot, e.refForSlot(ctx.owner, slot)}}
		}
		return nil
	case "leader":
		slot := m.Players[ctx.owner].Leader
		return []actionTarget{{ctx.owner, slot, UnitRef{Player: ctx.owner, IsLeader: true}}}
	case "opponent-leader":
		slot := m.Players[opp].Leader
		return []actionTarget{{opp, slot, UnitRef{Player: opp, IsLeader: true}}}
	case "selected":
		var out []actionTarget
		for _, c := range ctx.selected {
			ref := UnitRef{Player: c.Player, IsLeader: c.Leader, CardID: c.ID}
			if slot := e.slotForRef(ref); slot != nil {
				out = append(out, actionTarget{c.Player, slot, ref})
			}
		}
		return out
	}
	if a.Filter != nil {
		var out []actionTarget
		for side := 0; side < 2; side++ {
			if !sideMatches(a.Filter.Side, ctx.owner, side) {
				continue
			}
			p := m.Players[side]
			if a.Filter.IncludeLeader {
				out = append(out, actionTarget{side, p.Leader, UnitRef{Player: side, IsLeader: true}})
			}
			for _, s := range p.Characters {
				if matchesFilter(s.Card, a.Filter) {
					out = append(out, actionTarget{side, s, UnitRef{Player: side, CardID: s.Card.ID}})
				}
			}
		}
		return out
	}
	return nil
}

// refForSlot builds the UnitRef for a slot on the given side.
func (e *Engine) refForSlot(owner int, slot *Slot) UnitRef {
	if slot == e.State.Players[owner].Leader {
		return UnitRef{Player: owner, IsLeader: true}
	}
	return UnitRef{Player: owner, CardID: slot.Card.ID}
}

func (r *Runtime) execModifyPower(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	for _, t := range r.actionSlots(e, ctx, a) {
		key := t.slot.Card.ID
		p := m.Players[t.owner]
		p.TempPower[key] += a.Amount

		if r.staging != nil {
			e.recordStagedPowerMod(r.staging, t.ref, a.Amount)
			// The staged entry owns the reversal; the expiry undo only
			// fires when the counter was confirmed.
			entry := r.staging
			amount := a.Amount
			owner := t.owner
			m.registerActiveEffect(ExpiryEndOfBattle, func(e *Engine) {
				if entry.reversed {
					return
				}
				tp := e.State.Players[owner].TempPower
				tp[key] -= amount
				if tp[key] == 0 {
					delete(tp, key)
				}
			})
			continue
		}

		// Outside staging, mods against an in-flight attack adjust the
		// snapshot directly.
		if m.PendingAttack != nil {
			if t.ref.SameUnit(m.PendingAttack.Target) {
				m.PendingAttack.TargetPower += a.Amount
			} else if t.ref.SameUnit(m.PendingAttack.Attacker) {
				m.PendingAttack.AttackerPower += a.Amount
			}
		}

		scope := a.Scope
		if scope == ExpiryNone {
			scope = ExpiryEndOfTurn
		}
		amount := a.Amount
		owner := t.owner
		m.registerActiveEffect(scope, func(e *Engine) {
			tp := e.State.Players[owner].TempPower
			tp[key] -= amount
			if tp[key] == 0 {
				delete(tp, key)
			}
		})

		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: ctx.owner,
			Type: gamelog.EventPowerMod, Card: t.slot.Card.Def.Name,
			Details: t.slot.Card.Def.Name + " power " + signed(a.Amount),
		})
	}
}

func (r *Runtime) execGrantKeyword(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	for _, t := range r.actionSlots(e, ctx, a) {
		slot := t.slot
		if slot.FieldFlags[a.Keyword] {
			continue
		}
		slot.FieldFlags[a.Keyword] = true
		scope := a.Scope
		if scope == ExpiryNone {
			scope = ExpiryEndOfTurn
		}
		kw := a.Keyword
		m.registerActiveEffect(scope, func(e *Engine) {
			delete(slot.FieldFlags, kw)
		})
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: ctx.owner,
			Type: gamelog.EventKeywordGrant, Card: slot.Card.Def.Name,
			Details: slot.Card.Def.Name + " gains " + kw,
		})
	}
}

func (r *Runtime) execAttachDon(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	p := m.Players[ctx.owner]
	targets := r.actionSlots(e, ctx, a)
	if len(targets) == 0 {
		return
	}
	slot := targets[0].slot
	if slot.Card.Def.Type == CardTypeStage {
		return
	}
	n := min(max(a.Amount, 1), p.DonActive+p.DonRested)
	if n == 0 {
		return
	}
	p.SpendDon(n, false)
	slot.AttachedDon += n
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: ctx.owner,
		Type: gamelog.EventAttachDon, Card: slot.Card.Def.Name,
		Details: slot.Card.Def.Name + " gains attached DON!!",
	})
}

func (r *Runtime) execLifeToHand(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	side := ctx.owner
	if a.Target == "opponent" {
		side = m.Opponent(ctx.owner)
	}
	p := m.Players[side]
	if p.Restrictions[RestrictLifeToHand] {
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "", "life-to-hand sealed by restriction"))
		return
	}
	n := max(a.Amount, 1)
	for i := 0; i < n; i++ {
		card := p.PopLife()
		if card == nil {
			return
		}
		p.Hand = append(p.Hand, card)
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: side,
			Type: gamelog.EventLifeToHand, Card: card.Def.Name,
			Details: playerTag(side) + " adds a Life card to hand",
		})
	}
}

func (r *Runtime) execKO(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	for _, t := range r.actionSlots(e, ctx, a) {
		if t.ref.IsLeader {
			continue
		}
		e.koCharacter(t.owner, t.ref.CardID)
		if e.State.Over {
			return
		}
	}
}

func (r *Runtime) execBounce(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	for _, t := range r.actionSlots(e, ctx, a) {
		if t.ref.IsLeader {
			continue
		}
		p := m.Players[t.owner]
		slot := p.RemoveCharacter(t.ref.CardID)
		if slot == nil {
			continue
		}
		p.DonRested += slot.AttachedDon
		slot.AttachedDon = 0
		p.Hand = append(p.Hand, slot.Card)
		delete(p.TempPower, slot.Card.ID)
		r.Unregister(slot.Card.ID)
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: t.owner,
			Type: gamelog.EventBounce, Card: slot.Card.Def.Name,
			Details: slot.Card.Def.Name + " returns to hand",
		})
	}
}

func (r *Runtime) execSetRestriction(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	side := m.Opponent(ctx.owner)
	if a.Target == "self" {
		side = ctx.owner
	}
	m.Players[side].Restrictions[Restriction(a.Restriction)] = true
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: ctx.owner,
		Type:    gamelog.EventRestriction,
		Details: playerTag(side) + " restriction: " + a.Restriction,
	})
}

// --- Filters ---

// sideMatches maps a filter side ("self", "opponent", "any") relative
// to the script owner onto a player index.
func sideMatches(side string, owner, player int) bool {
	switch side {
	case "self":
		return player == owner
	case "", "opponent":
		return player != owner
	case "any":
		return true
	}
	return false
}

// matchesFilter checks a card against a filter on printed values.
func matchesFilter(ci *CardInstance, f *TargetFilter) bool {
	if f == nil {
		return true
	}
	def := ci.Def
	if f.ExcludeID != 0 && ci.ID == f.ExcludeID {
		return false
	}
	if f.ExcludeNumber != "" && def.Number == f.ExcludeNumber {
		return false
	}
	if len(f.Types) > 0 && !containsString(f.Types, def.Type.String()) {
		return false
	}
	if len(f.Traits) > 0 && !containsString(f.Traits, def.Trait) {
		return false
	}
	if len(f.Numbers) > 0 && !containsString(f.Numbers, def.Number) {
		return false
	}
	if f.MinCost != nil && def.Cost < *f.MinCost {
		return false
	}
	if f.MaxCost != nil && def.Cost > *f.MaxCost {
		return false
	}
	if f.MinPower != nil && def.Power < *f.MinPower {
		return false
	}
	if f.MaxPower != nil && def.Power > *f.MaxPower {
		return false
	}
	if f.Keyword != "" && !def.HasKeyword(f.Keyword) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func signed(n int) string {
	if n >= 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
