package game

import (
	"fmt"

	"github.com/grandline/duelserver/internal/gamelog"
)

// The attack machine walks none → block → counter → damage → none.

// DeclareAttack starts an attack. Declaring from Main implicitly
// advances the phase to Battle.
func (e *Engine) DeclareAttack(player int, attacker, target string) error {
	m := e.State
	if err := e.requireActor(player); err != nil {
		return err
	}
	if m.Phase != PhaseMain && m.Phase != PhaseBattle {
		return ruleErr(ErrPhase, "cannot attack during %s", m.Phase)
	}
	if m.BattleStep != BattleStepNone {
		return ruleErr(ErrPhase, "an attack is already in progress")
	}
	if m.Turn <= 2 {
		return ruleErr(ErrRestriction, "first turn: no attacks")
	}

	atkSlot, atkRef, err := e.resolveUnit(player, attacker)
	if err != nil {
		return err
	}
	if atkSlot.Rested {
		return ruleErr(ErrTarget, "%s is rested", atkSlot.Card.Def.Name)
	}
	if !atkRef.IsLeader && !atkSlot.CanAttack {
		return ruleErr(ErrTarget, "%s cannot attack this turn", atkSlot.Card.Def.Name)
	}
	if atkSlot.Card.Def.Type == CardTypeStage {
		return ruleErr(ErrTarget, "stages cannot attack")
	}

	opp := m.Opponent(player)
	tgtSlot, tgtRef, err := e.resolveUnit(opp, target)
	if err != nil {
		return err
	}
	if !tgtRef.IsLeader && !tgtSlot.Rested {
		return ruleErr(ErrTarget, "%s is not rested", tgtSlot.Card.Def.Name)
	}

	atkSlot.Rested = true
	m.Phase = PhaseBattle

	attack := &Attack{
		Attacker:      atkRef,
		Target:        tgtRef,
		AttackerPower: e.EffectivePower(player, atkSlot),
		TargetPower:   e.EffectivePower(opp, tgtSlot),
		DoubleAttack:  e.HasKeyword(player, atkSlot, KeywordDoubleAttack),
		Banish:        e.HasKeyword(player, atkSlot, KeywordBanish),
	}
	m.PendingAttack = attack

	e.log(gamelog.NewAttackDeclareEvent(m.Turn, player,
		atkSlot.Card.Def.Name, tgtSlot.Card.Def.Name,
		attack.AttackerPower, attack.TargetPower))

	// ON_ATTACK may set ignore_blocker or cause side effects.
	e.Runtime.Dispatch(e, TriggerOnAttack, atkSlot.Card, player)
	if m.Over {
		return nil
	}

	if e.defenderHasBlocker(opp) && !attack.IgnoreBlocker {
		m.BattleStep = BattleStepBlock
	} else {
		m.BattleStep = BattleStepCounter
	}
	return nil
}

// defenderHasBlocker reports whether the defender has at least one
// active character with Blocker.
func (e *Engine) defenderHasBlocker(defender int) bool {
	p := e.State.Players[defender]
	if p.Restrictions[RestrictBlock] {
		return false
	}
	for _, s := range p.Characters {
		if !s.Rested && e.HasKeyword(defender, s, KeywordBlocker) {
			return true
		}
	}
	return false
}

// requireDefender validates a battle intent by the defending player
// during the given step.
func (e *Engine) requireDefender(player int, step BattleStep) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	if m.PendingAttack == nil || m.BattleStep != step {
		return ruleErr(ErrPhase, "not in %s", step)
	}
	if m.PendingAttack.Target.Player != player {
		return ruleErr(ErrActor, "only the defender may act now")
	}
	return nil
}

// DeclareBlocker redirects the attack to an active Blocker character.
func (e *Engine) DeclareBlocker(player, blockerID int) error {
	m := e.State
	if err := e.requireDefender(player, BattleStepBlock); err != nil {
		return err
	}
	p := m.Players[player]
	slot, _ := p.FindCharacter(blockerID)
	if slot == nil {
		return ruleErr(ErrTarget, "no character #%d on your field", blockerID)
	}
	if slot.Rested {
		return ruleErr(ErrTarget, "%s is rested", slot.Card.Def.Name)
	}
	if !e.HasKeyword(player, slot, KeywordBlocker) {
		return ruleErr(ErrTarget, "%s is not a Blocker", slot.Card.Def.Name)
	}

	slot.Rested = true
	m.PendingAttack.Target = UnitRef{Player: player, CardID: blockerID}
	m.PendingAttack.TargetPower = e.EffectivePower(player, slot) + m.PendingCounterPower
	m.BattleStep = BattleStepCounter

	e.log(gamelog.NewBlockDeclareEvent(m.Turn, player, slot.Card.Def.Name))
	e.Runtime.Dispatch(e, TriggerOnBlock, slot.Card, player)
	return nil
}

// SkipBlock declines to block and advances to the Counter step.
func (e *Engine) SkipBlock(player int) error {
	if err := e.requireDefender(player, BattleStepBlock); err != nil {
		return err
	}
	e.State.BattleStep = BattleStepCounter
	return nil
}

// StageCounter stages one counter card from hand. Atomic per card: the
// cost is paid, the printed counter value and any COUNTER script power
// mods are applied to the target power, and everything is recorded for
// perfect reversal.
func (e *Engine) StageCounter(player, cardID int) error {
	m := e.State
	if err := e.requireDefender(player, BattleStepCounter); err != nil {
		return err
	}
	p := m.Players[player]
	if p.Restrictions[RestrictCounter] {
		return ruleErr(ErrRestriction, "counters are sealed this turn")
	}

	ci := p.HandCard(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your hand", cardID)
	}
	hasScript := e.Runtime.HasCatalogEntries(ci.Def, TriggerCounter)
	if ci.Def.Counter == 0 && !hasScript {
		return ruleErr(ErrTarget, "%s has no counter", ci.Def.Name)
	}

	cost := 0
	if ci.Def.Type == CardTypeEvent {
		cost = ci.Def.Cost
	}
	if !p.PayCost(cost) {
		return ruleErr(ErrResource, "need %d active DON!!, have %d", cost, p.DonActive)
	}

	p.RemoveFromHand(cardID)
	entry := &StagedCounter{Card: ci, DonSpent: cost}
	m.StagedCounters = append(m.StagedCounters, entry)

	// Printed counter value raises the target power directly.
	if ci.Def.Counter > 0 {
		e.applyCounterPower(entry, m.PendingAttack.Target, ci.Def.Counter)
	}

	// Script effects run inside a tracking window so unstage can
	// consult the record.
	if hasScript {
		e.Runtime.staging = entry
		e.Runtime.ExecuteDirect(e, TriggerCounter, ci, player)
		if m.Pending != nil && m.Pending.StagedIndex == -1 {
			m.Pending.StagedIndex = len(m.StagedCounters) - 1
		}
		e.Runtime.staging = nil
	}

	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: "Battle", Player: player,
		Type: gamelog.EventCounterStage, Card: ci.Def.Name,
		Details: fmt.Sprintf("%s stages %s (target power %d)", playerTag(player), ci.Def.Name, m.PendingAttack.TargetPower),
	})
	return nil
}

// applyCounterPower records a power delta against the battle target.
func (e *Engine) applyCounterPower(entry *StagedCounter, target UnitRef, amount int) {
	m := e.State
	m.PendingCounterPower += amount
	m.PendingAttack.TargetPower += amount
	entry.Deltas = append(entry.Deltas, PowerDelta{
		CardID: target.CardID, Leader: target.IsLeader, Player: target.Player, Amount: amount,
	})
}

// recordStagedPowerMod tracks a MODIFY_POWER applied by a COUNTER
// script so the staged entry can reverse it. The mod itself lives in
// the owner's TempPower map; mods that land on the battle target or
// attacker also adjust the snapshotted powers.
func (e *Engine) recordStagedPowerMod(entry *StagedCounter, ref UnitRef, amount int) {
	m := e.State
	entry.Deltas = append(entry.Deltas, PowerDelta{
		CardID: ref.CardID, Leader: ref.IsLeader, Player: ref.Player, Amount: amount, Temp: true,
	})
	if m.PendingAttack == nil {
		return
	}
	if ref.SameUnit(m.PendingAttack.Target) {
		m.PendingAttack.TargetPower += amount
		m.PendingCounterPower += amount
	} else if ref.SameUnit(m.PendingAttack.Attacker) {
		m.PendingAttack.AttackerPower += amount
	}
}

// UnstageCounter reverses a staged counter completely: power deltas,
// attack flags, cost, and the card returns to hand.
func (e *Engine) UnstageCounter(player, index int) error {
	m := e.State
	// An interaction spawned by this very entry does not block its own
	// unstage; it is cancelled along with the entry. Anything else
	// pending still gates through requireDefender.
	linked := m.Pending != nil && m.Pending.Owner == player && m.Pending.StagedIndex == index
	if linked {
		if m.Over {
			return ruleErr(ErrFinished, "match is over")
		}
		if m.PendingAttack == nil || m.BattleStep != BattleStepCounter {
			return ruleErr(ErrPhase, "not in %s", BattleStepCounter)
		}
		if m.PendingAttack.Target.Player != player {
			return ruleErr(ErrActor, "only the defender may act now")
		}
	} else if err := e.requireDefender(player, BattleStepCounter); err != nil {
		return err
	}
	if index < 0 || index >= len(m.StagedCounters) {
		return ruleErr(ErrSelection, "no staged counter at %d", index)
	}

	if linked {
		m.Pending = nil
	}

	entry := m.StagedCounters[index]
	e.reverseStagedEntry(player, entry)
	m.StagedCounters = append(m.StagedCounters[:index], m.StagedCounters[index+1:]...)
	if m.Pending != nil && m.Pending.StagedIndex > index {
		m.Pending.StagedIndex--
	}

	name := "manual counter"
	if entry.Card != nil {
		name = entry.Card.Def.Name
	}
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: "Battle", Player: player,
		Type: gamelog.EventCounterUnstage, Card: name,
		Details: fmt.Sprintf("%s unstages %s", playerTag(player), name),
	})
	return nil
}

// reverseStagedEntry undoes one staged counter.
func (e *Engine) reverseStagedEntry(player int, entry *StagedCounter) {
	m := e.State
	p := m.Players[player]
	entry.reversed = true

	for i := len(entry.Deltas) - 1; i >= 0; i-- {
		d := entry.Deltas[i]
		target := m.Players[d.Player]
		if d.Temp {
			// Script mods live in TempPower; printed counter values only
			// touched the attack snapshot.
			key := d.CardID
			if d.Leader {
				key = target.Leader.Card.ID
			}
			target.TempPower[key] -= d.Amount
			if target.TempPower[key] == 0 {
				delete(target.TempPower, key)
			}
		}
		ref := UnitRef{Player: d.Player, IsLeader: d.Leader, CardID: d.CardID}
		if m.PendingAttack != nil {
			if ref.SameUnit(m.PendingAttack.Target) {
				m.PendingAttack.TargetPower -= d.Amount
				m.PendingCounterPower -= d.Amount
			} else if ref.SameUnit(m.PendingAttack.Attacker) {
				m.PendingAttack.AttackerPower -= d.Amount
			}
		}
	}
	if entry.ManualPower != 0 && m.PendingAttack != nil {
		m.PendingAttack.TargetPower -= entry.ManualPower
		m.PendingCounterPower -= entry.ManualPower
	}
	for _, flag := range entry.AttackFlags {
		e.setAttackFlag(flag, false)
	}
	if entry.DonSpent > 0 {
		p.RefundCost(entry.DonSpent)
	}
	if entry.Card != nil {
		p.Hand = append(p.Hand, entry.Card)
	}
}

// AddCounterPower stages a manual power addition with no card behind
// it; recorded so skip can reverse it too.
func (e *Engine) AddCounterPower(player, amount int) error {
	m := e.State
	if err := e.requireDefender(player, BattleStepCounter); err != nil {
		return err
	}
	if amount <= 0 {
		return ruleErr(ErrProtocol, "counter power must be positive")
	}
	entry := &StagedCounter{ManualPower: amount}
	m.StagedCounters = append(m.StagedCounters, entry)
	m.PendingCounterPower += amount
	m.PendingAttack.TargetPower += amount
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: "Battle", Player: player,
		Type: gamelog.EventCounterStage,
		Details: fmt.Sprintf("%s adds +%d counter power", playerTag(player), amount),
	})
	return nil
}

// ConfirmCounter commits all staged counters: cards go to the trash and
// the battle advances to damage.
func (e *Engine) ConfirmCounter(player int) error {
	m := e.State
	if err := e.requireDefender(player, BattleStepCounter); err != nil {
		return err
	}
	p := m.Players[player]
	for _, entry := range m.StagedCounters {
		if entry.Card != nil {
			p.ToTrash(entry.Card)
		}
	}
	m.StagedCounters = nil
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: "Battle", Player: player,
		Type:    gamelog.EventCounterConfirm,
		Details: fmt.Sprintf("%s confirms counters (target power %d)", playerTag(player), m.PendingAttack.TargetPower),
	})
	m.BattleStep = BattleStepDamage
	e.resolveDamage()
	return nil
}

// SkipCounter reverses everything still staged and advances to damage.
func (e *Engine) SkipCounter(player int) error {
	m := e.State
	if err := e.requireDefender(player, BattleStepCounter); err != nil {
		return err
	}
	for i := len(m.StagedCounters) - 1; i >= 0; i-- {
		e.reverseStagedEntry(player, m.StagedCounters[i])
	}
	m.StagedCounters = nil
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: "Battle", Player: player,
		Type:    gamelog.EventCounterSkip,
		Details: playerTag(player) + " skips counter",
	})
	m.BattleStep = BattleStepDamage
	e.resolveDamage()
	return nil
}

// resolveDamage compares powers and applies the outcome.
func (e *Engine) resolveDamage() {
	m := e.State
	attack := m.PendingAttack
	atkPlayer := attack.Attacker.Player

	e.log(gamelog.NewDamageCalcEvent(m.Turn, atkPlayer,
		fmt.Sprintf("damage calc: %d vs %d", attack.AttackerPower, attack.TargetPower)))

	if attack.AttackerPower < attack.TargetPower {
		// Attack blocked: no damage, no KO.
		e.finishBattle()
		return
	}

	if attack.Target.IsLeader {
		hits := 1
		if attack.DoubleAttack {
			hits = 2
		}
		m.pendingLifeHits = hits
		e.dealLifeDamage()
		return
	}

	// Character target: ON_KO hook, then the KO itself.
	tgtSlot := e.slotForRef(attack.Target)
	if tgtSlot != nil {
		e.koCharacter(attack.Target.Player, tgtSlot.Card.ID)
	}
	e.finishBattle()
}

// dealLifeDamage pops Life cards for the remaining damage points. A
// revealed Trigger card pauses resolution on a prompt; RespondTrigger
// resumes it.
func (e *Engine) dealLifeDamage() {
	m := e.State
	attack := m.PendingAttack
	defender := attack.Target.Player
	p := m.Players[defender]

	for m.pendingLifeHits > 0 {
		if len(p.Life) == 0 {
			m.pendingLifeHits = 0
			e.win(attack.Attacker.Player, "opponent has no Life left")
			e.finishBattle()
			return
		}
		m.pendingLifeHits--
		card := p.PopLife()
		e.log(gamelog.NewLifeRevealEvent(m.Turn, defender, card.Def.Name, len(p.Life)))

		if e.Runtime.HasCatalogEntries(card.Def, TriggerLife) {
			m.PendingTrigger = &TriggerPrompt{Owner: defender, Card: card}
			e.log(gamelog.GameEvent{
				Turn: m.Turn, Phase: "Battle", Player: defender,
				Type: gamelog.EventTriggerPrompt, Card: card.Def.Name,
				Details: playerTag(defender) + " may activate Trigger: " + card.Def.Name,
			})
			return
		}

		if attack.Banish {
			p.Removed = append(p.Removed, card)
			e.log(gamelog.GameEvent{
				Turn: m.Turn, Phase: "Battle", Player: defender,
				Type: gamelog.EventLifeBanish, Card: card.Def.Name,
				Details: card.Def.Name + " is banished",
			})
		} else {
			p.Hand = append(p.Hand, card)
		}

		// Popping the last Life card ends the match at once.
		if len(p.Life) == 0 {
			m.pendingLifeHits = 0
			e.win(attack.Attacker.Player, "opponent's last Life card is gone")
			e.finishBattle()
			return
		}
	}
	e.finishBattle()
}

// RespondTrigger answers a Life-reveal trigger prompt: activate runs
// the script and trashes the card; decline adds it to hand. Remaining
// damage points, if any, then resolve.
func (e *Engine) RespondTrigger(player int, activate bool) error {
	m := e.State
	if m.Over {
		return ruleErr(ErrFinished, "match is over")
	}
	if m.PendingTrigger == nil {
		return ruleErr(ErrPhase, "no trigger to respond to")
	}
	if m.PendingTrigger.Owner != player {
		return ruleErr(ErrActor, "not your trigger")
	}

	prompt := m.PendingTrigger
	m.PendingTrigger = nil
	p := m.Players[player]

	if activate {
		p.ToTrash(prompt.Card)
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Player: player,
			Type: gamelog.EventTriggerResolve, Card: prompt.Card.Def.Name,
			Details: playerTag(player) + " activates Trigger: " + prompt.Card.Def.Name,
		})
		e.Runtime.ExecuteDirect(e, TriggerLife, prompt.Card, player)
	} else {
		p.Hand = append(p.Hand, prompt.Card)
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Player: player,
			Type: gamelog.EventTriggerResolve, Card: prompt.Card.Def.Name,
			Details: playerTag(player) + " declines Trigger: " + prompt.Card.Def.Name,
		})
	}
	if m.Over {
		return nil
	}

	e.resumeLifeDamage()
	return nil
}

// resumeLifeDamage continues a paused damage step. A trigger script may
// have opened an interaction of its own; while one is outstanding the
// remaining damage points stay deferred, and the answering intent calls
// back here.
func (e *Engine) resumeLifeDamage() {
	m := e.State
	if m.Over || m.PendingAttack == nil || m.BattleStep != BattleStepDamage {
		return
	}
	if m.Pending != nil || m.PendingTrigger != nil {
		return
	}
	p := m.Players[m.PendingAttack.Target.Player]
	if len(p.Life) == 0 {
		e.win(m.PendingAttack.Attacker.Player, "opponent's last Life card is gone")
		e.finishBattle()
		return
	}
	if m.pendingLifeHits > 0 {
		e.dealLifeDamage()
		return
	}
	e.finishBattle()
}

// koCharacter applies a KO: ON_KO hook, attached DON returned rested,
// card to the owner's trash, scripts unregistered.
func (e *Engine) koCharacter(owner, cardID int) {
	m := e.State
	p := m.Players[owner]
	slot, _ := p.FindCharacter(cardID)
	if slot == nil {
		return
	}

	e.Runtime.Dispatch(e, TriggerOnKO, slot.Card, owner)

	// The hook may have removed the character, or saved it.
	slot, _ = p.FindCharacter(cardID)
	if slot == nil {
		return
	}
	if slot.FieldFlags[flagSurviveKO] {
		delete(slot.FieldFlags, flagSurviveKO)
		slot.Rested = true
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: owner,
			Type: gamelog.EventRevive, Card: slot.Card.Def.Name,
			Details: slot.Card.Def.Name + " survives the KO",
		})
		return
	}
	slot = p.RemoveCharacter(cardID)
	p.DonRested += slot.AttachedDon
	slot.AttachedDon = 0
	p.ToTrash(slot.Card)
	delete(p.TempPower, cardID)
	e.Runtime.Unregister(cardID)

	e.log(gamelog.NewKOEvent(m.Turn, m.Phase.String(), owner, slot.Card.Def.Name))
}

// finishBattle expires end-of-battle effects and clears the attack
// machine. Hooks may have left a pending interaction open; that is the
// outer protocol's business, not the battle's.
func (e *Engine) finishBattle() {
	m := e.State
	e.expireEffects(ExpiryEndOfBattle)
	m.PendingAttack = nil
	m.StagedCounters = nil
	m.PendingCounterPower = 0
	m.pendingLifeHits = 0
	m.BattleStep = BattleStepNone
}

// setAttackFlag flips a keyword flag on the pending attack.
func (e *Engine) setAttackFlag(flag string, on bool) {
	attack := e.State.PendingAttack
	if attack == nil {
		return
	}
	switch flag {
	case AttackStateIgnoreBlocker, "cannot_be_blocked":
		attack.IgnoreBlocker = on
	case AttackStateDoubleAttack:
		attack.DoubleAttack = on
	case AttackStateBanish:
		attack.Banish = on
	}
}
