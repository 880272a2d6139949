package game

import "github.com/grandline/duelserver/internal/gamelog"

// requireMain validates a main-phase intent by the current player.
func (e *Engine) requireMain(player int) error {
	if err := e.requireActor(player); err != nil {
		return err
	}
	if e.State.Phase != PhaseMain {
		return ruleErr(ErrPhase, "not in Main phase (now %s)", e.State.Phase)
	}
	return nil
}

// PlayCharacter plays a character from hand: pay cost from active DON,
// append the slot, register scripts, fire ON_PLAY.
func (e *Engine) PlayCharacter(player, cardID int) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	m := e.State
	p := m.Players[player]

	ci := p.HandCard(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your hand", cardID)
	}
	if ci.Def.Type != CardTypeCharacter {
		return ruleErr(ErrTarget, "%s is not a character", ci.Def.Name)
	}
	if len(p.Characters) >= MaxCharacters {
		return ruleErr(ErrZone, "character area is full")
	}
	if !p.PayCost(ci.Def.Cost) {
		return ruleErr(ErrResource, "need %d active DON!!, have %d", ci.Def.Cost, p.DonActive)
	}

	p.RemoveFromHand(cardID)
	slot := newSlot(ci)
	p.Characters = append(p.Characters, slot)
	e.Runtime.Register(ci, player)
	slot.CanAttack = e.HasKeyword(player, slot, KeywordRush)

	e.log(gamelog.NewPlayEvent(m.Turn, m.Phase.String(), player, gamelog.EventPlayCharacter, ci.Def.Name, ci.Def.Cost))
	e.Runtime.Dispatch(e, TriggerOnPlay, ci, player)
	return nil
}

// PlayEvent plays an event from hand: pay cost, move it to the trash,
// and run its ON_PLAY_EVENT script. The script is executed just in
// time; if it opens an interaction the pending effect keeps the source
// alive until resolution.
func (e *Engine) PlayEvent(player, cardID int) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	m := e.State
	p := m.Players[player]

	ci := p.HandCard(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your hand", cardID)
	}
	if ci.Def.Type != CardTypeEvent {
		return ruleErr(ErrTarget, "%s is not an event", ci.Def.Name)
	}
	if !p.PayCost(ci.Def.Cost) {
		return ruleErr(ErrResource, "need %d active DON!!, have %d", ci.Def.Cost, p.DonActive)
	}

	p.RemoveFromHand(cardID)
	p.ToTrash(ci)

	e.log(gamelog.NewPlayEvent(m.Turn, m.Phase.String(), player, gamelog.EventPlayEvent, ci.Def.Name, ci.Def.Cost))
	e.Runtime.ExecuteDirect(e, TriggerOnPlayEvent, ci, player)
	return nil
}

// PlayStage plays a stage from hand, replacing any existing stage
// (the old one goes to the trash).
func (e *Engine) PlayStage(player, cardID int) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	m := e.State
	p := m.Players[player]

	ci := p.HandCard(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your hand", cardID)
	}
	if ci.Def.Type != CardTypeStage {
		return ruleErr(ErrTarget, "%s is not a stage", ci.Def.Name)
	}
	if !p.PayCost(ci.Def.Cost) {
		return ruleErr(ErrResource, "need %d active DON!!, have %d", ci.Def.Cost, p.DonActive)
	}

	p.RemoveFromHand(cardID)
	if p.Stage != nil {
		old := p.Stage.Card
		e.Runtime.Unregister(old.ID)
		p.ToTrash(old)
	}
	p.Stage = newSlot(ci)
	e.Runtime.Register(ci, player)

	e.log(gamelog.NewPlayEvent(m.Turn, m.Phase.String(), player, gamelog.EventPlayStage, ci.Def.Name, ci.Def.Cost))
	e.Runtime.Dispatch(e, TriggerOnPlay, ci, player)
	return nil
}

// AttachDon moves n DON from the player's pool onto a unit. Rested DON
// is consumed before active, as attached DON accounts as spent.
func (e *Engine) AttachDon(player int, target string, n int) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	if n <= 0 {
		return ruleErr(ErrProtocol, "DON count must be positive")
	}
	p := e.State.Players[player]
	slot, _, err := e.resolveUnit(player, target)
	if err != nil {
		return err
	}
	if slot.Card.Def.Type == CardTypeStage {
		return ruleErr(ErrTarget, "cannot attach DON!! to a stage")
	}
	if !p.SpendDon(n, false) {
		return ruleErr(ErrResource, "need %d DON!!, have %d", n, p.DonActive+p.DonRested)
	}
	slot.AttachedDon += n
	e.log(gamelog.GameEvent{
		Turn: e.State.Turn, Phase: e.State.Phase.String(), Player: player,
		Type: gamelog.EventAttachDon, Card: slot.Card.Def.Name,
		Details: playerTag(player) + " attaches DON!! to " + slot.Card.Def.Name,
	})
	return nil
}

// DetachDon returns n attached DON from a unit to the active pool.
func (e *Engine) DetachDon(player int, target string, n int) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	if n <= 0 {
		return ruleErr(ErrProtocol, "DON count must be positive")
	}
	p := e.State.Players[player]
	slot, _, err := e.resolveUnit(player, target)
	if err != nil {
		return err
	}
	if slot.AttachedDon < n {
		return ruleErr(ErrResource, "%s has %d attached DON!!", slot.Card.Def.Name, slot.AttachedDon)
	}
	slot.AttachedDon -= n
	p.DonActive += n
	e.log(gamelog.GameEvent{
		Turn: e.State.Turn, Phase: e.State.Phase.String(), Player: player,
		Type: gamelog.EventDetachDon, Card: slot.Card.Def.Name,
		Details: playerTag(player) + " detaches DON!! from " + slot.Card.Def.Name,
	})
	return nil
}

// ActivateMain runs a field card's ACTIVATE_MAIN script. Once-per-turn
// limits are the script's own responsibility via its conditions.
func (e *Engine) ActivateMain(player int, target string) error {
	if err := e.requireMain(player); err != nil {
		return err
	}
	p := e.State.Players[player]
	var slot *Slot
	if target == RefStage {
		slot = p.Stage
		if slot == nil {
			return ruleErr(ErrTarget, "no stage in play")
		}
	} else {
		var err error
		slot, _, err = e.resolveUnit(player, target)
		if err != nil {
			return err
		}
	}
	if !e.Runtime.HasEntries(slot.Card, TriggerActivateMain) {
		return ruleErr(ErrTarget, "%s has no activatable effect", slot.Card.Def.Name)
	}
	e.log(gamelog.GameEvent{
		Turn: e.State.Turn, Phase: e.State.Phase.String(), Player: player,
		Type: gamelog.EventActivateMain, Card: slot.Card.Def.Name,
		Details: playerTag(player) + " activates " + slot.Card.Def.Name,
	})
	e.Runtime.Dispatch(e, TriggerActivateMain, slot.Card, player)
	return nil
}

func playerTag(p int) string {
	if p == 0 {
		return "P1"
	}
	return "P2"
}
