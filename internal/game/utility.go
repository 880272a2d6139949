package game

import "github.com/grandline/duelserver/internal/gamelog"

// Manual adjustments: direct state edits for rulings the scripted
// engine cannot express. They validate zones and ownership but not
// game rules, and they log like everything else.

// DrawCards draws n cards for the player. Deck-out still loses.
func (e *Engine) DrawCards(player, n int) error {
	if err := e.requireLive(player); err != nil {
		return err
	}
	if n <= 0 {
		return ruleErr(ErrProtocol, "draw count must be positive")
	}
	e.drawOrLose(player, n)
	return nil
}

// KOTarget KOs one of the player's own or the opponent's characters.
func (e *Engine) KOTarget(player int, target UnitRef) error {
	if err := e.requireLive(player); err != nil {
		return err
	}
	if target.IsLeader {
		return ruleErr(ErrTarget, "leaders cannot be KO'd")
	}
	if e.slotForRef(target) == nil {
		return ruleErr(ErrTarget, "no character #%d on the field", target.CardID)
	}
	e.koCharacter(target.Player, target.CardID)
	return nil
}

// BounceToHand returns a character to its owner's hand.
func (e *Engine) BounceToHand(player int, target UnitRef) error {
	return e.bounce(player, target, false)
}

// BounceToBottom puts a character under its owner's deck.
func (e *Engine) BounceToBottom(player int, target UnitRef) error {
	return e.bounce(player, target, true)
}

func (e *Engine) bounce(player int, target UnitRef, toBottom bool) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	if target.IsLeader {
		return ruleErr(ErrTarget, "leaders cannot leave the field")
	}
	p := m.Players[target.Player]
	slot := p.RemoveCharacter(target.CardID)
	if slot == nil {
		return ruleErr(ErrTarget, "no character #%d on the field", target.CardID)
	}
	p.DonRested += slot.AttachedDon
	slot.AttachedDon = 0
	delete(p.TempPower, slot.Card.ID)
	e.Runtime.Unregister(slot.Card.ID)
	dest := "hand"
	if toBottom {
		p.ToDeckBottom(slot.Card)
		dest = "deck bottom"
	} else {
		p.Hand = append(p.Hand, slot.Card)
	}
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: target.Player,
		Type: gamelog.EventBounce, Card: slot.Card.Def.Name,
		Details: slot.Card.Def.Name + " returns to " + dest,
	})
	return nil
}

// PlayFromTrash puts one of the player's trashed characters onto their
// field without paying its cost.
func (e *Engine) PlayFromTrash(player, cardID int) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	p := m.Players[player]
	ci := p.TrashCard(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your trash", cardID)
	}
	if ci.Def.Type != CardTypeCharacter {
		return ruleErr(ErrTarget, "%s is not a character", ci.Def.Name)
	}
	if len(p.Characters) >= MaxCharacters {
		return ruleErr(ErrZone, "character area is full")
	}
	p.RemoveFromTrash(cardID)
	e.putIntoPlay(player, ci)
	return nil
}

// TrashFromHand discards one of the player's own hand cards.
func (e *Engine) TrashFromHand(player, cardID int) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	p := m.Players[player]
	ci := p.RemoveFromHand(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your hand", cardID)
	}
	p.ToTrash(ci)
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type: gamelog.EventDiscard, Card: ci.Def.Name,
		Details: playerTag(player) + " discards " + ci.Def.Name,
	})
	return nil
}

// RestTarget rests one of the player's own units.
func (e *Engine) RestTarget(player int, target string) error {
	return e.setRested(player, target, true)
}

// ActivateTarget sets one of the player's own units active.
func (e *Engine) ActivateTarget(player int, target string) error {
	return e.setRested(player, target, false)
}

func (e *Engine) setRested(player int, target string, rested bool) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	slot, _, err := e.resolveUnit(player, target)
	if err != nil {
		return err
	}
	slot.Rested = rested
	verb := " becomes active"
	if rested {
		verb = " rests"
	}
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type: gamelog.EventRest, Card: slot.Card.Def.Name,
		Details: slot.Card.Def.Name + verb,
	})
	return nil
}

// MoveDon moves n of the player's DON between the active and rested
// pools. Positive n rests, negative n activates.
func (e *Engine) MoveDon(player, n int) error {
	if err := e.requireLive(player); err != nil {
		return err
	}
	p := e.State.Players[player]
	switch {
	case n > 0:
		if p.DonActive < n {
			return ruleErr(ErrResource, "only %d active DON!!", p.DonActive)
		}
		p.DonActive -= n
		p.DonRested += n
	case n < 0:
		if p.DonRested < -n {
			return ruleErr(ErrResource, "only %d rested DON!!", p.DonRested)
		}
		p.DonRested += n
		p.DonActive -= n
	default:
		return ruleErr(ErrProtocol, "DON count must be nonzero")
	}
	return nil
}

// ModifyPower applies a manual until-end-of-turn power change to any
// unit on the field.
func (e *Engine) ModifyPower(player int, target UnitRef, amount int) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	slot := e.slotForRef(target)
	if slot == nil {
		return ruleErr(ErrTarget, "no such unit")
	}
	key := slot.Card.ID
	owner := target.Player
	p := m.Players[owner]
	p.TempPower[key] += amount
	m.registerActiveEffect(ExpiryEndOfTurn, func(e *Engine) {
		tp := e.State.Players[owner].TempPower
		tp[key] -= amount
		if tp[key] == 0 {
			delete(tp, key)
		}
	})
	if m.PendingAttack != nil {
		if target.SameUnit(m.PendingAttack.Target) {
			m.PendingAttack.TargetPower += amount
		} else if target.SameUnit(m.PendingAttack.Attacker) {
			m.PendingAttack.AttackerPower += amount
		}
	}
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type: gamelog.EventPowerMod, Card: slot.Card.Def.Name,
		Details: slot.Card.Def.Name + " power " + signed(amount),
	})
	return nil
}

// LifeToHand moves the player's own top Life card to their hand,
// honoring the no-life-to-hand restriction.
func (e *Engine) LifeToHand(player int) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	p := m.Players[player]
	if p.Restrictions[RestrictLifeToHand] {
		return ruleErr(ErrRestriction, "life-to-hand is sealed this turn")
	}
	card := p.PopLife()
	if card == nil {
		return ruleErr(ErrZone, "no Life cards left")
	}
	p.Hand = append(p.Hand, card)
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type: gamelog.EventLifeToHand, Card: card.Def.Name,
		Details: playerTag(player) + " adds a Life card to hand",
	})
	return nil
}

// ViewTopDeck returns the cards revealed by the player's own open
// search interaction, top first. Outside a search the deck top is
// hidden information, even from its owner.
func (e *Engine) ViewTopDeck(player, n int) ([]*CardInstance, error) {
	m := e.State
	if m.Over {
		return nil, ruleErr(ErrFinished, "match is over")
	}
	if n <= 0 {
		return nil, ruleErr(ErrProtocol, "count must be positive")
	}
	pe := m.Pending
	if pe == nil || (pe.Kind != PendingSearch && pe.Kind != PendingSearchPlay) {
		return nil, ruleErr(ErrPhase, "no search in progress")
	}
	if pe.Owner != player {
		return nil, ruleErr(ErrActor, "not your search")
	}
	n = min(n, len(pe.held))
	return pe.held[:n], nil
}

// TrashToLife puts one of the player's trashed cards on top of their
// Life face down.
func (e *Engine) TrashToLife(player, cardID int) error {
	m := e.State
	if err := e.requireLive(player); err != nil {
		return err
	}
	p := m.Players[player]
	ci := p.RemoveFromTrash(cardID)
	if ci == nil {
		return ruleErr(ErrZone, "card #%d is not in your trash", cardID)
	}
	p.Life = append(p.Life, ci)
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type: gamelog.EventTrashToLife, Card: ci.Def.Name,
		Details: playerTag(player) + " moves a card from trash to Life",
	})
	return nil
}
