package game

import (
	"github.com/grandline/duelserver/internal/gamelog"
)

// The pending-interaction protocol: at most one PendingEffect is open
// at a time. The owning player answers it with ResolvePending or
// SkipPending; everything else they try is rejected until then.

// execPendingAction opens the interaction a PENDING_* action asks for.
// Remaining sibling actions become the continuation automatically via
// execActions; explicit child actions are prepended.
func (r *Runtime) execPendingAction(e *Engine, ctx *scriptCtx, a *ScriptAction) {
	m := e.State
	if m.Pending != nil {
		// Single-slot protocol: a second interaction cannot open while
		// one is outstanding.
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "",
			"pending interaction already open, "+a.Kind+" skipped"))
		return
	}

	pe := &PendingEffect{
		Owner:        ctx.owner,
		Max:          max(a.Max, 1),
		Optional:     a.Optional,
		Message:      a.Message,
		Continuation: a.Actions,
		Source:       ctx.source,
		SourceOwner:  ctx.owner,
		Amount:       a.Amount,
		StagedIndex:  -1,
	}

	switch a.Kind {
	case ActPendingSelectTarget:
		pe.Kind = PendingSelectTarget
		pe.Candidates = e.fieldCandidates(ctx.owner, a.Filter, "any")
	case ActPendingKOTarget:
		pe.Kind = PendingKOTarget
		pe.Candidates = e.fieldCandidates(ctx.owner, a.Filter, "opponent")
	case ActPendingAttachDon:
		pe.Kind = PendingAttachDon
		pe.Candidates = e.fieldCandidates(ctx.owner, a.Filter, "self")
	case ActPendingDiscard:
		pe.Kind = PendingDiscard
		side := ctx.owner
		if a.Target == "opponent" {
			side = m.Opponent(ctx.owner)
			pe.Owner = side
		}
		pe.Candidates = e.handCandidates(side, a.Filter)
	case ActPendingRecover:
		pe.Kind = PendingRecover
		pe.Candidates = e.trashCandidates(ctx.owner, a.Filter)
	case ActPendingPlayFromHand:
		pe.Kind = PendingPlayFromHand
		pe.Candidates = e.handCandidates(ctx.owner, a.Filter)
	case ActPendingSearch, ActPendingSearchPlay:
		pe.Kind = PendingSearch
		if a.Kind == ActPendingSearchPlay {
			pe.Kind = PendingSearchPlay
		}
		p := m.Players[ctx.owner]
		count := min(max(a.Count, 1), len(p.Deck))
		pe.SearchCount = count
		for i := 0; i < count; i++ {
			top := p.Deck[len(p.Deck)-1]
			p.Deck = p.Deck[:len(p.Deck)-1]
			pe.held = append(pe.held, top)
			if matchesFilter(top, a.Filter) {
				pe.Candidates = append(pe.Candidates, zoneCandidate("deck", ctx.owner, top))
			}
		}
	}

	if len(pe.Candidates) == 0 {
		if pe.Kind == PendingSearch || pe.Kind == PendingSearchPlay {
			// Whiffed reveal: everything goes under the deck.
			p := m.Players[ctx.owner]
			for _, ci := range pe.held {
				p.ToDeckBottom(ci)
			}
			e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "", "search revealed no match"))
			return
		}
		// Nothing to pick. Optional prompts vanish silently; mandatory
		// ones log and run their continuation with an empty selection.
		if pe.Optional {
			return
		}
		e.log(gamelog.NewScriptEvent(m.Turn, ctx.owner, "", "no valid candidates for "+pe.Kind.String()))
		r.execActions(e, &scriptCtx{source: pe.Source, owner: pe.SourceOwner}, pe.Continuation)
		return
	}

	m.Pending = pe
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: pe.Owner,
		Type:    gamelog.EventPendingOpen,
		Details: playerTag(pe.Owner) + " must resolve " + pe.Kind.String(),
	})
}

// ResolvePending answers the open interaction with a selection of
// candidate ids. Validation failures leave the interaction open.
func (e *Engine) ResolvePending(player int, ids []int) error {
	m := e.State
	if m.Over {
		return ruleErr(ErrFinished, "match is over")
	}
	pe := m.Pending
	if pe == nil {
		return ruleErr(ErrPhase, "nothing to resolve")
	}
	if pe.Owner != player {
		return ruleErr(ErrActor, "not your interaction")
	}
	if len(ids) > pe.Max {
		return ruleErr(ErrSelection, "select at most %d", pe.Max)
	}
	if len(ids) == 0 && !pe.Optional {
		return ruleErr(ErrSelection, "selection required")
	}

	var selected []Candidate
	seen := make(map[int]bool)
	for _, id := range ids {
		if seen[id] {
			return ruleErr(ErrSelection, "duplicate selection %d", id)
		}
		seen[id] = true
		c, ok := findCandidate(pe.Candidates, id)
		if !ok {
			return ruleErr(ErrSelection, "%d is not a candidate", id)
		}
		selected = append(selected, c)
	}

	if pe.Kind == PendingPlayFromHand || pe.Kind == PendingSearchPlay {
		p := m.Players[pe.SourceOwner]
		if len(p.Characters)+len(selected) > MaxCharacters {
			return ruleErr(ErrZone, "character area cannot hold %d more", len(selected))
		}
	}

	// Clear-then-continue: the slot must be free before built-ins or the
	// continuation run, since either may open the next interaction.
	m.Pending = nil
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type:    gamelog.EventPendingResolve,
		Details: playerTag(player) + " resolves " + pe.Kind.String(),
	})

	e.applyPendingBuiltin(pe, selected)
	if m.Over {
		return nil
	}

	if len(pe.Continuation) > 0 {
		ctx := &scriptCtx{source: pe.Source, owner: pe.SourceOwner, selected: selected}
		if pe.StagedIndex >= 0 && pe.StagedIndex < len(m.StagedCounters) {
			// Continuations of a staged counter record into its entry.
			e.Runtime.staging = m.StagedCounters[pe.StagedIndex]
			e.Runtime.execActions(e, ctx, pe.Continuation)
			e.Runtime.staging = nil
		} else {
			e.Runtime.execActions(e, ctx, pe.Continuation)
		}
		if m.Pending != nil && m.Pending.StagedIndex == -1 && pe.StagedIndex >= 0 {
			m.Pending.StagedIndex = pe.StagedIndex
		}
	}
	e.resumeLifeDamage()
	return nil
}

// applyPendingBuiltin performs the kind's built-in resolution before
// any continuation runs.
func (e *Engine) applyPendingBuiltin(pe *PendingEffect, selected []Candidate) {
	m := e.State
	switch pe.Kind {
	case PendingKOTarget:
		for _, c := range selected {
			if !c.Leader {
				e.koCharacter(c.Player, c.ID)
				if m.Over {
					return
				}
			}
		}
	case PendingAttachDon:
		if len(selected) == 0 {
			return
		}
		ref := UnitRef{Player: selected[0].Player, IsLeader: selected[0].Leader, CardID: selected[0].ID}
		slot := e.slotForRef(ref)
		if slot == nil {
			return
		}
		p := m.Players[pe.SourceOwner]
		n := min(max(pe.Amount, 1), p.DonActive+p.DonRested)
		if n == 0 {
			return
		}
		p.SpendDon(n, false)
		slot.AttachedDon += n
		e.log(gamelog.GameEvent{
			Turn: m.Turn, Phase: m.Phase.String(), Player: pe.SourceOwner,
			Type: gamelog.EventAttachDon, Card: slot.Card.Def.Name,
			Details: slot.Card.Def.Name + " gains attached DON!!",
		})
	case PendingDiscard:
		p := m.Players[pe.Owner]
		for _, c := range selected {
			if ci := p.RemoveFromHand(c.ID); ci != nil {
				p.ToTrash(ci)
				e.log(gamelog.GameEvent{
					Turn: m.Turn, Phase: m.Phase.String(), Player: pe.Owner,
					Type: gamelog.EventDiscard, Card: ci.Def.Name,
					Details: playerTag(pe.Owner) + " discards " + ci.Def.Name,
				})
			}
		}
	case PendingRecover:
		p := m.Players[pe.SourceOwner]
		for _, c := range selected {
			if ci := p.RemoveFromTrash(c.ID); ci != nil {
				p.Hand = append(p.Hand, ci)
				e.log(gamelog.GameEvent{
					Turn: m.Turn, Phase: m.Phase.String(), Player: pe.SourceOwner,
					Type: gamelog.EventRecover, Card: ci.Def.Name,
					Details: playerTag(pe.SourceOwner) + " recovers " + ci.Def.Name,
				})
			}
		}
	case PendingPlayFromHand:
		p := m.Players[pe.SourceOwner]
		for _, c := range selected {
			if ci := p.RemoveFromHand(c.ID); ci != nil {
				e.putIntoPlay(pe.SourceOwner, ci)
			}
		}
	case PendingSearch, PendingSearchPlay:
		p := m.Players[pe.SourceOwner]
		taken := make(map[int]bool)
		for _, c := range selected {
			taken[c.ID] = true
		}
		for _, ci := range pe.held {
			if !taken[ci.ID] {
				continue
			}
			if pe.Kind == PendingSearch {
				p.Hand = append(p.Hand, ci)
			} else {
				e.putIntoPlay(pe.SourceOwner, ci)
			}
		}
		// The rest goes under the deck in reveal order.
		for _, ci := range pe.held {
			if !taken[ci.ID] {
				p.ToDeckBottom(ci)
			}
		}
	}
}

// putIntoPlay puts a character onto the field without paying its cost.
func (e *Engine) putIntoPlay(owner int, ci *CardInstance) {
	m := e.State
	p := m.Players[owner]
	if ci.Def.Type != CardTypeCharacter || len(p.Characters) >= MaxCharacters {
		p.Hand = append(p.Hand, ci)
		return
	}
	slot := newSlot(ci)
	p.Characters = append(p.Characters, slot)
	e.Runtime.Register(ci, owner)
	slot.CanAttack = e.HasKeyword(owner, slot, KeywordRush)
	e.log(gamelog.NewPlayEvent(m.Turn, m.Phase.String(), owner, gamelog.EventPlayCharacter, ci.Def.Name, 0))
	e.Runtime.Dispatch(e, TriggerOnPlay, ci, owner)
}

// SkipPending declines an optional interaction. Held search cards go
// under the deck.
func (e *Engine) SkipPending(player int) error {
	m := e.State
	if m.Over {
		return ruleErr(ErrFinished, "match is over")
	}
	pe := m.Pending
	if pe == nil {
		return ruleErr(ErrPhase, "nothing to skip")
	}
	if pe.Owner != player {
		return ruleErr(ErrActor, "not your interaction")
	}
	if !pe.Optional {
		return ruleErr(ErrSelection, "%s is not optional", pe.Kind)
	}

	m.Pending = nil
	p := m.Players[pe.SourceOwner]
	for _, ci := range pe.held {
		p.ToDeckBottom(ci)
	}
	e.log(gamelog.GameEvent{
		Turn: m.Turn, Phase: m.Phase.String(), Player: player,
		Type:    gamelog.EventPendingSkip,
		Details: playerTag(player) + " skips " + pe.Kind.String(),
	})
	e.resumeLifeDamage()
	return nil
}

// --- Candidate construction ---

// fieldCandidates lists field units matching the filter. defaultSide
// applies when the filter has no side of its own.
func (e *Engine) fieldCandidates(owner int, f *TargetFilter, defaultSide string) []Candidate {
	m := e.State
	side := defaultSide
	if f != nil && f.Side != "" {
		side = f.Side
	}
	var out []Candidate
	for player := 0; player < 2; player++ {
		if !sideMatches(side, owner, player) {
			continue
		}
		p := m.Players[player]
		if f != nil && f.IncludeLeader {
			out = append(out, e.slotCandidate(player, p.Leader, true))
		}
		for _, s := range p.Characters {
			if matchesFilter(s.Card, f) {
				out = append(out, e.slotCandidate(player, s, false))
			}
		}
	}
	return out
}

func (e *Engine) slotCandidate(player int, slot *Slot, leader bool) Candidate {
	return Candidate{
		ID:      slot.Card.ID,
		Leader:  leader,
		Player:  player,
		Number:  slot.Card.Def.Number,
		Name:    slot.Card.Def.Name,
		Cost:    slot.Card.Def.Cost,
		Power:   e.EffectivePower(player, slot),
		Counter: slot.Card.Def.Counter,
		Zone:    "field",
	}
}

func (e *Engine) handCandidates(player int, f *TargetFilter) []Candidate {
	var out []Candidate
	for _, ci := range e.State.Players[player].Hand {
		if matchesFilter(ci, f) {
			out = append(out, zoneCandidate("hand", player, ci))
		}
	}
	return out
}

func (e *Engine) trashCandidates(player int, f *TargetFilter) []Candidate {
	var out []Candidate
	for _, ci := range e.State.Players[player].Trash {
		if matchesFilter(ci, f) {
			out = append(out, zoneCandidate("trash", player, ci))
		}
	}
	return out
}

func zoneCandidate(zone string, player int, ci *CardInstance) Candidate {
	return Candidate{
		ID:      ci.ID,
		Player:  player,
		Number:  ci.Def.Number,
		Name:    ci.Def.Name,
		Cost:    ci.Def.Cost,
		Power:   ci.Def.Power,
		Counter: ci.Def.Counter,
		Zone:    zone,
	}
}

func findCandidate(list []Candidate, id int) (Candidate, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
