package gateway

import (
	"strconv"

	"github.com/grandline/duelserver/internal/game"
	"github.com/grandline/duelserver/internal/gamelog"
)

// How much of the event log rides along with every state push.
const logTail = 30

// CardView is a card as shown to a client.
type CardView struct {
	ID       int      `json:"id"`
	Number   string   `json:"number"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Cost     int      `json:"cost"`
	Power    int      `json:"power"`
	Counter  int      `json:"counter,omitempty"`
	Text     string   `json:"text,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// SlotView is a unit on the field. Power is the current effective value,
// not the printed one.
type SlotView struct {
	Card        CardView `json:"card"`
	Power       int      `json:"power"`
	AttachedDon int      `json:"attached_don,omitempty"`
	Rested      bool     `json:"rested,omitempty"`
	CanAttack   bool     `json:"can_attack,omitempty"`
}

// SideView is one player's half of the board. The viewer's own hand is
// listed card by card; the opponent's hand, both decks, and both Life
// stacks are counts only. Trashes and removed cards are public.
type SideView struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`

	Leader     *SlotView  `json:"leader"`
	Characters []SlotView `json:"characters"`
	Stage      *SlotView  `json:"stage,omitempty"`

	Hand      []CardView `json:"hand,omitempty"`
	HandCount int        `json:"hand_count"`
	DeckCount int        `json:"deck_count"`
	LifeCount int        `json:"life_count"`
	Trash     []CardView `json:"trash"`
	Removed   []CardView `json:"removed,omitempty"`

	DonDeck   int `json:"don_deck"`
	DonActive int `json:"don_active"`
	DonRested int `json:"don_rested"`
}

// UnitView names one end of an in-flight attack.
type UnitView struct {
	Yours bool   `json:"yours"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// AttackView is the in-flight attack with its snapshotted powers.
type AttackView struct {
	Attacker      UnitView `json:"attacker"`
	Target        UnitView `json:"target"`
	AttackerPower int      `json:"attacker_power"`
	TargetPower   int      `json:"target_power"`
	DoubleAttack  bool     `json:"double_attack,omitempty"`
	Banish        bool     `json:"banish,omitempty"`
	IgnoreBlocker bool     `json:"ignore_blocker,omitempty"`
}

// StagedView is one staged counter, visible to both players.
type StagedView struct {
	Card        *CardView `json:"card,omitempty"`
	ManualPower int       `json:"manual_power,omitempty"`
	DonSpent    int       `json:"don_spent,omitempty"`
}

// PendingView is the open interaction. Candidates travel only to the
// owner; the opponent just sees that they are waiting.
type PendingView struct {
	Kind       string           `json:"kind"`
	Yours      bool             `json:"yours"`
	Message    string           `json:"message,omitempty"`
	Max        int              `json:"max"`
	Optional   bool             `json:"optional,omitempty"`
	Amount     int              `json:"amount,omitempty"`
	Candidates []game.Candidate `json:"candidates,omitempty"`
}

// TriggerView is the open Trigger prompt. The revealed card is public;
// Yours marks who must answer.
type TriggerView struct {
	Yours bool     `json:"yours"`
	Card  CardView `json:"card"`
}

// StateView is the full per-player projection of a match.
type StateView struct {
	RoomID string `json:"room_id,omitempty"`
	Status string `json:"status,omitempty"`

	Turn       int    `json:"turn"`
	Phase      string `json:"phase"`
	BattleStep string `json:"battle_step,omitempty"`
	YourTurn   bool   `json:"your_turn"`
	Seat       int    `json:"seat"`

	You      SideView `json:"you"`
	Opponent SideView `json:"opponent"`

	Attack         *AttackView  `json:"attack,omitempty"`
	StagedCounters []StagedView `json:"staged_counters,omitempty"`
	CounterPower   int          `json:"counter_power,omitempty"`

	Pending *PendingView `json:"pending,omitempty"`
	Trigger *TriggerView `json:"trigger,omitempty"`

	Over   bool   `json:"over,omitempty"`
	Winner string `json:"winner,omitempty"`
	Result string `json:"result,omitempty"`

	Log []string `json:"log,omitempty"`
}

func cardView(ci *game.CardInstance) CardView {
	d := ci.Def
	return CardView{
		ID:       ci.ID,
		Number:   d.Number,
		Name:     d.Name,
		Type:     d.Type.String(),
		Cost:     d.Cost,
		Power:    d.Power,
		Counter:  d.Counter,
		Text:     d.Text,
		Keywords: d.Keywords,
	}
}

func cardViews(cards []*game.CardInstance) []CardView {
	out := make([]CardView, len(cards))
	for i, ci := range cards {
		out[i] = cardView(ci)
	}
	return out
}

func slotView(e *game.Engine, owner int, s *game.Slot) *SlotView {
	if s == nil {
		return nil
	}
	return &SlotView{
		Card:        cardView(s.Card),
		Power:       e.EffectivePower(owner, s),
		AttachedDon: s.AttachedDon,
		Rested:      s.Rested,
		CanAttack:   s.CanAttack,
	}
}

func sideView(e *game.Engine, owner, viewer int) SideView {
	p := e.State.Players[owner]
	side := SideView{
		Name:      p.Name,
		Leader:    slotView(e, owner, p.Leader),
		Stage:     slotView(e, owner, p.Stage),
		HandCount: len(p.Hand),
		DeckCount: len(p.Deck),
		LifeCount: len(p.Life),
		Trash:     cardViews(p.Trash),
		Removed:   cardViews(p.Removed),
		DonDeck:   p.DonDeck,
		DonActive: p.DonActive,
		DonRested: p.DonRested,
	}
	for _, s := range p.Characters {
		side.Characters = append(side.Characters, *slotView(e, owner, s))
	}
	if owner == viewer {
		side.Hand = cardViews(p.Hand)
	}
	return side
}

func unitView(m *game.Match, ref game.UnitRef, viewer int) UnitView {
	token := RefToken(ref)
	name := ""
	p := m.Players[ref.Player]
	if ref.IsLeader {
		name = p.Leader.Card.Def.Name
	} else {
		for _, s := range p.Characters {
			if s.Card.ID == ref.CardID {
				name = s.Card.Def.Name
			}
		}
	}
	return UnitView{Yours: ref.Player == viewer, Token: token, Name: name}
}

// RefToken renders a unit reference as the wire token clients send back.
func RefToken(ref game.UnitRef) string {
	if ref.IsLeader {
		return game.RefLeader
	}
	return strconv.Itoa(ref.CardID)
}

// BuildStateView projects the match for one seat, redacting the hidden
// zones of the other. Callers hold the room lock.
func BuildStateView(e *game.Engine, seat int) *StateView {
	m := e.State
	opp := m.Opponent(seat)

	view := &StateView{
		Turn:       m.Turn,
		Phase:      m.Phase.String(),
		BattleStep: m.BattleStep.String(),
		YourTurn:   m.Current == seat,
		Seat:       seat,
		You:        sideView(e, seat, seat),
		Opponent:   sideView(e, opp, seat),
	}

	if m.PendingAttack != nil {
		view.Attack = &AttackView{
			Attacker:      unitView(m, m.PendingAttack.Attacker, seat),
			Target:        unitView(m, m.PendingAttack.Target, seat),
			AttackerPower: m.PendingAttack.AttackerPower,
			TargetPower:   m.PendingAttack.TargetPower,
			DoubleAttack:  m.PendingAttack.DoubleAttack,
			Banish:        m.PendingAttack.Banish,
			IgnoreBlocker: m.PendingAttack.IgnoreBlocker,
		}
		view.CounterPower = m.PendingCounterPower
		for _, sc := range m.StagedCounters {
			sv := StagedView{ManualPower: sc.ManualPower, DonSpent: sc.DonSpent}
			if sc.Card != nil {
				cv := cardView(sc.Card)
				sv.Card = &cv
			}
			view.StagedCounters = append(view.StagedCounters, sv)
		}
	}

	if m.Pending != nil {
		pv := &PendingView{
			Kind:     m.Pending.Kind.String(),
			Yours:    m.Pending.Owner == seat,
			Message:  m.Pending.Message,
			Max:      m.Pending.Max,
			Optional: m.Pending.Optional,
			Amount:   m.Pending.Amount,
		}
		if pv.Yours {
			pv.Candidates = m.Pending.Candidates
		}
		view.Pending = pv
	}
	if m.PendingTrigger != nil {
		view.Trigger = &TriggerView{
			Yours: m.PendingTrigger.Owner == seat,
			Card:  cardView(m.PendingTrigger.Card),
		}
	}

	if m.Over {
		view.Over = true
		view.Result = m.Result
		switch m.Winner {
		case seat:
			view.Winner = "you"
		case opp:
			view.Winner = "opponent"
		default:
			view.Winner = "none"
		}
	}

	if rl, ok := m.Logger.(*gamelog.RingLogger); ok {
		for _, ev := range rl.Recent(logTail) {
			view.Log = append(view.Log, gamelog.FormatEvent(ev))
		}
	}
	return view
}
