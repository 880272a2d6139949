package game

import (
	"testing"

	"github.com/grandline/duelserver/internal/gamelog"
)

// TestSetupDealsLifeAndHand: a 5-Life leader gets 5 face-down Life
// cards off the deck top and a fixed opening hand of 5.
func TestSetupDealsLifeAndHand(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	m := d.e.State

	for i, p := range m.Players {
		if len(p.Life) != 5 {
			t.Errorf("P%d Life = %d, want 5", i+1, len(p.Life))
		}
		if len(p.Hand) != InitialHandSize {
			t.Errorf("P%d hand = %d, want %d", i+1, len(p.Hand), InitialHandSize)
		}
		if len(p.Deck) != 30-5-InitialHandSize {
			t.Errorf("P%d deck = %d, want %d", i+1, len(p.Deck), 30-5-InitialHandSize)
		}
	}
}

// TestFirstTurnFlow: turn 1 skips the draw and deals only 1 DON; turn 2
// draws and deals 2.
func TestFirstTurnFlow(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	m := d.e.State

	if m.Turn != 1 || m.Current != 0 || m.Phase != PhaseMain {
		t.Fatalf("after start: turn %d current %d phase %s", m.Turn, m.Current, m.Phase)
	}
	if got := m.Players[0].DonActive; got != 1 {
		t.Errorf("turn-1 DON = %d, want 1", got)
	}
	if got := len(m.Players[0].Hand); got != InitialHandSize {
		t.Errorf("turn-1 hand = %d, want %d (no draw on turn 1)", got, InitialHandSize)
	}

	d.mustOK(d.e.EndTurn(0))
	if m.Turn != 2 || m.Current != 1 {
		t.Fatalf("after end turn: turn %d current %d", m.Turn, m.Current)
	}
	if got := m.Players[1].DonActive; got != 2 {
		t.Errorf("turn-2 DON = %d, want 2", got)
	}
	if got := len(m.Players[1].Hand); got != InitialHandSize+1 {
		t.Errorf("turn-2 hand = %d, want %d", got, InitialHandSize+1)
	}
}

// TestDonSupplyClamp: the per-player pool never exceeds the supply of 10.
func TestDonSupplyClamp(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck(nil, 5, 40), makeTestDeck(nil, 5, 40)}, nil)
	m := d.e.State

	d.advanceToTurn(13)
	p := m.Players[m.Current]
	if p.DonDeck != 0 {
		t.Errorf("DON deck = %d, want 0 after enough turns", p.DonDeck)
	}
	if total := p.DonActive + p.DonRested; total != DonSupply {
		t.Errorf("dealt DON = %d, want %d", total, DonSupply)
	}
}

// TestDeckOutLoss: drawing from an empty deck loses immediately.
func TestDeckOutLoss(t *testing.T) {
	// 11-card decks: 5 Life + 5 hand leaves one draw each.
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck(nil, 5, 11), makeTestDeck(nil, 5, 11)}, nil)
	m := d.e.State

	d.mustOK(d.e.EndTurn(0)) // turn 2: P2 draws their last card
	d.mustOK(d.e.EndTurn(1)) // turn 3: P1 draws their last card
	if m.Over {
		t.Fatal("match ended early")
	}
	if err := d.e.EndTurn(0); err != nil { // turn 4: P2 draws into empty deck
		t.Fatalf("end turn: %v", err)
	}
	if !m.Over || m.Winner != 0 {
		t.Fatalf("want P1 win by deck out, got over=%v winner=%d (%s)", m.Over, m.Winner, m.Result)
	}
	if len(d.logger.EventsOfType(gamelog.EventWin)) != 1 {
		t.Error("expected a win event")
	}
}

// TestPlayCharacterCostAndCap: cost is paid active→rested; the field
// holds at most five characters.
func TestPlayCharacterCostAndCap(t *testing.T) {
	hand := []*CardDef{
		vanillaChar("Cheap A", 1, 1000, 1000),
		vanillaChar("Cheap B", 1, 1000, 1000),
		vanillaChar("Cheap C", 1, 1000, 1000),
		vanillaChar("Cheap D", 1, 1000, 1000),
		vanillaChar("Pricey", 9, 9000, 0),
	}
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck(hand, 5, 30), nil}, nil)
	m := d.e.State
	p := m.Players[0]

	d.mustFail(d.e.PlayCharacter(0, d.handID(0, "Pricey")), ErrResource)

	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Cheap A")))
	if p.DonActive != 0 || p.DonRested != 1 {
		t.Fatalf("cost payment: active %d rested %d", p.DonActive, p.DonRested)
	}

	d.giveDon(0, 5)
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Cheap B")))
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Cheap C")))
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Cheap D")))

	// Fifth slot filled from a drawn filler; then the area is full.
	d.mustOK(d.e.TrashFromHand(0, d.handID(0, "Pricey")))
	d.mustOK(d.e.PlayFromTrash(0, p.Trash[len(p.Trash)-1].ID))
	if len(p.Characters) != MaxCharacters {
		t.Fatalf("characters = %d, want %d", len(p.Characters), MaxCharacters)
	}
	d.mustOK(d.e.DrawCards(0, 1))
	d.mustOK(d.e.TrashFromHand(0, p.Hand[0].ID))
	d.mustFail(d.e.PlayFromTrash(0, p.Trash[len(p.Trash)-1].ID), ErrZone)
}

// TestAttachDetachRoundTrip: attaching N then detaching N preserves the
// DON distribution.
func TestAttachDetachRoundTrip(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	m := d.e.State
	p := m.Players[0]

	d.giveDon(0, 3)
	before := [3]int{p.DonDeck, p.DonActive, p.DonRested}

	d.mustOK(d.e.AttachDon(0, RefLeader, 2))
	if p.Leader.AttachedDon != 2 {
		t.Fatalf("attached = %d, want 2", p.Leader.AttachedDon)
	}
	if got := d.e.EffectivePower(0, p.Leader); got != 5000+2*DonPowerBonus {
		t.Fatalf("leader power = %d, want %d", got, 5000+2*DonPowerBonus)
	}

	d.mustOK(d.e.DetachDon(0, RefLeader, 2))
	after := [3]int{p.DonDeck, p.DonActive, p.DonRested}
	if before != after {
		t.Fatalf("DON distribution changed: %v → %v", before, after)
	}
}

// TestAttachConsumesRestedFirst: attached DON accounts as spent, so the
// rested pool is drawn down before active.
func TestAttachConsumesRestedFirst(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	p := d.e.State.Players[0]

	d.giveDon(0, 3)
	p.DonActive -= 2
	p.DonRested += 2

	d.mustOK(d.e.AttachDon(0, RefLeader, 3))
	if p.DonRested != 0 {
		t.Errorf("rested = %d, want 0 (consumed first)", p.DonRested)
	}
	if p.DonActive != 1 {
		t.Errorf("active = %d, want 1", p.DonActive)
	}
}

// TestRefreshReturnsAttachedDonActive: at the owner's next Refresh all
// attached DON comes back active.
func TestRefreshReturnsAttachedDonActive(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	m := d.e.State
	p := m.Players[0]

	d.mustOK(d.e.AttachDon(0, RefLeader, 1))
	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.EndTurn(1))

	if p.Leader.AttachedDon != 0 {
		t.Errorf("attached = %d, want 0 after refresh", p.Leader.AttachedDon)
	}
	if p.DonRested != 0 {
		t.Errorf("rested = %d, want 0 after refresh", p.DonRested)
	}
}

// TestActorGating: the non-current player cannot act in Main.
func TestActorGating(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)

	d.mustFail(d.e.EndTurn(1), ErrActor)
	d.mustFail(d.e.AttachDon(1, RefLeader, 1), ErrActor)
}

// TestForfeit ends the match in the opponent's favor.
func TestForfeit(t *testing.T) {
	d := newTestDuel(t, [2]*CardDef{}, [2][]*CardDef{}, nil)
	m := d.e.State

	d.mustOK(d.e.Forfeit(1))
	if !m.Over || m.Winner != 0 || m.Result != "forfeit" {
		t.Fatalf("over=%v winner=%d result=%q", m.Over, m.Winner, m.Result)
	}
	d.mustFail(d.e.EndTurn(0), ErrFinished)
}

// TestPlayStageReplaces: a new stage sends the old one to the trash.
func TestPlayStageReplaces(t *testing.T) {
	stageA := &CardDef{Number: nextNumber(), Name: "Stage A", Type: CardTypeStage, Cost: 1}
	stageB := &CardDef{Number: nextNumber(), Name: "Stage B", Type: CardTypeStage, Cost: 1}
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck([]*CardDef{stageA, stageB}, 5, 30), nil}, nil)
	p := d.e.State.Players[0]

	d.giveDon(0, 2)
	d.mustOK(d.e.PlayStage(0, d.handID(0, "Stage A")))
	d.mustOK(d.e.PlayStage(0, d.handID(0, "Stage B")))

	if p.Stage == nil || p.Stage.Card.Def.Name != "Stage B" {
		t.Fatal("Stage B should be in play")
	}
	if len(p.Trash) != 1 || p.Trash[0].Def.Name != "Stage A" {
		t.Fatal("Stage A should be in the trash")
	}
}
