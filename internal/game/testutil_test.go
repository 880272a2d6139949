package game

import (
	"fmt"
	"testing"

	"github.com/grandline/duelserver/internal/gamelog"
)

// Test harness: deterministic duels driven by direct intents, with the
// match invariants checked after every step.

var cardSerial int

func nextNumber() string {
	cardSerial++
	return fmt.Sprintf("TST-%03d", cardSerial)
}

// tok renders a character instance id as a wire unit token.
func tok(id int) string {
	return fmt.Sprintf("%d", id)
}

func vanillaLeader(name string, power, life int) *CardDef {
	return &CardDef{
		Number: nextNumber(),
		Name:   name,
		Type:   CardTypeLeader,
		Power:  power,
		Life:   life,
	}
}

func vanillaChar(name string, cost, power, counter int, keywords ...string) *CardDef {
	return &CardDef{
		Number:   nextNumber(),
		Name:     name,
		Type:     CardTypeCharacter,
		Cost:     cost,
		Power:    power,
		Counter:  counter,
		Keywords: keywords,
	}
}

func counterEvent(name string, cost, counter int) *CardDef {
	return &CardDef{
		Number:  nextNumber(),
		Name:    name,
		Type:    CardTypeEvent,
		Cost:    cost,
		Counter: counter,
	}
}

func eventCard(name string, cost int) *CardDef {
	return &CardDef{
		Number: nextNumber(),
		Name:   name,
		Type:   CardTypeEvent,
		Cost:   cost,
	}
}

func filler() *CardDef {
	return &CardDef{Number: "TST-000", Name: "Filler Token", Type: CardTypeCharacter, Cost: 1, Power: 1000, Counter: 1000}
}

// makeTestDeck lays a deck out so that after Life is dealt (life cards
// off the top) and the opening five are drawn, handCards are all in
// hand. Top of deck is the tail of the slice.
func makeTestDeck(handCards []*CardDef, life, size int) []*CardDef {
	if len(handCards) > InitialHandSize {
		panic("too many hand cards")
	}
	deck := make([]*CardDef, 0, size)
	for len(deck) < size-InitialHandSize-life {
		deck = append(deck, filler())
	}
	deck = append(deck, handCards...)
	for len(deck) < size-life {
		deck = append(deck, filler())
	}
	for len(deck) < size {
		deck = append(deck, filler())
	}
	return deck
}

type testDuel struct {
	t      *testing.T
	e      *Engine
	logger *gamelog.RingLogger
	totals [2]int
}

// newTestDuel builds a started deterministic duel. Decks default to 30
// cards with 5-Life leaders at 5000 power when nil.
func newTestDuel(t *testing.T, leaders [2]*CardDef, decks [2][]*CardDef, scripts *ScriptCatalog) *testDuel {
	t.Helper()
	for i := 0; i < 2; i++ {
		if leaders[i] == nil {
			leaders[i] = vanillaLeader("Test Leader", 5000, 5)
		}
		if decks[i] == nil {
			decks[i] = makeTestDeck(nil, leaders[i].Life, 30)
		}
	}
	logger := gamelog.NewRingLogger(0)
	e := NewEngine(MatchConfig{
		Players: [2]PlayerSetup{
			{Identity: "user-0", Name: "P1", Leader: leaders[0], Deck: decks[0]},
			{Identity: "user-1", Name: "P2", Leader: leaders[1], Deck: decks[1]},
		},
		Scripts:   scripts,
		Logger:    logger,
		Seed:      1,
		NoShuffle: true,
	})
	d := &testDuel{t: t, e: e, logger: logger}
	for i := 0; i < 2; i++ {
		d.totals[i] = 1 + len(decks[i])
	}
	e.Start()
	d.check()
	return d
}

func (d *testDuel) mustOK(err error) {
	d.t.Helper()
	if err != nil {
		d.t.Fatalf("unexpected rule error: %v", err)
	}
	d.check()
}

func (d *testDuel) mustFail(err error, kind ErrorKind) {
	d.t.Helper()
	if err == nil {
		d.t.Fatalf("expected %s error, got success", kind)
	}
	re, ok := err.(*RuleError)
	if !ok {
		d.t.Fatalf("expected RuleError, got %T: %v", err, err)
	}
	if re.Kind != kind {
		d.t.Fatalf("expected %s error, got %s: %v", kind, re.Kind, err)
	}
	d.check()
}

// handID finds a hand card by name.
func (d *testDuel) handID(player int, name string) int {
	d.t.Helper()
	for _, ci := range d.e.State.Players[player].Hand {
		if ci.Def.Name == name {
			return ci.ID
		}
	}
	d.t.Fatalf("%s not in P%d's hand", name, player+1)
	return 0
}

// charID finds an on-field character by name.
func (d *testDuel) charID(player int, name string) int {
	d.t.Helper()
	for _, s := range d.e.State.Players[player].Characters {
		if s.Card.Def.Name == name {
			return s.Card.ID
		}
	}
	d.t.Fatalf("%s not on P%d's field", name, player+1)
	return 0
}

// advanceToTurn passes turns until the given turn number.
func (d *testDuel) advanceToTurn(n int) {
	d.t.Helper()
	for d.e.State.Turn < n {
		d.mustOK(d.e.EndTurn(d.e.State.Current))
	}
}

// giveDon grants extra active DON for tests that need cost headroom
// without playing out many turns.
func (d *testDuel) giveDon(player, n int) {
	p := d.e.State.Players[player]
	take := min(n, p.DonDeck)
	p.DonDeck -= take
	p.DonActive += take
}

// check asserts the quantified match invariants.
func (d *testDuel) check() {
	d.t.Helper()
	m := d.e.State

	// Card conservation: every owned instance is in exactly one place.
	counts := [2]int{}
	seen := make(map[int]int)
	count := func(ci *CardInstance) {
		if ci == nil {
			return
		}
		counts[ci.Owner]++
		seen[ci.ID]++
	}
	for _, p := range m.Players {
		for _, s := range p.FieldSlots() {
			count(s.Card)
		}
		for _, zone := range [][]*CardInstance{p.Deck, p.Hand, p.Trash, p.Life, p.Removed} {
			for _, ci := range zone {
				count(ci)
			}
		}
	}
	for _, sc := range m.StagedCounters {
		count(sc.Card)
	}
	if m.Pending != nil {
		for _, ci := range m.Pending.held {
			count(ci)
		}
	}
	if m.PendingTrigger != nil {
		count(m.PendingTrigger.Card)
	}
	for i := 0; i < 2; i++ {
		if counts[i] != d.totals[i] {
			d.t.Fatalf("P%d card conservation broken: %d instances, want %d", i+1, counts[i], d.totals[i])
		}
	}
	for id, n := range seen {
		if n != 1 {
			d.t.Fatalf("instance #%d appears in %d places", id, n)
		}
	}

	// DON conservation.
	for i, p := range m.Players {
		total := p.DonDeck + p.DonActive + p.DonRested + p.AttachedDonTotal()
		if total != DonSupply {
			d.t.Fatalf("P%d DON conservation broken: %d, want %d", i+1, total, DonSupply)
		}
	}

	// Interaction exclusivity.
	if m.Pending != nil && m.PendingTrigger != nil {
		d.t.Fatal("pending effect and trigger prompt open at once")
	}

	// Staged counters only during the counter step of a live attack.
	if len(m.StagedCounters) > 0 {
		if m.BattleStep != BattleStepCounter || m.PendingAttack == nil {
			d.t.Fatalf("staged counters outside counter step (step %v)", m.BattleStep)
		}
	}
}
