package game

import (
	"strings"
	"testing"

	"github.com/grandline/duelserver/internal/gamelog"
)

// TestOnPlayPowerMod: an ON_PLAY self-buff lasts until end of turn.
func TestOnPlayPowerMod(t *testing.T) {
	brawler := vanillaChar("Hot-Blooded Brawler", 1, 3000, 1000)
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: brawler.Number,
		Entries: []*ScriptEntry{{
			Trigger: TriggerOnPlay,
			Actions: []ScriptAction{{Kind: ActModifyPower, Amount: 2000}},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck([]*CardDef{brawler}, 5, 30), nil}, scripts)
	m := d.e.State

	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Hot-Blooded Brawler")))
	slot, _ := m.Players[0].FindCharacter(d.charID(0, "Hot-Blooded Brawler"))
	if got := d.e.EffectivePower(0, slot); got != 5000 {
		t.Fatalf("power = %d, want 5000", got)
	}

	d.mustOK(d.e.EndTurn(0))
	if got := d.e.EffectivePower(0, slot); got != 3000 {
		t.Fatalf("power after end of turn = %d, want 3000", got)
	}
}

// TestConstantPowerAndKeyword: CONSTANT entries contribute power and
// keywords only while their conditions hold.
func TestConstantPowerAndKeyword(t *testing.T) {
	captain := vanillaChar("Fleet Captain", 2, 4000, 0)
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: captain.Number,
		Entries: []*ScriptEntry{{
			Trigger:    TriggerConstant,
			Conditions: []Condition{{Kind: CondMyTurn}},
			Actions: []ScriptAction{
				{Kind: ActModifyPower, Amount: 1000},
				{Kind: ActGrantKeyword, Keyword: KeywordDoubleAttack},
			},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck([]*CardDef{captain}, 5, 30), nil}, scripts)
	m := d.e.State

	d.giveDon(0, 1)
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Fleet Captain")))
	slot, _ := m.Players[0].FindCharacter(d.charID(0, "Fleet Captain"))

	if got := d.e.EffectivePower(0, slot); got != 5000 {
		t.Fatalf("power on own turn = %d, want 5000", got)
	}
	if !d.e.HasKeyword(0, slot, KeywordDoubleAttack) {
		t.Fatal("keyword should be granted on own turn")
	}

	d.mustOK(d.e.EndTurn(0))
	if got := d.e.EffectivePower(0, slot); got != 4000 {
		t.Fatalf("power on opponent's turn = %d, want 4000", got)
	}
	if d.e.HasKeyword(0, slot, KeywordDoubleAttack) {
		t.Fatal("keyword should lapse on the opponent's turn")
	}
}

// TestActivateMainOncePerTurn: the once-per-turn scratchpad gates the
// second activation within a turn and resets at refresh.
func TestActivateMainOncePerTurn(t *testing.T) {
	drummer := vanillaChar("War Drummer", 1, 2000, 1000)
	key := "war-drummer-main"
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: drummer.Number,
		Entries: []*ScriptEntry{{
			Trigger:    TriggerActivateMain,
			Conditions: []Condition{{Kind: CondOncePerTurn, Key: key}},
			Actions: []ScriptAction{
				{Kind: ActSetOncePerTurn, Key: key},
				{Kind: ActModifyPower, Target: "leader", Amount: 1000},
			},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck([]*CardDef{drummer}, 5, 30), nil}, scripts)
	m := d.e.State
	leader := m.Players[0].Leader

	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "War Drummer")))
	id := d.charID(0, "War Drummer")

	d.mustOK(d.e.ActivateMain(0, tok(id)))
	if got := d.e.EffectivePower(0, leader); got != 6000 {
		t.Fatalf("leader power = %d, want 6000", got)
	}

	// Second activation is accepted but the entry's condition fails.
	d.mustOK(d.e.ActivateMain(0, tok(id)))
	if got := d.e.EffectivePower(0, leader); got != 6000 {
		t.Fatalf("leader power after repeat = %d, want 6000 still", got)
	}

	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.EndTurn(1))
	d.mustOK(d.e.ActivateMain(0, tok(id)))
	if got := d.e.EffectivePower(0, leader); got != 6000 {
		t.Fatalf("leader power next turn = %d, want 6000", got)
	}
}

// TestUnknownScriptPartsAreForgiving: unknown conditions pass, unknown
// actions no-op, both are logged, the match continues.
func TestUnknownScriptPartsAreForgiving(t *testing.T) {
	oddball := vanillaChar("Oddball", 1, 2000, 1000)
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: oddball.Number,
		Entries: []*ScriptEntry{{
			Trigger:    TriggerOnPlay,
			Conditions: []Condition{{Kind: "FUTURE_CONDITION"}},
			Actions: []ScriptAction{
				{Kind: "FUTURE_ACTION"},
				{Kind: ActDrawCards, Amount: 1},
			},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{makeTestDeck([]*CardDef{oddball}, 5, 30), nil}, scripts)
	p := d.e.State.Players[0]

	handBefore := len(p.Hand)
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Oddball")))
	// Played (−1) and the draw after the unknown action still ran (+1).
	if len(p.Hand) != handBefore {
		t.Fatalf("hand = %d, want %d", len(p.Hand), handBefore)
	}

	var sawCondition, sawAction bool
	for _, ev := range d.logger.EventsOfType(gamelog.EventScript) {
		if strings.Contains(ev.Details, "FUTURE_CONDITION") {
			sawCondition = true
		}
		if strings.Contains(ev.Details, "FUTURE_ACTION") {
			sawAction = true
		}
	}
	if !sawCondition || !sawAction {
		t.Error("unknown script parts should be logged")
	}
}

// TestOnAttackIgnoreBlocker: ADD_ATTACK_STATE from an ON_ATTACK script
// skips the block step entirely.
func TestOnAttackIgnoreBlocker(t *testing.T) {
	sniper := vanillaChar("Longshot Sniper", 2, 4000, 1000)
	blocker := vanillaChar("Stalwart Guard", 2, 3000, 2000, KeywordBlocker)
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: sniper.Number,
		Entries: []*ScriptEntry{{
			Trigger: TriggerOnAttack,
			Actions: []ScriptAction{{Kind: ActAddAttackState, State: AttackStateIgnoreBlocker}},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{
			makeTestDeck([]*CardDef{sniper}, 5, 30),
			makeTestDeck([]*CardDef{blocker}, 5, 30),
		}, scripts)
	m := d.e.State

	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.PlayCharacter(1, d.handID(1, "Stalwart Guard")))
	d.mustOK(d.e.EndTurn(1))
	d.mustOK(d.e.PlayCharacter(0, d.handID(0, "Longshot Sniper")))
	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.EndTurn(1))

	d.mustOK(d.e.DeclareAttack(0, tok(d.charID(0, "Longshot Sniper")), RefLeader))
	if m.BattleStep != BattleStepCounter {
		t.Fatalf("blocker should be ignored, want counter step, got %v", m.BattleStep)
	}
	d.mustOK(d.e.SkipCounter(1))
}

// TestBlockRestriction: a sealed defender cannot declare a blocker.
func TestBlockRestriction(t *testing.T) {
	seal := eventCard("Net Trap", 0)
	blocker := vanillaChar("Stalwart Guard", 2, 3000, 2000, KeywordBlocker)
	scripts := NewScriptCatalog()
	scripts.Add(&CardScript{
		Number: seal.Number,
		Entries: []*ScriptEntry{{
			Trigger: TriggerOnPlayEvent,
			Actions: []ScriptAction{{
				Kind: ActSetRestriction, Restriction: string(RestrictBlock),
			}},
		}},
	})
	d := newTestDuel(t, [2]*CardDef{},
		[2][]*CardDef{
			makeTestDeck([]*CardDef{seal}, 5, 30),
			makeTestDeck([]*CardDef{blocker}, 5, 30),
		}, scripts)
	m := d.e.State

	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.PlayCharacter(1, d.handID(1, "Stalwart Guard")))
	d.mustOK(d.e.EndTurn(1))
	d.mustOK(d.e.EndTurn(0))
	d.mustOK(d.e.EndTurn(1))

	d.mustOK(d.e.PlayEvent(0, d.handID(0, "Net Trap")))
	d.mustOK(d.e.DeclareAttack(0, RefLeader, RefLeader))
	if m.BattleStep != BattleStepCounter {
		t.Fatalf("sealed blocker should not open a block step, got %v", m.BattleStep)
	}
}

// TestScriptCatalogYAML: the YAML loader round-trips a small catalog.
func TestScriptCatalogYAML(t *testing.T) {
	src := `
scripts:
  - number: OP01-001
    entries:
      - trigger: ON_PLAY
        conditions:
          - kind: MY_TURN
        actions:
          - kind: MODIFY_POWER
            amount: 1000
            scope: end-of-turn
      - trigger: TRIGGER
        actions:
          - kind: DRAW_CARDS
            amount: 1
`
	catalog, err := ParseScripts([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cs := catalog.Lookup("OP01-001")
	if cs == nil {
		t.Fatal("script not found")
	}
	onPlay := cs.EntriesFor(TriggerOnPlay)
	if len(onPlay) != 1 || len(onPlay[0].Actions) != 1 {
		t.Fatalf("unexpected ON_PLAY shape: %+v", onPlay)
	}
	if onPlay[0].Actions[0].Scope != ExpiryEndOfTurn {
		t.Errorf("scope = %v, want end-of-turn", onPlay[0].Actions[0].Scope)
	}
	if !catalog.HasTrigger("OP01-001") {
		t.Error("trigger entry not detected")
	}
	if catalog.Lookup("OP01-999") != nil {
		t.Error("unknown number should return nil")
	}
}
