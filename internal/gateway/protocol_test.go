package gateway

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandline/duelserver/internal/game"
)

// apply runs one intent and fails the test on a rejection.
func apply(t *testing.T, e *game.Engine, seat int, m *ClientMessage) *ServerMessage {
	t.Helper()
	reply, err := applyIntent(e, seat, m)
	require.NoError(t, err, "intent %s", m.Type)
	return reply
}

func TestUtilityIntentRouting(t *testing.T) {
	e := testEngine(t)
	m := e.State
	alice := m.Players[0]
	bob := m.Players[1]

	reply := apply(t, e, 0, &ClientMessage{Type: MsgMoveDon, Count: 1})
	assert.Nil(t, reply)
	assert.Equal(t, 1, alice.DonRested)

	apply(t, e, 0, &ClientMessage{Type: MsgModifyPower, Target: "leader", Side: "opponent", Amount: 1000})
	assert.Equal(t, 6000, e.EffectivePower(1, bob.Leader))

	trashed := alice.Hand[0].ID
	apply(t, e, 0, &ClientMessage{Type: MsgTrashFromHand, CardID: trashed})
	assert.Len(t, alice.Trash, 1)

	apply(t, e, 0, &ClientMessage{Type: MsgPlayFromTrash, CardID: trashed})
	require.Len(t, alice.Characters, 1)
	assert.Empty(t, alice.Trash)

	apply(t, e, 0, &ClientMessage{Type: MsgRestTarget, Target: strconv.Itoa(trashed)})
	assert.True(t, alice.Characters[0].Rested)
	apply(t, e, 0, &ClientMessage{Type: MsgActivateTarget, Target: strconv.Itoa(trashed)})
	assert.False(t, alice.Characters[0].Rested)

	apply(t, e, 0, &ClientMessage{Type: MsgKOTarget, Target: strconv.Itoa(trashed)})
	assert.Empty(t, alice.Characters)
	assert.Len(t, alice.Trash, 1)

	lifeBefore := len(alice.Life)
	handBefore := len(alice.Hand)
	apply(t, e, 0, &ClientMessage{Type: MsgLifeToHand})
	assert.Len(t, alice.Life, lifeBefore-1)
	assert.Len(t, alice.Hand, handBefore+1)

	apply(t, e, 0, &ClientMessage{Type: MsgTrashToLife, CardID: trashed})
	assert.Len(t, alice.Life, lifeBefore)
	assert.Empty(t, alice.Trash)

	handBefore = len(alice.Hand)
	apply(t, e, 0, &ClientMessage{Type: MsgDrawCards, Count: 1})
	assert.Len(t, alice.Hand, handBefore+1)

	// Peeking the deck outside a search is rejected, not silently empty.
	_, err := applyIntent(e, 0, &ClientMessage{Type: MsgViewTopDeck, Count: 3})
	require.Error(t, err)
	assert.Equal(t, "phase", errorView(err).Kind)

	_, err = applyIntent(e, 0, &ClientMessage{Type: MsgKOTarget, Target: "bogus"})
	require.Error(t, err)
}

func TestViewTopDeckPeekReply(t *testing.T) {
	leader := &game.CardDef{Number: "L-001", Name: "Test Leader", Type: game.CardTypeLeader, Power: 5000, Life: 5}
	filler := &game.CardDef{Number: "C-001", Name: "Deckhand", Type: game.CardTypeCharacter, Cost: 1, Power: 1000, Counter: 1000}
	search := &game.CardDef{Number: "E-001", Name: "Chart a Course", Type: game.CardTypeEvent}
	scripts := game.NewScriptCatalog()
	scripts.Add(&game.CardScript{
		Number: search.Number,
		Entries: []*game.ScriptEntry{{
			Trigger: game.TriggerOnPlayEvent,
			Actions: []game.ScriptAction{{
				Kind: game.ActPendingSearch, Count: 3, Max: 1, Optional: true,
			}},
		}},
	})

	deck := make([]*game.CardDef, 20)
	for i := range deck {
		deck[i] = filler
	}
	deck[12] = search // lands in the opening hand: top 5 are Life, next 5 drawn
	e := game.NewEngine(game.MatchConfig{
		Players: [2]game.PlayerSetup{
			{Identity: "user-0", Name: "Alice", Leader: leader, Deck: deck},
			{Identity: "user-1", Name: "Bob", Leader: leader, Deck: deck},
		},
		Scripts:   scripts,
		Seed:      1,
		NoShuffle: true,
	})
	e.Start()

	var searchID int
	for _, ci := range e.State.Players[0].Hand {
		if ci.Def.Number == search.Number {
			searchID = ci.ID
		}
	}
	require.NotZero(t, searchID, "search event should be in the opening hand")

	reply := apply(t, e, 0, &ClientMessage{Type: MsgPlayEvent, CardID: searchID})
	assert.Nil(t, reply)
	require.NotNil(t, e.State.Pending)

	reply = apply(t, e, 0, &ClientMessage{Type: MsgViewTopDeck, Count: 3})
	require.NotNil(t, reply)
	assert.Equal(t, ReplyPeek, reply.Type)
	require.Len(t, reply.Cards, 3)
	assert.Equal(t, "Deckhand", reply.Cards[0].Name)

	// The opponent cannot peek at the searcher's reveal.
	_, err := applyIntent(e, 1, &ClientMessage{Type: MsgViewTopDeck, Count: 3})
	require.Error(t, err)
	assert.Equal(t, "actor", errorView(err).Kind)
}
