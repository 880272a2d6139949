package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandline/duelserver/internal/game"
)

func testServer(t *testing.T, cards []*game.CardDef, decks map[string]*DeckList) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cards", func(w http.ResponseWriter, r *http.Request) {
		wanted := map[string]bool{}
		for _, n := range r.URL.Query()["number"] {
			wanted[n] = true
		}
		out := cards
		if len(wanted) > 0 {
			out = nil
			for _, c := range cards {
				if wanted[c.Number] {
					out = append(out, c)
				}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"cards": out})
	})
	mux.HandleFunc("/decks/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/decks/"):]
		deck, ok := decks[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(deck)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sampleCards() []*game.CardDef {
	return []*game.CardDef{
		{Number: "ST01-001", Name: "Monkey D. Luffy", Type: game.CardTypeLeader, Power: 5000, Life: 5},
		{Number: "ST01-004", Name: "Usopp", Type: game.CardTypeCharacter, Cost: 2, Power: 2000, Counter: 1000},
		{Number: "ST01-014", Name: "Guard Point", Type: game.CardTypeEvent, Cost: 1, Counter: 3000},
	}
}

func TestListCards(t *testing.T) {
	srv := testServer(t, sampleCards(), nil)
	c := New(srv.URL, 0)

	cards, err := c.ListCards(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, cards, 3)

	cards, err = c.ListCards(context.Background(), Filter{Numbers: []string{"ST01-004"}})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Usopp", cards[0].Name)
	assert.Equal(t, game.CardTypeCharacter, cards[0].Type)
}

func TestMaterializeDeck(t *testing.T) {
	decks := map[string]*DeckList{
		"starter": {
			ID:     "starter",
			Name:   "Straw Hat Starter",
			Leader: "ST01-001",
			Items: []DeckItem{
				{Number: "ST01-004", Count: 4},
				{Number: "ST01-014", Count: 2},
			},
		},
	}
	srv := testServer(t, sampleCards(), decks)
	c := New(srv.URL, 0)

	leader, deck, err := c.MaterializeDeck(context.Background(), "starter")
	require.NoError(t, err)
	assert.Equal(t, "Monkey D. Luffy", leader.Name)
	assert.Len(t, deck, 6)

	// Copies share the immutable definition.
	assert.Same(t, deck[0], deck[1])
}

func TestMaterializeDeckErrors(t *testing.T) {
	decks := map[string]*DeckList{
		"noleader": {
			ID:     "noleader",
			Leader: "ZZZ-999",
			Items:  []DeckItem{{Number: "ST01-004", Count: 1}},
		},
		"badcount": {
			ID:     "badcount",
			Leader: "ST01-001",
			Items:  []DeckItem{{Number: "ST01-004", Count: 0}},
		},
	}
	srv := testServer(t, sampleCards(), decks)
	c := New(srv.URL, 0)

	_, _, err := c.MaterializeDeck(context.Background(), "missing")
	assert.Error(t, err)

	_, _, err = c.MaterializeDeck(context.Background(), "noleader")
	assert.ErrorContains(t, err, "unknown leader")

	_, _, err = c.MaterializeDeck(context.Background(), "badcount")
	assert.ErrorContains(t, err, "bad count")
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, 0)

	_, err := c.ListCards(context.Background(), Filter{})
	assert.ErrorContains(t, err, "500")
}
