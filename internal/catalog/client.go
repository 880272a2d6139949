// Package catalog talks to the card-catalog collaborator: the external
// service that owns card definitions and saved deck lists. The engine
// treats everything returned here as immutable lookup data.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/grandline/duelserver/internal/game"
)

// DefaultTimeout bounds a single catalog request.
const DefaultTimeout = 10 * time.Second

// Filter narrows a card listing.
type Filter struct {
	Set     string
	Color   string
	Type    string
	Trait   string
	Name    string
	Numbers []string
}

// DeckItem is one line of a saved deck list.
type DeckItem struct {
	Number string `json:"number"`
	Count  int    `json:"count"`
}

// DeckList is a saved deck: a leader plus numbered card counts.
type DeckList struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Leader string     `json:"leader"`
	Items  []DeckItem `json:"items"`
}

// Client is an HTTP JSON client for the catalog service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL. A zero timeout means
// DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListCards fetches card definitions matching the filter.
func (c *Client) ListCards(ctx context.Context, f Filter) ([]*game.CardDef, error) {
	q := url.Values{}
	if f.Set != "" {
		q.Set("set", f.Set)
	}
	if f.Color != "" {
		q.Set("color", f.Color)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Trait != "" {
		q.Set("trait", f.Trait)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	for _, n := range f.Numbers {
		q.Add("number", n)
	}

	var out struct {
		Cards []*game.CardDef `json:"cards"`
	}
	if err := c.get(ctx, "/cards", q, &out); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// GetDeck fetches one saved deck list by id.
func (c *Client) GetDeck(ctx context.Context, id string) (*DeckList, error) {
	var out DeckList
	if err := c.get(ctx, "/decks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog: %s returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return nil
}

// MaterializeDeck resolves a deck list against the catalog and expands
// it into the leader definition plus one entry per physical copy.
// Shuffling is the engine's job.
func (c *Client) MaterializeDeck(ctx context.Context, id string) (*game.CardDef, []*game.CardDef, error) {
	list, err := c.GetDeck(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	numbers := make([]string, 0, len(list.Items)+1)
	numbers = append(numbers, list.Leader)
	for _, item := range list.Items {
		numbers = append(numbers, item.Number)
	}
	defs, err := c.ListCards(ctx, Filter{Numbers: numbers})
	if err != nil {
		return nil, nil, err
	}
	return BuildDeck(list, defs)
}

// BuildDeck expands a deck list using the given definitions.
func BuildDeck(list *DeckList, defs []*game.CardDef) (*game.CardDef, []*game.CardDef, error) {
	byNumber := make(map[string]*game.CardDef, len(defs))
	for _, def := range defs {
		byNumber[def.Number] = def
	}

	leader, ok := byNumber[list.Leader]
	if !ok {
		return nil, nil, fmt.Errorf("catalog: deck %s: unknown leader %s", list.ID, list.Leader)
	}
	if leader.Type != game.CardTypeLeader {
		return nil, nil, fmt.Errorf("catalog: deck %s: %s is not a leader", list.ID, list.Leader)
	}

	var deck []*game.CardDef
	for _, item := range list.Items {
		def, ok := byNumber[item.Number]
		if !ok {
			return nil, nil, fmt.Errorf("catalog: deck %s: unknown card %s", list.ID, item.Number)
		}
		if def.Type == game.CardTypeLeader {
			return nil, nil, fmt.Errorf("catalog: deck %s: leader %s in the main deck", list.ID, item.Number)
		}
		if item.Count <= 0 {
			return nil, nil, fmt.Errorf("catalog: deck %s: bad count %d for %s", list.ID, item.Count, item.Number)
		}
		for i := 0; i < item.Count; i++ {
			deck = append(deck, def)
		}
	}
	if len(deck) == 0 {
		return nil, nil, fmt.Errorf("catalog: deck %s is empty", list.ID)
	}
	return leader, deck, nil
}
