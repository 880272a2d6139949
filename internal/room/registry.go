package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grandline/duelserver/internal/game"
	"github.com/grandline/duelserver/internal/gamelog"
)

// DeckSource resolves a deck reference into a leader definition and a
// main deck. The catalog client satisfies this; tests substitute a stub.
type DeckSource interface {
	MaterializeDeck(ctx context.Context, ref string) (*game.CardDef, []*game.CardDef, error)
}

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotInRoom     = errors.New("not in a room")
	ErrNotWaiting    = errors.New("room is not waiting for players")
	ErrAlreadyQueued = errors.New("already in the matchmaking queue")
)

const (
	DefaultForfeitTimeout = 60 * time.Second
	DefaultRoomTTL        = time.Hour

	roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomIDLength   = 6
)

// Options tune registry behavior. Zero values take the defaults above.
type Options struct {
	ForfeitTimeout time.Duration
	TTL            time.Duration

	// OnChange is invoked, outside all locks, when a room changes
	// without a player intent driving it (forfeit timers, the sweeper).
	OnChange func(roomID string)
}

// Registry owns every room and the matchmaking queue. It maps each
// identity to at most one live room, so a reconnecting player can be
// routed back without knowing the room id.
type Registry struct {
	decks   DeckSource
	scripts *game.ScriptCatalog
	log     *zap.Logger

	forfeitTimeout time.Duration
	ttl            time.Duration
	onChange       func(roomID string)

	mu     sync.Mutex
	rooms  map[string]*Room
	byUser map[UserIdentity]*Room
	timers map[UserIdentity]*time.Timer
	queue  []seat
}

// seat is the pre-match identity of one player.
type seat struct {
	identity UserIdentity
	name     string
	deckRef  string
}

// NewRegistry builds an empty registry.
func NewRegistry(decks DeckSource, scripts *game.ScriptCatalog, opts Options, log *zap.Logger) *Registry {
	if opts.ForfeitTimeout <= 0 {
		opts.ForfeitTimeout = DefaultForfeitTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultRoomTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		decks:          decks,
		scripts:        scripts,
		log:            log,
		forfeitTimeout: opts.ForfeitTimeout,
		ttl:            opts.TTL,
		onChange:       opts.OnChange,
		rooms:          make(map[string]*Room),
		byUser:         make(map[UserIdentity]*Room),
		timers:         make(map[UserIdentity]*time.Timer),
	}
}

// newRoomID mints a short join code unique among live rooms.
// Callers hold reg.mu.
func (reg *Registry) newRoomID() string {
	for {
		b := make([]byte, roomIDLength)
		for i := range b {
			b[i] = roomIDAlphabet[rand.IntN(len(roomIDAlphabet))]
		}
		if _, taken := reg.rooms[string(b)]; !taken {
			return string(b)
		}
	}
}

// liveRoom returns the user's current room, dropping a stale mapping to
// a finished room. Callers hold reg.mu.
func (reg *Registry) liveRoom(id UserIdentity) *Room {
	r, ok := reg.byUser[id]
	if !ok {
		return nil
	}
	if r.State() == StatusFinished {
		delete(reg.byUser, id)
		return nil
	}
	return r
}

// Create opens a new waiting room with the caller as its first player.
func (reg *Registry) Create(id UserIdentity, name, deckRef string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.liveRoom(id) != nil {
		return nil, ErrAlreadyInRoom
	}
	r := newRoom(reg.newRoomID(), reg.log)
	r.participants = append(r.participants, &Participant{
		Identity: id, Name: name, DeckRef: deckRef, Connected: true,
	})
	reg.rooms[r.ID] = r
	reg.byUser[id] = r
	r.log.Info("room created", zap.String("user", string(id)))
	return r, nil
}

// Join seats the caller as the second player of a waiting room.
func (reg *Registry) Join(id UserIdentity, roomID, name, deckRef string) (*Room, error) {
	reg.mu.Lock()
	if reg.liveRoom(id) != nil {
		reg.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	r, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	err := r.Do(func() error {
		if r.status != StatusWaiting {
			return ErrNotWaiting
		}
		if len(r.participants) >= 2 {
			return ErrRoomFull
		}
		r.participants = append(r.participants, &Participant{
			Identity: id, Name: name, DeckRef: deckRef, Connected: true,
		})
		r.log.Info("player joined", zap.String("user", string(id)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.byUser[id] = r
	reg.mu.Unlock()
	return r, nil
}

// Ready marks the caller ready. When both players are ready the match
// is built and started; a deck the catalog cannot serve finishes the
// room instead.
func (reg *Registry) Ready(ctx context.Context, id UserIdentity) (*Room, error) {
	reg.mu.Lock()
	r := reg.liveRoom(id)
	reg.mu.Unlock()
	if r == nil {
		return nil, ErrNotInRoom
	}

	var launch bool
	var seats [2]seat
	err := r.Do(func() error {
		if r.status != StatusWaiting {
			return ErrNotWaiting
		}
		p := r.participant(id)
		if p == nil {
			return ErrNotInRoom
		}
		p.Ready = true
		if len(r.participants) == 2 && r.participants[0].Ready && r.participants[1].Ready {
			launch = true
			for i, pp := range r.participants {
				seats[i] = seat{identity: pp.Identity, name: pp.Name, deckRef: pp.DeckRef}
			}
		}
		return nil
	})
	if err != nil || !launch {
		return r, err
	}
	return r, reg.start(ctx, r, seats)
}

// start materializes both decks and brings the room to playing. Deck
// resolution happens outside the room lock; the room only transitions
// once both decks are in hand.
func (reg *Registry) start(ctx context.Context, r *Room, seats [2]seat) error {
	var players [2]game.PlayerSetup
	for i, s := range seats {
		leader, deck, err := reg.decks.MaterializeDeck(ctx, s.deckRef)
		if err != nil {
			r.log.Error("deck unavailable at match start",
				zap.String("deck", s.deckRef), zap.Error(err))
			_ = r.Do(func() error {
				r.status = StatusFinished
				return nil
			})
			return fmt.Errorf("deck %s unavailable: %w", s.deckRef, err)
		}
		players[i] = game.PlayerSetup{
			Identity: string(s.identity),
			Name:     s.name,
			Leader:   leader,
			Deck:     deck,
		}
	}

	return r.Do(func() error {
		if r.status != StatusWaiting {
			return ErrNotWaiting
		}
		r.engine = game.NewEngine(game.MatchConfig{
			Players: players,
			Scripts: reg.scripts,
			Logger:  gamelog.NewRingLogger(0),
		})
		r.engine.Start()
		r.status = StatusPlaying
		r.log.Info("match started",
			zap.String("player0", players[0].Name),
			zap.String("player1", players[1].Name))
		return nil
	})
}

// Leave removes the caller from their room. Leaving a waiting room just
// vacates the seat; leaving a live match forfeits it.
func (reg *Registry) Leave(id UserIdentity) error {
	reg.mu.Lock()
	r := reg.byUser[id]
	delete(reg.byUser, id)
	if t, ok := reg.timers[id]; ok {
		t.Stop()
		delete(reg.timers, id)
	}
	reg.mu.Unlock()
	if r == nil {
		return ErrNotInRoom
	}

	var empty bool
	err := r.Do(func() error {
		switch r.status {
		case StatusWaiting:
			for i, p := range r.participants {
				if p.Identity == id {
					r.participants = append(r.participants[:i], r.participants[i+1:]...)
					break
				}
			}
			empty = len(r.participants) == 0
		case StatusPlaying:
			if s := r.playerIndex(id); s >= 0 && r.engine != nil && !r.engine.State.Over {
				_ = r.engine.Forfeit(s)
			}
			r.status = StatusFinished
			r.log.Info("player left a live match", zap.String("user", string(id)))
		}
		return nil
	})
	if empty {
		reg.mu.Lock()
		delete(reg.rooms, r.ID)
		reg.mu.Unlock()
	}
	return err
}

// RoomInfo is one row of the public waiting-room listing.
type RoomInfo struct {
	ID      string
	Created time.Time
	Players []string
}

// ListRooms lists joinable rooms, oldest first.
func (reg *Registry) ListRooms() []RoomInfo {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	var out []RoomInfo
	for _, r := range rooms {
		status, parts := r.Snapshot()
		if status != StatusWaiting || len(parts) >= 2 {
			continue
		}
		names := make([]string, len(parts))
		for i, p := range parts {
			names[i] = p.Name
		}
		out = append(out, RoomInfo{ID: r.ID, Created: r.Created, Players: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Get looks a room up by id.
func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	return r, ok
}

// RoomFor returns the room an identity currently belongs to, if any.
func (reg *Registry) RoomFor(id UserIdentity) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.byUser[id]
}

// Disconnect records a dropped connection. In a live match it arms the
// forfeit timer; reconnecting in time disarms it.
func (reg *Registry) Disconnect(id UserIdentity) {
	reg.mu.Lock()
	r := reg.byUser[id]
	reg.mu.Unlock()
	if r == nil {
		return
	}

	var playing bool
	_ = r.Do(func() error {
		if p := r.participant(id); p != nil {
			p.Connected = false
		}
		playing = r.status == StatusPlaying
		return nil
	})
	if !playing {
		return
	}

	reg.mu.Lock()
	if _, armed := reg.timers[id]; !armed {
		reg.timers[id] = time.AfterFunc(reg.forfeitTimeout, func() {
			reg.forfeitAbsent(id, r)
		})
		r.log.Info("forfeit timer armed",
			zap.String("user", string(id)),
			zap.Duration("timeout", reg.forfeitTimeout))
	}
	reg.mu.Unlock()
}

// forfeitAbsent fires when a disconnected player's grace period lapses.
func (reg *Registry) forfeitAbsent(id UserIdentity, r *Room) {
	reg.mu.Lock()
	delete(reg.timers, id)
	reg.mu.Unlock()

	var fired bool
	_ = r.Do(func() error {
		p := r.participant(id)
		if p == nil || p.Connected || r.status != StatusPlaying {
			return nil
		}
		if s := r.playerIndex(id); s >= 0 && r.engine != nil && !r.engine.State.Over {
			_ = r.engine.Forfeit(s)
		}
		r.status = StatusFinished
		fired = true
		r.log.Info("match forfeited on timeout", zap.String("user", string(id)))
		return nil
	})
	if fired && reg.onChange != nil {
		reg.onChange(r.ID)
	}
}

// Reconnect binds a returning identity back to its room and disarms any
// pending forfeit timer.
func (reg *Registry) Reconnect(id UserIdentity) (*Room, error) {
	reg.mu.Lock()
	r := reg.byUser[id]
	if t, ok := reg.timers[id]; ok {
		t.Stop()
		delete(reg.timers, id)
	}
	reg.mu.Unlock()
	if r == nil {
		return nil, ErrNotInRoom
	}

	_ = r.Do(func() error {
		if p := r.participant(id); p != nil {
			p.Connected = true
		}
		r.log.Info("player reconnected", zap.String("user", string(id)))
		return nil
	})
	return r, nil
}

// Sweep reclaims rooms idle past the TTL. Live matches caught by the
// sweep are aborted first. Returns how many rooms were reclaimed.
func (reg *Registry) Sweep(now time.Time) int {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	reaped := 0
	for _, r := range rooms {
		idle := r.idle(now)
		if idle < reg.ttl {
			continue
		}
		_ = r.Do(func() error {
			if r.status == StatusPlaying && r.engine != nil && !r.engine.State.Over {
				r.engine.Abort("room expired")
			}
			r.status = StatusFinished
			return nil
		})
		if reg.onChange != nil {
			reg.onChange(r.ID)
		}

		_, parts := r.Snapshot()
		reg.mu.Lock()
		delete(reg.rooms, r.ID)
		for _, p := range parts {
			if reg.byUser[p.Identity] == r {
				delete(reg.byUser, p.Identity)
			}
			if t, ok := reg.timers[p.Identity]; ok {
				t.Stop()
				delete(reg.timers, p.Identity)
			}
		}
		reg.mu.Unlock()

		r.log.Info("room reclaimed", zap.Duration("idle", idle))
		reaped++
	}
	return reaped
}

// RunSweeper sweeps on the given interval until ctx is done.
func (reg *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reg.Sweep(now)
		}
	}
}
