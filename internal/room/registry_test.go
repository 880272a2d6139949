package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandline/duelserver/internal/game"
)

// stubDecks serves a fixed legal deck for every ref except those marked
// as failing.
type stubDecks struct {
	fail map[string]bool
}

func (s *stubDecks) MaterializeDeck(_ context.Context, ref string) (*game.CardDef, []*game.CardDef, error) {
	if s.fail[ref] {
		return nil, nil, errors.New("catalog unreachable")
	}
	leader := &game.CardDef{Number: "L-001", Name: "Test Leader", Type: game.CardTypeLeader, Power: 5000, Life: 5}
	filler := &game.CardDef{Number: "C-001", Name: "Deckhand", Type: game.CardTypeCharacter, Cost: 1, Power: 1000, Counter: 1000}
	deck := make([]*game.CardDef, 20)
	for i := range deck {
		deck[i] = filler
	}
	return leader, deck, nil
}

func newTestRegistry(opts Options) *Registry {
	return NewRegistry(&stubDecks{}, game.NewScriptCatalog(), opts, nil)
}

// startedPair creates a room, seats two players, and readies both.
func startedPair(t *testing.T, reg *Registry) (*Room, UserIdentity, UserIdentity) {
	t.Helper()
	a, b := IssueIdentity(), IssueIdentity()
	r, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)
	_, err = reg.Join(b, r.ID, "Bob", "starter")
	require.NoError(t, err)
	_, err = reg.Ready(context.Background(), a)
	require.NoError(t, err)
	_, err = reg.Ready(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, StatusPlaying, r.State())
	return r, a, b
}

func winnerOf(r *Room) int {
	winner := -2
	_ = r.Do(func() error {
		if r.engine != nil {
			winner = r.engine.State.Winner
		}
		return nil
	})
	return winner
}

func TestCreateJoinReadyStart(t *testing.T) {
	reg := newTestRegistry(Options{})
	a := IssueIdentity()

	r, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)
	assert.Len(t, r.ID, roomIDLength)
	assert.Equal(t, StatusWaiting, r.State())
	require.Len(t, reg.ListRooms(), 1)

	_, err = reg.Create(a, "Alice", "starter")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	b := IssueIdentity()
	_, err = reg.Join(b, r.ID, "Bob", "starter")
	require.NoError(t, err)
	// A full room no longer shows up in the listing.
	assert.Empty(t, reg.ListRooms())

	_, err = reg.Ready(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, r.State())

	_, err = reg.Ready(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, r.State())
	assert.Same(t, r, reg.RoomFor(a))
	assert.Same(t, r, reg.RoomFor(b))

	_ = r.Do(func() error {
		require.NotNil(t, r.engine)
		assert.Equal(t, 1, r.engine.State.Turn)
		return nil
	})
}

func TestJoinErrors(t *testing.T) {
	reg := newTestRegistry(Options{})
	a := IssueIdentity()
	r, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)

	_, err = reg.Join(IssueIdentity(), "ZZZZZZ", "Ghost", "starter")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = reg.Join(IssueIdentity(), r.ID, "Bob", "starter")
	require.NoError(t, err)
	_, err = reg.Join(IssueIdentity(), r.ID, "Carol", "starter")
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = reg.Ready(context.Background(), IssueIdentity())
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestLeaveWaitingRoomVacates(t *testing.T) {
	reg := newTestRegistry(Options{})
	a := IssueIdentity()
	_, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)

	require.NoError(t, reg.Leave(a))
	assert.Empty(t, reg.ListRooms())
	assert.Nil(t, reg.RoomFor(a))
	assert.ErrorIs(t, reg.Leave(a), ErrNotInRoom)
}

func TestLeaveLiveMatchForfeits(t *testing.T) {
	reg := newTestRegistry(Options{})
	r, a, _ := startedPair(t, reg)

	require.NoError(t, reg.Leave(a))
	assert.Equal(t, StatusFinished, r.State())
	assert.Equal(t, 1, winnerOf(r))
}

func TestDeckFailureFinishesRoom(t *testing.T) {
	decks := &stubDecks{fail: map[string]bool{"broken": true}}
	reg := NewRegistry(decks, game.NewScriptCatalog(), Options{}, nil)
	a, b := IssueIdentity(), IssueIdentity()

	r, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)
	_, err = reg.Join(b, r.ID, "Bob", "broken")
	require.NoError(t, err)
	_, err = reg.Ready(context.Background(), a)
	require.NoError(t, err)

	_, err = reg.Ready(context.Background(), b)
	assert.ErrorContains(t, err, "unavailable")
	assert.Equal(t, StatusFinished, r.State())
}

func TestMatchmakingPairsTwoOldest(t *testing.T) {
	reg := newTestRegistry(Options{})
	a, b := IssueIdentity(), IssueIdentity()

	r, err := reg.Enqueue(context.Background(), a, "Alice", "starter")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, 1, reg.QueueLen())

	_, err = reg.Enqueue(context.Background(), a, "Alice", "starter")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	r, err = reg.Enqueue(context.Background(), b, "Bob", "starter")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, StatusPlaying, r.State())
	assert.Equal(t, 0, reg.QueueLen())
	assert.Same(t, r, reg.RoomFor(a))
	assert.Same(t, r, reg.RoomFor(b))

	_, parts := r.Snapshot()
	require.Len(t, parts, 2)
	assert.Equal(t, "Alice", parts[0].Name)
	assert.Equal(t, "Bob", parts[1].Name)
}

func TestLeaveQueue(t *testing.T) {
	reg := newTestRegistry(Options{})
	a := IssueIdentity()

	_, err := reg.Enqueue(context.Background(), a, "Alice", "starter")
	require.NoError(t, err)
	assert.True(t, reg.LeaveQueue(a))
	assert.False(t, reg.LeaveQueue(a))
	assert.Equal(t, 0, reg.QueueLen())
}

func TestDisconnectForfeitsAfterTimeout(t *testing.T) {
	changed := make(chan string, 1)
	reg := NewRegistry(&stubDecks{}, game.NewScriptCatalog(), Options{
		ForfeitTimeout: 20 * time.Millisecond,
		OnChange:       func(id string) { changed <- id },
	}, nil)
	r, _, b := startedPair(t, reg)

	reg.Disconnect(b)
	select {
	case id := <-changed:
		assert.Equal(t, r.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("forfeit timer never fired")
	}
	assert.Equal(t, StatusFinished, r.State())
	assert.Equal(t, 0, winnerOf(r))
}

func TestReconnectDisarmsForfeit(t *testing.T) {
	reg := NewRegistry(&stubDecks{}, game.NewScriptCatalog(), Options{
		ForfeitTimeout: 50 * time.Millisecond,
	}, nil)
	r, _, b := startedPair(t, reg)

	reg.Disconnect(b)
	back, err := reg.Reconnect(b)
	require.NoError(t, err)
	assert.Same(t, r, back)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StatusPlaying, r.State())
	_, parts := r.Snapshot()
	assert.True(t, parts[1].Connected)
}

func TestSweepReclaimsIdleRooms(t *testing.T) {
	reg := newTestRegistry(Options{})
	a := IssueIdentity()
	_, err := reg.Create(a, "Alice", "starter")
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Sweep(time.Now()))
	assert.Equal(t, 1, reg.Sweep(time.Now().Add(2*time.Hour)))
	assert.Empty(t, reg.ListRooms())
	assert.Nil(t, reg.RoomFor(a))
}

func TestPanicInIntentFinishesRoomOnly(t *testing.T) {
	reg := newTestRegistry(Options{})
	r, _, _ := startedPair(t, reg)
	other, _, _ := startedPair(t, reg)

	err := r.Do(func() error { panic("boom") })
	require.Error(t, err)
	assert.Equal(t, StatusFinished, r.State())
	assert.Equal(t, StatusPlaying, other.State())
}
