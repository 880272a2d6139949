package room

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grandline/duelserver/internal/game"
)

// Status is a room's lifecycle state. Transitions are monotone:
// waiting → playing → finished; playing never falls back to waiting.
type Status int

const (
	StatusWaiting Status = iota
	StatusPlaying
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Participant is one player in a room.
type Participant struct {
	Identity  UserIdentity
	Name      string
	DeckRef   string
	Ready     bool
	Connected bool
}

// Room holds one or two participants and, once playing, the match
// engine. Every engine call and every snapshot read goes through Do,
// which serializes access with the room's own mutex; rooms never block
// each other.
type Room struct {
	ID      string
	Created time.Time

	mu           sync.Mutex
	status       Status
	participants []*Participant
	engine       *game.Engine
	lastActive   time.Time

	log *zap.Logger
}

func newRoom(id string, log *zap.Logger) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		Created:    now,
		lastActive: now,
		log:        log.With(zap.String("room", id)),
	}
}

// Do runs fn under the room lock. A panic inside fn is recovered: the
// match is aborted, both players see a finished room, and other rooms
// are unaffected.
func (r *Room) Do(fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("intent handler panicked", zap.Any("panic", rec))
			if r.engine != nil {
				r.engine.Abort("internal error")
			}
			r.status = StatusFinished
			err = fmt.Errorf("internal error in room %s", r.ID)
		}
	}()
	r.lastActive = time.Now()
	return fn()
}

// State returns the room's lifecycle state.
func (r *Room) State() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Engine returns the live match engine, or nil before the match starts.
// Callers must only touch it inside Do.
func (r *Room) Engine() *game.Engine {
	return r.engine
}

// Snapshot returns the status and a copy of the participant list.
func (r *Room) Snapshot() (Status, []Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Participant, len(r.participants))
	for i, p := range r.participants {
		out[i] = *p
	}
	return r.status, out
}

// participant finds a participant by identity; callers hold the lock.
func (r *Room) participant(id UserIdentity) *Participant {
	for _, p := range r.participants {
		if p.Identity == id {
			return p
		}
	}
	return nil
}

// playerIndex maps an identity to its engine seat, or -1.
func (r *Room) playerIndex(id UserIdentity) int {
	for i, p := range r.participants {
		if p.Identity == id {
			return i
		}
	}
	return -1
}

// idle reports how long the room has gone without an intent.
func (r *Room) idle(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastActive)
}
