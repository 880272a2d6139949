package room

import "context"

// Enqueue puts the caller in the matchmaking queue. When a second
// player is waiting, the two oldest entries are paired into a fresh
// room and the match starts immediately; the returned room is nil while
// the caller is still waiting for an opponent.
func (reg *Registry) Enqueue(ctx context.Context, id UserIdentity, name, deckRef string) (*Room, error) {
	reg.mu.Lock()
	if reg.liveRoom(id) != nil {
		reg.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	for _, q := range reg.queue {
		if q.identity == id {
			reg.mu.Unlock()
			return nil, ErrAlreadyQueued
		}
	}
	reg.queue = append(reg.queue, seat{identity: id, name: name, deckRef: deckRef})
	if len(reg.queue) < 2 {
		reg.mu.Unlock()
		return nil, nil
	}

	var seats [2]seat
	seats[0], seats[1] = reg.queue[0], reg.queue[1]
	reg.queue = reg.queue[2:]

	r := newRoom(reg.newRoomID(), reg.log)
	for _, s := range seats {
		r.participants = append(r.participants, &Participant{
			Identity: s.identity, Name: s.name, DeckRef: s.deckRef,
			Ready: true, Connected: true,
		})
		reg.byUser[s.identity] = r
	}
	reg.rooms[r.ID] = r
	reg.mu.Unlock()

	r.log.Info("matchmade room paired")
	return r, reg.start(ctx, r, seats)
}

// LeaveQueue removes the caller from the matchmaking queue. Reports
// whether an entry was removed.
func (reg *Registry) LeaveQueue(id UserIdentity) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for i, q := range reg.queue {
		if q.identity == id {
			reg.queue = append(reg.queue[:i], reg.queue[i+1:]...)
			return true
		}
	}
	return false
}

// QueueLen reports how many players are waiting for a match.
func (reg *Registry) QueueLen() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.queue)
}
