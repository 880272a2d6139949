package game

const (
	MaxCharacters   = 5
	DonSupply       = 10
	DonPowerBonus   = 1000
	InitialHandSize = 5
)

// Slot is a unit on the field: the card plus its mutable field state.
type Slot struct {
	Card        *CardInstance
	AttachedDon int
	Rested      bool
	CanAttack   bool // characters only; Rush sets it on the turn played
	FieldFlags  map[string]bool
}

func newSlot(ci *CardInstance) *Slot {
	return &Slot{Card: ci, FieldFlags: make(map[string]bool)}
}

// HasFlag reports an owner-scoped temporary field flag (granted keywords
// and attack states land here).
func (s *Slot) HasFlag(flag string) bool {
	return s.FieldFlags[flag]
}

// PlayerState holds one player's entire side of a match.
type PlayerState struct {
	Identity string
	Name     string

	Leader     *Slot
	Characters []*Slot // 0..MaxCharacters
	Stage      *Slot

	Deck    []*CardInstance // top of deck is the tail
	Hand    []*CardInstance
	Trash   []*CardInstance // entry order matters for some scripts
	Life    []*CardInstance // top of life is the tail; face-down until revealed
	Removed []*CardInstance // banished, out of the game

	DonDeck   int
	DonActive int
	DonRested int

	TempPower    map[int]int         // instance id → signed bonus; cleared at Refresh
	Restrictions map[Restriction]bool // cleared at End
	OncePerTurn  map[string]bool     // effect key → used; cleared at Refresh
}

func newPlayerState(identity, name string) *PlayerState {
	return &PlayerState{
		Identity:     identity,
		Name:         name,
		DonDeck:      DonSupply,
		TempPower:    make(map[int]int),
		Restrictions: make(map[Restriction]bool),
		OncePerTurn:  make(map[string]bool),
	}
}

// --- Zone helpers ---

// Draw removes the top card of the deck and adds it to the hand.
// Returns nil if the deck is empty.
func (p *PlayerState) Draw() *CardInstance {
	if len(p.Deck) == 0 {
		return nil
	}
	ci := p.Deck[len(p.Deck)-1]
	p.Deck = p.Deck[:len(p.Deck)-1]
	p.Hand = append(p.Hand, ci)
	return ci
}

// HandCard returns the hand card with the given instance id, or nil.
func (p *PlayerState) HandCard(id int) *CardInstance {
	for _, ci := range p.Hand {
		if ci.ID == id {
			return ci
		}
	}
	return nil
}

// RemoveFromHand removes and returns the hand card with the given id.
func (p *PlayerState) RemoveFromHand(id int) *CardInstance {
	for i, ci := range p.Hand {
		if ci.ID == id {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return ci
		}
	}
	return nil
}

// TrashCard returns the trash card with the given id, or nil.
func (p *PlayerState) TrashCard(id int) *CardInstance {
	for _, ci := range p.Trash {
		if ci.ID == id {
			return ci
		}
	}
	return nil
}

// RemoveFromTrash removes and returns the trash card with the given id.
func (p *PlayerState) RemoveFromTrash(id int) *CardInstance {
	for i, ci := range p.Trash {
		if ci.ID == id {
			p.Trash = append(p.Trash[:i], p.Trash[i+1:]...)
			return ci
		}
	}
	return nil
}

// ToTrash appends a card to the trash.
func (p *PlayerState) ToTrash(ci *CardInstance) {
	p.Trash = append(p.Trash, ci)
}

// ToDeckBottom puts a card under the deck.
func (p *PlayerState) ToDeckBottom(ci *CardInstance) {
	p.Deck = append([]*CardInstance{ci}, p.Deck...)
}

// PopLife removes and returns the top Life card, or nil when Life is empty.
func (p *PlayerState) PopLife() *CardInstance {
	if len(p.Life) == 0 {
		return nil
	}
	ci := p.Life[len(p.Life)-1]
	p.Life = p.Life[:len(p.Life)-1]
	return ci
}

// FindCharacter returns the character slot with the given instance id
// and its index, or (nil, -1).
func (p *PlayerState) FindCharacter(id int) (*Slot, int) {
	for i, s := range p.Characters {
		if s.Card.ID == id {
			return s, i
		}
	}
	return nil, -1
}

// RemoveCharacter removes the character slot with the given id and
// returns it, or nil.
func (p *PlayerState) RemoveCharacter(id int) *Slot {
	for i, s := range p.Characters {
		if s.Card.ID == id {
			p.Characters = append(p.Characters[:i], p.Characters[i+1:]...)
			return s
		}
	}
	return nil
}

// FieldSlots returns leader, characters, and stage in display order.
func (p *PlayerState) FieldSlots() []*Slot {
	slots := make([]*Slot, 0, len(p.Characters)+2)
	if p.Leader != nil {
		slots = append(slots, p.Leader)
	}
	slots = append(slots, p.Characters...)
	if p.Stage != nil {
		slots = append(slots, p.Stage)
	}
	return slots
}

// AttachedDonTotal sums DON attached across all field slots.
func (p *PlayerState) AttachedDonTotal() int {
	total := 0
	for _, s := range p.FieldSlots() {
		total += s.AttachedDon
	}
	return total
}

// SpendDon pays n DON, consuming active before rested when activeFirst,
// otherwise rested before active. Payment is all-or-nothing; returns
// false without mutation if the pool is short.
func (p *PlayerState) SpendDon(n int, activeFirst bool) bool {
	if p.DonActive+p.DonRested < n {
		return false
	}
	if activeFirst {
		fromActive := min(n, p.DonActive)
		p.DonActive -= fromActive
		p.DonRested -= n - fromActive
	} else {
		fromRested := min(n, p.DonRested)
		p.DonRested -= fromRested
		p.DonActive -= n - fromRested
	}
	return true
}

// PayCost moves cost DON from active to rested. All-or-nothing.
func (p *PlayerState) PayCost(cost int) bool {
	if p.DonActive < cost {
		return false
	}
	p.DonActive -= cost
	p.DonRested += cost
	return true
}

// RefundCost reverses PayCost.
func (p *PlayerState) RefundCost(cost int) {
	p.DonRested -= cost
	p.DonActive += cost
}
