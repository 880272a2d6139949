package game

import (
	"fmt"
	"strconv"
)

// --- Enums ---

type Phase int

const (
	PhaseNone Phase = iota
	PhaseRefresh
	PhaseDraw
	PhaseDon
	PhaseMain
	PhaseBattle
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseRefresh:
		return "Refresh"
	case PhaseDraw:
		return "Draw"
	case PhaseDon:
		return "DON!!"
	case PhaseMain:
		return "Main"
	case PhaseBattle:
		return "Battle"
	case PhaseEnd:
		return "End"
	default:
		return "None"
	}
}

type BattleStep int

const (
	BattleStepNone BattleStep = iota
	BattleStepBlock
	BattleStepCounter
	BattleStepDamage
)

func (s BattleStep) String() string {
	switch s {
	case BattleStepBlock:
		return "Block Step"
	case BattleStepCounter:
		return "Counter Step"
	case BattleStepDamage:
		return "Damage Step"
	default:
		return ""
	}
}

type CardType int

const (
	CardTypeLeader CardType = iota
	CardTypeCharacter
	CardTypeEvent
	CardTypeStage
)

func (ct CardType) String() string {
	switch ct {
	case CardTypeLeader:
		return "leader"
	case CardTypeCharacter:
		return "character"
	case CardTypeEvent:
		return "event"
	case CardTypeStage:
		return "stage"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so card types travel as
// strings in JSON and YAML.
func (ct CardType) MarshalText() ([]byte, error) {
	return []byte(ct.String()), nil
}

func (ct *CardType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "leader":
		*ct = CardTypeLeader
	case "character":
		*ct = CardTypeCharacter
	case "event":
		*ct = CardTypeEvent
	case "stage":
		*ct = CardTypeStage
	default:
		return fmt.Errorf("unknown card type %q", string(text))
	}
	return nil
}

// Keywords printed on cards or granted by effects.
const (
	KeywordRush         = "rush"
	KeywordBlocker      = "blocker"
	KeywordBanish       = "banish"
	KeywordDoubleAttack = "double-attack"
)

// Restriction flags set by effects, cleared at end of turn.
type Restriction string

const (
	RestrictLifeToHand Restriction = "no-life-to-hand"
	RestrictBlock      Restriction = "no-block"
	RestrictCounter    Restriction = "no-counter"
)

// ExpiryScope tags an active effect with the boundary at which its
// inverse is applied.
type ExpiryScope int

const (
	ExpiryNone ExpiryScope = iota
	ExpiryEndOfBattle
	ExpiryEndOfTurn
	ExpiryNextTurnStart
)

func (s ExpiryScope) String() string {
	switch s {
	case ExpiryEndOfBattle:
		return "end-of-battle"
	case ExpiryEndOfTurn:
		return "end-of-turn"
	case ExpiryNextTurnStart:
		return "next-turn-start"
	default:
		return ""
	}
}

func (s ExpiryScope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ExpiryScope) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "none":
		*s = ExpiryNone
	case "end-of-battle":
		*s = ExpiryEndOfBattle
	case "end-of-turn":
		*s = ExpiryEndOfTurn
	case "next-turn-start":
		*s = ExpiryNextTurnStart
	default:
		return fmt.Errorf("unknown expiry scope %q", string(text))
	}
	return nil
}

// --- Card definition (static lookup data from the catalog) ---

// CardDef is the immutable definition of a card. The catalog collaborator
// is the source of truth; the engine never mutates these.
type CardDef struct {
	Number      string   `json:"number" yaml:"number"`
	Name        string   `json:"name" yaml:"name"`
	LocalName   string   `json:"local_name,omitempty" yaml:"local_name,omitempty"`
	Type        CardType `json:"type" yaml:"type"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty"`
	Cost        int      `json:"cost" yaml:"cost"`
	Power       int      `json:"power" yaml:"power"`
	Counter     int      `json:"counter" yaml:"counter"`
	Life        int      `json:"life,omitempty" yaml:"life,omitempty"`
	Attribute   string   `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Text        string   `json:"text,omitempty" yaml:"text,omitempty"`
	TriggerText string   `json:"trigger_text,omitempty" yaml:"trigger_text,omitempty"`
	Trait       string   `json:"trait,omitempty" yaml:"trait,omitempty"`
	Rarity      string   `json:"rarity,omitempty" yaml:"rarity,omitempty"`
	ImageURL    string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ScriptRef   string   `json:"script_ref,omitempty" yaml:"script_ref,omitempty"`
}

func (c *CardDef) String() string {
	return c.Name
}

// HasKeyword reports whether the keyword is printed on the card.
func (c *CardDef) HasKeyword(kw string) bool {
	for _, k := range c.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// --- CardInstance (per-match copy of a card) ---

// CardInstance is one physical copy of a card inside a match. Everything
// mutable about a card on the field lives in its Slot; the instance
// itself only carries identity.
type CardInstance struct {
	ID    int
	Def   *CardDef
	Owner int // player index (0 or 1)
}

func (ci *CardInstance) String() string {
	if ci == nil {
		return "(none)"
	}
	return fmt.Sprintf("%s#%d", ci.Def.Name, ci.ID)
}

// --- Unit references ---

// Wire tokens for targeting non-character units instead of a character
// instance id.
const (
	RefLeader = "leader"
	RefStage  = "stage"
)

// UnitRef identifies a unit on the field: a player's leader or one of
// their characters by instance id.
type UnitRef struct {
	Player   int
	IsLeader bool
	CardID   int
}

func (r UnitRef) String() string {
	if r.IsLeader {
		return fmt.Sprintf("P%d leader", r.Player+1)
	}
	return fmt.Sprintf("P%d #%d", r.Player+1, r.CardID)
}

// SameUnit reports whether two refs point at the same field unit.
// Leader refs compare by side alone: depending on where a ref came from
// it may or may not carry the leader card's instance id.
func (r UnitRef) SameUnit(o UnitRef) bool {
	if r.Player != o.Player || r.IsLeader != o.IsLeader {
		return false
	}
	return r.IsLeader || r.CardID == o.CardID
}

// parseUnitToken parses a wire-level unit token: "leader" or a numeric
// character instance id.
func parseUnitToken(token string) (isLeader bool, cardID int, err error) {
	if token == RefLeader {
		return true, 0, nil
	}
	id, err := strconv.Atoi(token)
	if err != nil {
		return false, 0, fmt.Errorf("bad unit token %q", token)
	}
	return false, id, nil
}
