package game

import "fmt"

// Card scripts are data, not code: a card's behavior is a list of
// entries, each bound to a trigger, guarded by conditions, and made of
// tagged actions. The finite dispatch tables live in runtime.go.

// TriggerType names a hook point in the rules engine.
type TriggerType int

const (
	TriggerNone TriggerType = iota
	TriggerOnPlay
	TriggerOnPlayEvent
	TriggerOnAttack
	TriggerOnBlock
	TriggerOnKO
	TriggerTurnEnd
	TriggerActivateMain
	TriggerCounter
	TriggerLife     // revealed from Life
	TriggerConstant // pull-style: queried, never dispatched
)

func (t TriggerType) String() string {
	switch t {
	case TriggerOnPlay:
		return "ON_PLAY"
	case TriggerOnPlayEvent:
		return "ON_PLAY_EVENT"
	case TriggerOnAttack:
		return "ON_ATTACK"
	case TriggerOnBlock:
		return "ON_BLOCK"
	case TriggerOnKO:
		return "ON_KO"
	case TriggerTurnEnd:
		return "TURN_END"
	case TriggerActivateMain:
		return "ACTIVATE_MAIN"
	case TriggerCounter:
		return "COUNTER"
	case TriggerLife:
		return "TRIGGER"
	case TriggerConstant:
		return "CONSTANT"
	default:
		return "NONE"
	}
}

func (t TriggerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TriggerType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ON_PLAY":
		*t = TriggerOnPlay
	case "ON_PLAY_EVENT":
		*t = TriggerOnPlayEvent
	case "ON_ATTACK":
		*t = TriggerOnAttack
	case "ON_BLOCK":
		*t = TriggerOnBlock
	case "ON_KO":
		*t = TriggerOnKO
	case "TURN_END":
		*t = TriggerTurnEnd
	case "ACTIVATE_MAIN":
		*t = TriggerActivateMain
	case "COUNTER":
		*t = TriggerCounter
	case "TRIGGER":
		*t = TriggerLife
	case "CONSTANT":
		*t = TriggerConstant
	default:
		return fmt.Errorf("unknown trigger %q", string(text))
	}
	return nil
}

// Condition kinds. Unknown kinds evaluate to true and are logged, so a
// newer catalog does not brick an older server.
const (
	CondAttachedDon  = "ATTACHED_DON_AT_LEAST"
	CondRestedDon    = "RESTED_DON_AT_LEAST"
	CondLifeCount    = "LIFE_COUNT"
	CondRestriction  = "RESTRICTION_SET"
	CondMyTurn       = "MY_TURN"
	CondOpponentTurn = "OPPONENT_TURN"
	CondLeaderNumber = "LEADER_NUMBER"
	CondLeaderTrait  = "LEADER_TRAIT"
	CondSourceActive = "SOURCE_ACTIVE"
	CondOncePerTurn  = "ONCE_PER_TURN_UNUSED"
)

// Condition guards a script entry; all conditions must pass.
type Condition struct {
	Kind   string `yaml:"kind" json:"kind"`
	Amount int    `yaml:"amount,omitempty" json:"amount,omitempty"`
	Op     string `yaml:"op,omitempty" json:"op,omitempty"`         // "<", "<=", "=", ">=", ">"
	Target string `yaml:"target,omitempty" json:"target,omitempty"` // "self" or "opponent"
	Value  string `yaml:"value,omitempty" json:"value,omitempty"`   // leader number/trait, restriction key
	Key    string `yaml:"key,omitempty" json:"key,omitempty"`       // once-per-turn key
}

// Action kinds. Unknown kinds are no-ops and are logged.
const (
	ActAttachDon      = "ATTACH_DON"
	ActModifyPower    = "MODIFY_POWER"
	ActDrawCards      = "DRAW_CARDS"
	ActLifeToHand     = "LIFE_TO_HAND"
	ActKOCharacter    = "KO_CHARACTER"
	ActBounceToHand   = "BOUNCE_TO_HAND"
	ActGrantKeyword   = "GRANT_KEYWORD"
	ActRestSelf       = "REST_SELF"
	ActSetRestriction = "SET_RESTRICTION"
	ActAddAttackState = "ADD_ATTACK_STATE"
	ActAddFieldState  = "ADD_FIELD_STATE"
	ActReviveSelf     = "REVIVE_SELF"
	ActSetOncePerTurn = "SET_ONCE_PER_TURN"
	ActLog            = "LOG"
	ActConditional    = "CONDITIONAL_ACTION"

	ActPendingSelectTarget = "PENDING_SELECT_TARGET"
	ActPendingKOTarget     = "PENDING_KO_TARGET"
	ActPendingAttachDon    = "PENDING_ATTACH_DON"
	ActPendingSearch       = "PENDING_SEARCH"
	ActPendingSearchPlay   = "PENDING_SEARCH_PLAY"
	ActPendingPlayFromHand = "PENDING_PLAY_FROM_HAND"
	ActPendingDiscard      = "PENDING_DISCARD"
	ActPendingRecover      = "PENDING_RECOVER_FROM_TRASH"
)

// Attack-state flags for ADD_ATTACK_STATE.
const (
	AttackStateIgnoreBlocker = "ignore_blocker"
	AttackStateDoubleAttack  = "double_attack"
	AttackStateBanish        = "banish"
)

// TargetFilter narrows a candidate set.
type TargetFilter struct {
	Side          string   `yaml:"side,omitempty" json:"side,omitempty"` // "self", "opponent", "any"
	Types         []string `yaml:"types,omitempty" json:"types,omitempty"`
	Traits        []string `yaml:"traits,omitempty" json:"traits,omitempty"`
	MinCost       *int     `yaml:"min_cost,omitempty" json:"min_cost,omitempty"`
	MaxCost       *int     `yaml:"max_cost,omitempty" json:"max_cost,omitempty"`
	MinPower      *int     `yaml:"min_power,omitempty" json:"min_power,omitempty"`
	MaxPower      *int     `yaml:"max_power,omitempty" json:"max_power,omitempty"`
	Keyword       string   `yaml:"keyword,omitempty" json:"keyword,omitempty"`
	Numbers       []string `yaml:"numbers,omitempty" json:"numbers,omitempty"` // OR on card numbers
	ExcludeID     int      `yaml:"exclude_id,omitempty" json:"exclude_id,omitempty"`
	ExcludeNumber string   `yaml:"exclude_number,omitempty" json:"exclude_number,omitempty"`
	IncludeLeader bool     `yaml:"include_leader,omitempty" json:"include_leader,omitempty"`
}

// ScriptAction is one tagged action inside a script entry. The field
// set is the union over all kinds; each kind reads only its own.
type ScriptAction struct {
	Kind        string         `yaml:"kind" json:"kind"`
	Target      string         `yaml:"target,omitempty" json:"target,omitempty"`
	Amount      int            `yaml:"amount,omitempty" json:"amount,omitempty"`
	Scope       ExpiryScope    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Keyword     string         `yaml:"keyword,omitempty" json:"keyword,omitempty"`
	Restriction string         `yaml:"restriction,omitempty" json:"restriction,omitempty"`
	State       string         `yaml:"state,omitempty" json:"state,omitempty"`
	Key         string         `yaml:"key,omitempty" json:"key,omitempty"`
	Message     string         `yaml:"message,omitempty" json:"message,omitempty"`
	Optional    bool           `yaml:"optional,omitempty" json:"optional,omitempty"`
	Max         int            `yaml:"max,omitempty" json:"max,omitempty"`
	Count       int            `yaml:"count,omitempty" json:"count,omitempty"` // view-top-N
	Filter      *TargetFilter  `yaml:"filter,omitempty" json:"filter,omitempty"`
	Condition   *Condition     `yaml:"condition,omitempty" json:"condition,omitempty"`
	Actions     []ScriptAction `yaml:"actions,omitempty" json:"actions,omitempty"` // children / continuation
}

// ScriptEntry binds conditions and actions to one trigger.
type ScriptEntry struct {
	Trigger    TriggerType    `yaml:"trigger" json:"trigger"`
	Conditions []Condition    `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Actions    []ScriptAction `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// CardScript is every scripted behavior of one card number.
type CardScript struct {
	Number  string         `yaml:"number" json:"number"`
	Entries []*ScriptEntry `yaml:"entries" json:"entries"`
}

// EntriesFor returns the script entries bound to the given trigger.
func (cs *CardScript) EntriesFor(trig TriggerType) []*ScriptEntry {
	if cs == nil {
		return nil
	}
	var out []*ScriptEntry
	for _, e := range cs.Entries {
		if e.Trigger == trig {
			out = append(out, e)
		}
	}
	return out
}

// ScriptCatalog maps card numbers to their compiled scripts. Built once
// from the card-script source of truth.
type ScriptCatalog struct {
	scripts map[string]*CardScript
}

func NewScriptCatalog() *ScriptCatalog {
	return &ScriptCatalog{scripts: make(map[string]*CardScript)}
}

// Add registers (or replaces) a card's script.
func (sc *ScriptCatalog) Add(cs *CardScript) {
	sc.scripts[cs.Number] = cs
}

// Lookup returns the script for a card number, or nil.
func (sc *ScriptCatalog) Lookup(number string) *CardScript {
	if sc == nil {
		return nil
	}
	return sc.scripts[number]
}

// HasTrigger reports whether the card number has a Life-reveal Trigger
// script.
func (sc *ScriptCatalog) HasTrigger(number string) bool {
	return len(sc.Lookup(number).EntriesFor(TriggerLife)) > 0
}
