package gamelog

// EventType enumerates all observable match events.
type EventType int

const (
	EventNewTurn EventType = iota
	EventPhaseChange
	EventDraw
	EventDonDealt
	EventPlayCharacter
	EventPlayEvent
	EventPlayStage
	EventAttachDon
	EventDetachDon
	EventActivateMain
	EventAttackDeclare
	EventBlockDeclare
	EventCounterStage
	EventCounterUnstage
	EventCounterConfirm
	EventCounterSkip
	EventDamageCalc
	EventLifeReveal
	EventLifeBanish
	EventTriggerPrompt
	EventTriggerResolve
	EventKO
	EventBounce
	EventRevive
	EventPowerMod
	EventKeywordGrant
	EventRestriction
	EventPendingOpen
	EventPendingResolve
	EventPendingSkip
	EventScript
	EventRest
	EventDiscard
	EventRecover
	EventLifeToHand
	EventTrashToLife
	EventForfeit
	EventWin
)

func (e EventType) String() string {
	switch e {
	case EventNewTurn:
		return "NewTurn"
	case EventPhaseChange:
		return "PhaseChange"
	case EventDraw:
		return "Draw"
	case EventDonDealt:
		return "DonDealt"
	case EventPlayCharacter:
		return "PlayCharacter"
	case EventPlayEvent:
		return "PlayEvent"
	case EventPlayStage:
		return "PlayStage"
	case EventAttachDon:
		return "AttachDon"
	case EventDetachDon:
		return "DetachDon"
	case EventActivateMain:
		return "ActivateMain"
	case EventAttackDeclare:
		return "AttackDeclare"
	case EventBlockDeclare:
		return "BlockDeclare"
	case EventCounterStage:
		return "CounterStage"
	case EventCounterUnstage:
		return "CounterUnstage"
	case EventCounterConfirm:
		return "CounterConfirm"
	case EventCounterSkip:
		return "CounterSkip"
	case EventDamageCalc:
		return "DamageCalc"
	case EventLifeReveal:
		return "LifeReveal"
	case EventLifeBanish:
		return "LifeBanish"
	case EventTriggerPrompt:
		return "TriggerPrompt"
	case EventTriggerResolve:
		return "TriggerResolve"
	case EventKO:
		return "KO"
	case EventBounce:
		return "Bounce"
	case EventRevive:
		return "Revive"
	case EventPowerMod:
		return "PowerMod"
	case EventKeywordGrant:
		return "KeywordGrant"
	case EventRestriction:
		return "Restriction"
	case EventPendingOpen:
		return "PendingOpen"
	case EventPendingResolve:
		return "PendingResolve"
	case EventPendingSkip:
		return "PendingSkip"
	case EventScript:
		return "Script"
	case EventRest:
		return "Rest"
	case EventDiscard:
		return "Discard"
	case EventRecover:
		return "Recover"
	case EventLifeToHand:
		return "LifeToHand"
	case EventTrashToLife:
		return "TrashToLife"
	case EventForfeit:
		return "Forfeit"
	case EventWin:
		return "Win"
	default:
		return "Unknown"
	}
}

// GameEvent represents a single observable event in a match.
type GameEvent struct {
	Seq     int       `json:"seq"`
	Turn    int       `json:"turn"`
	Phase   string    `json:"phase"`
	Player  int       `json:"player"`
	Type    EventType `json:"type"`
	Card    string    `json:"card,omitempty"`
	Details string    `json:"details"`
}
