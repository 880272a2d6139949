package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/grandline/duelserver/internal/game"
)

// Client intent types. Lobby intents are handled by the gateway itself;
// everything else is routed into the match engine under the room lock.
const (
	MsgHello      = "hello"
	MsgListRooms  = "list_rooms"
	MsgCreateRoom = "create_room"
	MsgJoinRoom   = "join_room"
	MsgReady      = "ready"
	MsgLeave      = "leave"
	MsgQueue      = "queue"
	MsgLeaveQueue = "leave_queue"

	MsgEndTurn         = "end_turn"
	MsgPlayCharacter   = "play_character"
	MsgPlayEvent       = "play_event"
	MsgPlayStage       = "play_stage"
	MsgAttachDon       = "attach_don"
	MsgDetachDon       = "detach_don"
	MsgActivateMain    = "activate_main"
	MsgDeclareAttack   = "declare_attack"
	MsgDeclareBlocker  = "declare_blocker"
	MsgSkipBlock       = "skip_block"
	MsgStageCounter    = "stage_counter"
	MsgUnstageCounter  = "unstage_counter"
	MsgAddCounterPower = "add_counter_power"
	MsgConfirmCounter  = "confirm_counter"
	MsgSkipCounter     = "skip_counter"
	MsgResolvePending  = "resolve_pending"
	MsgSkipPending     = "skip_pending"
	MsgRespondTrigger  = "respond_trigger"
	MsgForfeit         = "forfeit"

	// Semi-manual adjustments, mirrored one-to-one on the engine's
	// utility operations.
	MsgDrawCards      = "draw"
	MsgKOTarget       = "ko_target"
	MsgBounceToHand   = "bounce_to_hand"
	MsgBounceToBottom = "bounce_to_bottom"
	MsgPlayFromTrash  = "play_from_trash"
	MsgTrashFromHand  = "trash_from_hand"
	MsgRestTarget     = "rest_target"
	MsgActivateTarget = "activate_target"
	MsgMoveDon        = "move_don"
	MsgModifyPower    = "modify_power"
	MsgLifeToHand     = "life_to_hand"
	MsgTrashToLife    = "trash_to_life"
	MsgViewTopDeck    = "view_top_deck"
)

// ClientMessage is the single flat envelope for every client intent.
// Which fields matter depends on Type; unused fields are ignored.
type ClientMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Deck     string `json:"deck,omitempty"`

	CardID   int    `json:"card_id,omitempty"`
	Attacker string `json:"attacker,omitempty"`
	Target   string `json:"target,omitempty"`
	Side     string `json:"side,omitempty"` // "opponent" aims Target at the other side
	Count    int    `json:"count,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Index    int    `json:"index,omitempty"`
	IDs      []int  `json:"ids,omitempty"`
	Activate bool   `json:"activate,omitempty"`
}

// Server reply types.
const (
	ReplyHello  = "hello"
	ReplyRooms  = "rooms"
	ReplyRoom   = "room"
	ReplyQueued = "queued"
	ReplyState  = "state"
	ReplyPeek   = "peek"
	ReplyError  = "error"
)

// ServerMessage is the single envelope for every server-to-client push.
type ServerMessage struct {
	Type     string        `json:"type"`
	Identity string        `json:"identity,omitempty"`
	Rooms    []RoomSummary `json:"rooms,omitempty"`
	Room     *RoomView     `json:"room,omitempty"`
	State    *StateView    `json:"state,omitempty"`
	Cards    []CardView    `json:"cards,omitempty"`
	Error    *ErrorView    `json:"error,omitempty"`
}

// RoomSummary is one row of the public room listing.
type RoomSummary struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Players []string  `json:"players"`
}

// RoomView describes a room before (or without) a running match.
type RoomView struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Participants []ParticipantView `json:"participants"`
}

// ParticipantView is one seated player as shown to the room.
type ParticipantView struct {
	Name      string `json:"name"`
	You       bool   `json:"you"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// ErrorView carries a rejected intent back to its sender only.
type ErrorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorView classifies an error for the wire: rule errors keep their
// engine kind, everything else is a lobby-level rejection.
func errorView(err error) *ErrorView {
	var re *game.RuleError
	if errors.As(err, &re) {
		return &ErrorView{Kind: re.Kind.String(), Message: re.Message}
	}
	return &ErrorView{Kind: "room", Message: err.Error()}
}

// unitRef builds the field-unit reference a targeting intent names:
// the Target token resolved on the sender's side, or the opponent's
// when Side says so.
func unitRef(seat int, m *ClientMessage) (game.UnitRef, error) {
	player := seat
	if m.Side == "opponent" {
		player = 1 - seat
	}
	if m.Target == game.RefLeader {
		return game.UnitRef{Player: player, IsLeader: true}, nil
	}
	id, err := strconv.Atoi(m.Target)
	if err != nil {
		return game.UnitRef{}, fmt.Errorf("bad unit token %q", m.Target)
	}
	return game.UnitRef{Player: player, CardID: id}, nil
}

// applyIntent routes a match intent to the engine operation for the
// given seat. A non-nil reply goes to the sender alone; every other
// success is broadcast as fresh state views. Callers hold the room
// lock.
func applyIntent(e *game.Engine, seat int, m *ClientMessage) (*ServerMessage, error) {
	switch m.Type {
	case MsgEndTurn:
		return nil, e.EndTurn(seat)
	case MsgPlayCharacter:
		return nil, e.PlayCharacter(seat, m.CardID)
	case MsgPlayEvent:
		return nil, e.PlayEvent(seat, m.CardID)
	case MsgPlayStage:
		return nil, e.PlayStage(seat, m.CardID)
	case MsgAttachDon:
		return nil, e.AttachDon(seat, m.Target, m.Count)
	case MsgDetachDon:
		return nil, e.DetachDon(seat, m.Target, m.Count)
	case MsgActivateMain:
		return nil, e.ActivateMain(seat, m.Target)
	case MsgDeclareAttack:
		return nil, e.DeclareAttack(seat, m.Attacker, m.Target)
	case MsgDeclareBlocker:
		return nil, e.DeclareBlocker(seat, m.CardID)
	case MsgSkipBlock:
		return nil, e.SkipBlock(seat)
	case MsgStageCounter:
		return nil, e.StageCounter(seat, m.CardID)
	case MsgUnstageCounter:
		return nil, e.UnstageCounter(seat, m.Index)
	case MsgAddCounterPower:
		return nil, e.AddCounterPower(seat, m.Amount)
	case MsgConfirmCounter:
		return nil, e.ConfirmCounter(seat)
	case MsgSkipCounter:
		return nil, e.SkipCounter(seat)
	case MsgResolvePending:
		return nil, e.ResolvePending(seat, m.IDs)
	case MsgSkipPending:
		return nil, e.SkipPending(seat)
	case MsgRespondTrigger:
		return nil, e.RespondTrigger(seat, m.Activate)
	case MsgForfeit:
		return nil, e.Forfeit(seat)

	case MsgDrawCards:
		return nil, e.DrawCards(seat, m.Count)
	case MsgKOTarget:
		ref, err := unitRef(seat, m)
		if err != nil {
			return nil, err
		}
		return nil, e.KOTarget(seat, ref)
	case MsgBounceToHand:
		ref, err := unitRef(seat, m)
		if err != nil {
			return nil, err
		}
		return nil, e.BounceToHand(seat, ref)
	case MsgBounceToBottom:
		ref, err := unitRef(seat, m)
		if err != nil {
			return nil, err
		}
		return nil, e.BounceToBottom(seat, ref)
	case MsgPlayFromTrash:
		return nil, e.PlayFromTrash(seat, m.CardID)
	case MsgTrashFromHand:
		return nil, e.TrashFromHand(seat, m.CardID)
	case MsgRestTarget:
		return nil, e.RestTarget(seat, m.Target)
	case MsgActivateTarget:
		return nil, e.ActivateTarget(seat, m.Target)
	case MsgMoveDon:
		return nil, e.MoveDon(seat, m.Count)
	case MsgModifyPower:
		ref, err := unitRef(seat, m)
		if err != nil {
			return nil, err
		}
		return nil, e.ModifyPower(seat, ref, m.Amount)
	case MsgLifeToHand:
		return nil, e.LifeToHand(seat)
	case MsgTrashToLife:
		return nil, e.TrashToLife(seat, m.CardID)
	case MsgViewTopDeck:
		cards, err := e.ViewTopDeck(seat, m.Count)
		if err != nil {
			return nil, err
		}
		return &ServerMessage{Type: ReplyPeek, Cards: cardViews(cards)}, nil

	default:
		return nil, fmt.Errorf("unknown intent %q", m.Type)
	}
}
