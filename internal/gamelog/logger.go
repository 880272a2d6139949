package gamelog

import (
	"fmt"
	"io"
	"strings"
)

// DefaultCapacity is the ring size used when none is given.
const DefaultCapacity = 256

// Logger is the interface for recording match events.
type Logger interface {
	Log(event GameEvent)
	Events() []GameEvent
}

// --- RingLogger: bounded in-memory event log ---

// RingLogger keeps the most recent events up to a fixed capacity.
type RingLogger struct {
	events []GameEvent
	cap    int
	seq    int
}

func NewRingLogger(capacity int) *RingLogger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingLogger{cap: capacity}
}

func (l *RingLogger) Log(event GameEvent) {
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
}

func (l *RingLogger) Events() []GameEvent {
	return l.events
}

// Recent returns up to n of the most recent events, oldest first.
func (l *RingLogger) Recent(n int) []GameEvent {
	if n <= 0 || n >= len(l.events) {
		return l.events
	}
	return l.events[len(l.events)-n:]
}

// EventsOfType returns all retained events matching the given type.
func (l *RingLogger) EventsOfType(t EventType) []GameEvent {
	var result []GameEvent
	for _, e := range l.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// LastEvent returns the most recent event, or a zero event if none.
func (l *RingLogger) LastEvent() GameEvent {
	if len(l.events) == 0 {
		return GameEvent{}
	}
	return l.events[len(l.events)-1]
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

type TextLogger struct {
	RingLogger
	w io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{RingLogger: RingLogger{cap: DefaultCapacity}, w: w}
}

func (l *TextLogger) Log(event GameEvent) {
	l.RingLogger.Log(event)
	fmt.Fprintln(l.w, FormatEvent(event))
}

// --- Formatting ---

// playerName returns "P1" or "P2" for display.
func playerName(p int) string {
	return fmt.Sprintf("P%d", p+1)
}

// FormatEvent formats a single event as a human-readable line.
func FormatEvent(e GameEvent) string {
	phase := e.Phase
	for len(phase) < 12 {
		phase += " "
	}
	return fmt.Sprintf("T%-2d %s| %s", e.Turn, phase, e.Details)
}

// FormatAll formats all events as a multi-line string.
func FormatAll(events []GameEvent) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(FormatEvent(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Helper constructors for common events ---

func NewTurnEvent(turn, player int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Player:  player,
		Type:    EventNewTurn,
		Details: fmt.Sprintf("=== Turn %d (%s) ===", turn, playerName(player)),
	}
}

func NewPhaseChangeEvent(turn int, phase string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Type:    EventPhaseChange,
		Details: fmt.Sprintf("Phase → %s", phase),
	}
}

func NewDrawEvent(turn int, phase string, player, count int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventDraw,
		Details: fmt.Sprintf("%s draws %d", playerName(player), count),
	}
}

func NewDonDealtEvent(turn int, player, count int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "DON!!",
		Player:  player,
		Type:    EventDonDealt,
		Details: fmt.Sprintf("%s gains %d DON!!", playerName(player), count),
	}
}

func NewPlayEvent(turn int, phase string, player int, t EventType, cardName string, cost int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    t,
		Card:    cardName,
		Details: fmt.Sprintf("%s plays %s (cost %d)", playerName(player), cardName, cost),
	}
}

func NewAttackDeclareEvent(turn int, player int, attacker, target string, atkPower, tgtPower int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "Battle",
		Player:  player,
		Type:    EventAttackDeclare,
		Card:    attacker,
		Details: fmt.Sprintf("%s attacks: %s (%d) → %s (%d)", playerName(player), attacker, atkPower, target, tgtPower),
	}
}

func NewBlockDeclareEvent(turn int, player int, blocker string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "Battle",
		Player:  player,
		Type:    EventBlockDeclare,
		Card:    blocker,
		Details: fmt.Sprintf("%s blocks with %s", playerName(player), blocker),
	}
}

func NewDamageCalcEvent(turn int, player int, details string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "Battle",
		Player:  player,
		Type:    EventDamageCalc,
		Details: details,
	}
}

func NewKOEvent(turn int, phase string, player int, cardName string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventKO,
		Card:    cardName,
		Details: fmt.Sprintf("%s's %s is KO'd", playerName(player), cardName),
	}
}

func NewLifeRevealEvent(turn int, player int, cardName string, remaining int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "Battle",
		Player:  player,
		Type:    EventLifeReveal,
		Card:    cardName,
		Details: fmt.Sprintf("%s reveals Life: %s (%d left)", playerName(player), cardName, remaining),
	}
}

func NewWinEvent(turn int, player int, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Player:  player,
		Type:    EventWin,
		Details: fmt.Sprintf("%s wins — %s", playerName(player), reason),
	}
}

func NewScriptEvent(turn int, player int, cardName, details string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Player:  player,
		Type:    EventScript,
		Card:    cardName,
		Details: details,
	}
}
