package game

import "fmt"

// ErrorKind classifies why an intent was rejected.
type ErrorKind int

const (
	ErrProtocol ErrorKind = iota
	ErrActor
	ErrPhase
	ErrResource
	ErrZone
	ErrTarget
	ErrRestriction
	ErrSelection
	ErrScript
	ErrCollaborator
	ErrFinished
)

func (k ErrorKind) String() string {
	switch k {
	case ErrProtocol:
		return "protocol"
	case ErrActor:
		return "actor"
	case ErrPhase:
		return "phase"
	case ErrResource:
		return "resource"
	case ErrZone:
		return "zone"
	case ErrTarget:
		return "target"
	case ErrRestriction:
		return "restriction"
	case ErrSelection:
		return "selection"
	case ErrScript:
		return "script"
	case ErrCollaborator:
		return "collaborator"
	case ErrFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RuleError is returned when an intent is rejected. The match state is
// unchanged whenever a RuleError is returned.
type RuleError struct {
	Kind    ErrorKind
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func ruleErr(kind ErrorKind, format string, args ...any) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsRuleError extracts a RuleError from err, if it is one.
func IsRuleError(err error) (*RuleError, bool) {
	re, ok := err.(*RuleError)
	return re, ok
}
