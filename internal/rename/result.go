package rename

import "fmt"

type Outcome int

const (
	// OutcomeUnchanged covers a cancelled prompt or an unchanged name.
	OutcomeUnchanged Outcome = iota
	OutcomeRenamed
	// OutcomeRejected means validation refused the name; nothing changed.
	OutcomeRejected
	// OutcomePersistFailed means the database refused the change; nothing
	// changed.
	OutcomePersistFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRenamed:
		return "renamed"
	case OutcomeRejected:
		return "rejected"
	case OutcomePersistFailed:
		return "persist failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reason qualifies OutcomeRejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonReserved
	ReasonInvalid
	ReasonLocalInUse
	ReasonGlobalInUse
	ReasonUnresolved
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonReserved:
		return "reserved word"
	case ReasonInvalid:
		return "not an identifier"
	case ReasonLocalInUse:
		return "already used by another local"
	case ReasonGlobalInUse:
		return "already used by a global name"
	case ReasonUnresolved:
		return "no symbol with that name"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Result describes one rename attempt.
type Result struct {
	Outcome Outcome
	Reason  Reason
	From    string
	To      string
	Err     error
}

// Message is a one-line summary for the status line.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeRenamed:
		return fmt.Sprintf("renamed %s to %s", r.From, r.To)
	case OutcomeRejected:
		if r.To == "" {
			return fmt.Sprintf("cannot rename %s: %s", r.From, r.Reason)
		}
		return fmt.Sprintf("cannot rename %s to %s: %s", r.From, r.To, r.Reason)
	case OutcomePersistFailed:
		return fmt.Sprintf("rename %s failed: %v", r.From, r.Err)
	default:
		return ""
	}
}
