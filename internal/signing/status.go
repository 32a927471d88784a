// Package signing holds the signing-session lifecycle: the status enums for
// documents and signing requests, the transition rules between them, and the
// domain error taxonomy shared across services and handlers.
package signing

// Status is the lifecycle status of a document or signing request. Statuses
// are lowercase only and validated at every write boundary.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusSigned   Status = "signed"
	StatusReturned Status = "returned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSigned, StatusReturned:
		return true
	}
	return false
}

// Terminal reports whether s closes the signing session. Terminal sessions
// reject further signature and annotation writes.
func (s Status) Terminal() bool {
	return s == StatusSigned || s == StatusReturned
}

// Transition checks whether current may move to target. It returns nil when
// the transition is allowed and a distinct domain error otherwise, so callers
// can tell "already sent", "not yet sent" and "already completed" apart.
//
// Allowed moves: draft→sent (dispatch), sent→signed (multi-field flow),
// sent→returned (send-back flow). Reopening a session is a separate,
// deliberate action handled by Reopen.
func Transition(current, target Status) error {
	if !current.Valid() || !target.Valid() {
		return ErrInvalidInput
	}
	switch target {
	case StatusSent:
		switch current {
		case StatusDraft:
			return nil
		case StatusSent:
			return ErrAlreadySent
		default:
			return ErrAlreadyInTerminalState
		}
	case StatusSigned, StatusReturned:
		switch current {
		case StatusSent:
			return nil
		case StatusDraft:
			return ErrNotSent
		default:
			return ErrAlreadyInTerminalState
		}
	}
	return ErrInvalidInput
}

// Reopen checks whether a resend may reset current back to sent. A reopened
// session no longer guarantees that stored signatures reflect a closed,
// final round; clearing them is the caller's explicit responsibility.
func Reopen(current Status) error {
	switch current {
	case StatusSent, StatusSigned, StatusReturned:
		return nil
	case StatusDraft:
		return ErrNotSent
	}
	return ErrInvalidInput
}
