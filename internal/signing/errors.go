package signing

import "errors"

var (
	// ErrNotFound covers missing documents, signing requests and
	// signature entries looked up by id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers missing tokens, malformed token decodes and
	// requests lacking required position/data fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyInTerminalState blocks mutation once a signing session
	// reached signed or returned.
	ErrAlreadyInTerminalState = errors.New("signing session already completed")

	// ErrNotYetSigned blocks the final-PDF download before the session
	// reached a terminal status.
	ErrNotYetSigned = errors.New("document not yet signed")

	// ErrAlreadySent and ErrNotSent distinguish the two non-terminal ways
	// a status transition can be blocked, so callers can message them
	// separately.
	ErrAlreadySent = errors.New("signing request already sent")
	ErrNotSent     = errors.New("signing request not yet sent")

	// ErrConflict reports an exhausted optimistic-concurrency retry on a
	// signature row write.
	ErrConflict = errors.New("concurrent update conflict")
)
