package node

import "errors"

// Sentinel errors returned by a Node's message-handling pipeline
// (spec.md §7). All but ErrInvalidChain are logged and discarded by the
// caller; ErrInvalidChain is fatal and only ever returned from New.
var (
	// ErrMalformedMessage marks a message whose type is unknown or whose
	// referenced block fails the proposer rule.
	ErrMalformedMessage = errors.New("node: malformed message")

	// ErrInsufficientEvidence marks a status-update message whose attached
	// evidence does not meet the matching quorum.
	ErrInsufficientEvidence = errors.New("node: insufficient evidence")

	// ErrConflictingBlock marks a status-update whose evidence disagrees
	// with the local active Candidate's block at the same slot.
	ErrConflictingBlock = errors.New("node: conflicting block")

	// ErrNotReady marks a message referencing a slot more than one past
	// next_slot (a message for next_slot+1 is buffered instead).
	ErrNotReady = errors.New("node: not ready for future slot")

	// ErrInvalidChain marks an initial chain that violates slot density or
	// the proposer rule.
	ErrInvalidChain = errors.New("node: invalid chain")
)
