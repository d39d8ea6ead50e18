// Package candidate implements the per-(slot, proposer) quorum accumulator
// described in spec.md §3 and §4.2: it tracks incoming approve/vote
// evidence and the actions this node has itself emitted for one specific
// Block, and exposes the total order over Candidates used to pick the
// best one for a slot.
package candidate

import (
	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/message"
)

// Action is one of the four emissions a Candidate gates to at most once
// (spec.md §4.2: "Every (once) emission is gated by the corresponding
// element of actions_taken").
type Action int

const (
	ActionApprove Action = iota
	ActionApproveStatusUpdate
	ActionVote
	ActionVoteStatusUpdate
	numActions
)

// Candidate accumulates quorum evidence for one specific Block. Its
// evidence maps and ActionsTaken set only ever grow until Forged becomes
// true (spec.md §3 invariant: "A Candidate never regresses").
type Candidate struct {
	Block block.Block

	// MessagesApprove maps a sender NodeID to the APPROVE message received
	// from that node; at most one per sender.
	MessagesApprove message.Evidence

	// ApproveStatusUpdates is the set of node ids an APPROVE_STATUS_UPDATE
	// has been received from.
	ApproveStatusUpdates map[block.NodeID]struct{}

	// MessagesVote maps a sender NodeID to the evidence that node used to
	// justify its vote.
	MessagesVote message.Evidence

	// VoteStatusUpdates is the set of node ids a VOTE_STATUS_UPDATE has
	// been received from.
	VoteStatusUpdates map[block.NodeID]struct{}

	// ActionsTaken records which of the four emissions this node has
	// itself broadcast for this Candidate.
	ActionsTaken map[Action]struct{}

	// Forged is the sink state: once true, this Candidate's Block has been
	// appended to the local chain. The Add and Merge methods do not check
	// it; a Node stops feeding evidence here because later messages for
	// this slot reference a slot below its chain length.
	Forged bool
}

// New creates an empty Candidate for blk.
func New(blk block.Block) *Candidate {
	return &Candidate{
		Block:                blk,
		MessagesApprove:      message.Evidence{},
		ApproveStatusUpdates: map[block.NodeID]struct{}{},
		MessagesVote:         message.Evidence{},
		VoteStatusUpdates:    map[block.NodeID]struct{}{},
		ActionsTaken:         map[Action]struct{}{},
	}
}

// HasTaken reports whether this node has already emitted action for this
// Candidate.
func (c *Candidate) HasTaken(a Action) bool {
	_, ok := c.ActionsTaken[a]
	return ok
}

// MarkTaken records that action has been emitted, so later calls to
// HasTaken gate against a repeat broadcast (spec.md §4.2).
func (c *Candidate) MarkTaken(a Action) {
	c.ActionsTaken[a] = struct{}{}
}

// AddApprove records an APPROVE from sender, unless one is already on file
// for that sender (at most one per node, spec.md §3).
func (c *Candidate) AddApprove(m message.Message) {
	if _, exists := c.MessagesApprove[m.Sender]; exists {
		return
	}
	c.MessagesApprove[m.Sender] = m
}

// AddApproveStatusUpdate records that sender has sent an
// APPROVE_STATUS_UPDATE.
func (c *Candidate) AddApproveStatusUpdate(sender block.NodeID) {
	c.ApproveStatusUpdates[sender] = struct{}{}
}

// AddVote records the evidence sender used to justify its vote.
func (c *Candidate) AddVote(sender block.NodeID, m message.Message) {
	c.MessagesVote[sender] = m
}

// MergeVoteEvidence folds additional per-node vote evidence (received via a
// VOTE_STATUS_UPDATE) into MessagesVote without
// overwriting entries already present for a given sender.
func (c *Candidate) MergeVoteEvidence(evidence message.Evidence) {
	for sender, m := range evidence {
		if _, exists := c.MessagesVote[sender]; !exists {
			c.MessagesVote[sender] = m
		}
	}
}

// MergeApproveEvidence folds additional per-node approve evidence
// (received via an APPROVE_STATUS_UPDATE) into MessagesApprove without
// overwriting entries already present for a given sender.
func (c *Candidate) MergeApproveEvidence(evidence message.Evidence) {
	for sender, m := range evidence {
		if _, exists := c.MessagesApprove[sender]; !exists {
			c.MessagesApprove[sender] = m
		}
	}
}

// AddVoteStatusUpdate records that sender has sent a VOTE_STATUS_UPDATE.
func (c *Candidate) AddVoteStatusUpdate(sender block.NodeID) {
	c.VoteStatusUpdates[sender] = struct{}{}
}

// Forge marks the Candidate as forged, the sink state after which
// active_candidate is cleared by the caller (spec.md §4.5). It does not
// lock the evidence maps; see the Forged field.
func (c *Candidate) Forge() {
	c.Forged = true
}

// Clone returns a deep copy of c: every evidence map and the actions-taken
// set are copied element by element, so mutating the clone (or the
// original) afterward is invisible to the other side. Used wherever a
// Candidate crosses a Node boundary — a CHAIN_UPDATE's candidate snapshot
// in particular — so a recipient's quorum evidence is never a live alias
// of a peer's internal state (spec.md §4.8, §9).
func (c *Candidate) Clone() *Candidate {
	clone := &Candidate{
		Block:                c.Block,
		MessagesApprove:      c.MessagesApprove.Clone(),
		ApproveStatusUpdates: make(map[block.NodeID]struct{}, len(c.ApproveStatusUpdates)),
		MessagesVote:         c.MessagesVote.Clone(),
		VoteStatusUpdates:    make(map[block.NodeID]struct{}, len(c.VoteStatusUpdates)),
		ActionsTaken:         make(map[Action]struct{}, len(c.ActionsTaken)),
		Forged:               c.Forged,
	}
	for id := range c.ApproveStatusUpdates {
		clone.ApproveStatusUpdates[id] = struct{}{}
	}
	for id := range c.VoteStatusUpdates {
		clone.VoteStatusUpdates[id] = struct{}{}
	}
	for a := range c.ActionsTaken {
		clone.ActionsTaken[a] = struct{}{}
	}
	return clone
}

// GreaterThan implements the strict total order of spec.md §3: forged
// candidates sort above non-forged ones; within the same forged-flag,
// compare by |vote_status_updates|, then |messages_vote|, then
// |approve_status_updates|, then |messages_approve|, all descending.
func (c *Candidate) GreaterThan(o *Candidate) bool {
	if c.Forged != o.Forged {
		return c.Forged
	}
	if d := len(c.VoteStatusUpdates) - len(o.VoteStatusUpdates); d != 0 {
		return d > 0
	}
	if d := len(c.MessagesVote) - len(o.MessagesVote); d != 0 {
		return d > 0
	}
	if d := len(c.ApproveStatusUpdates) - len(o.ApproveStatusUpdates); d != 0 {
		return d > 0
	}
	if d := len(c.MessagesApprove) - len(o.MessagesApprove); d != 0 {
		return d > 0
	}
	return false
}
