// Package quorum holds the four evidence-count predicates a Node tests
// against its active Candidate to decide when to advance to the next
// protocol round (spec.md §4.1). Every predicate uses the same strict
// majority of the full node set, `> N/2` — the spec's source material was
// inconsistent about enough_approves using `(N-1)/2` instead, and freezes
// on the stricter, uniform threshold.
package quorum

import "github.com/tolelom/qvote/candidate"

// Majority reports whether count is a strict majority of n, the total
// number of nodes in the simulation.
func Majority(count, n int) bool {
	return 2*count > n
}

// EnoughApproves reports whether c has collected a strict majority of
// APPROVE messages.
func EnoughApproves(c *candidate.Candidate, n int) bool {
	return Majority(len(c.MessagesApprove), n)
}

// EnoughApproveStatusUpdates reports whether c has collected a strict
// majority of APPROVE_STATUS_UPDATE senders.
func EnoughApproveStatusUpdates(c *candidate.Candidate, n int) bool {
	return Majority(len(c.ApproveStatusUpdates), n)
}

// EnoughVotes reports whether c has collected a strict majority of VOTE
// evidence entries.
func EnoughVotes(c *candidate.Candidate, n int) bool {
	return Majority(len(c.MessagesVote), n)
}

// EnoughVoteStatusUpdates reports whether c has collected a strict
// majority of VOTE_STATUS_UPDATE senders — the predicate that triggers
// forging (spec.md §4.5).
func EnoughVoteStatusUpdates(c *candidate.Candidate, n int) bool {
	return Majority(len(c.VoteStatusUpdates), n)
}

// EvidenceMeetsQuorum reports whether an externally supplied evidence set
// (attached to an APPROVE_STATUS_UPDATE or VOTE_STATUS_UPDATE message) is
// itself majority-sized. Recipients apply this before trusting a peer's
// status-update evidence, per spec.md §4.4's InsufficientEvidence check.
func EvidenceMeetsQuorum(evidenceSize, n int) bool {
	return Majority(evidenceSize, n)
}
