package quorum

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/candidate"
	"github.com/tolelom/qvote/message"
)

func TestMajorityBoundary(t *testing.T) {
	require.False(t, Majority(4, 8), "exactly N/2 must not be a majority")
	require.True(t, Majority(5, 8), "one more than N/2 must be a majority")
	require.True(t, Majority(1, 1), "a single node is its own majority")
}

func TestEnoughApprovesUsesStrictMajorityUniformly(t *testing.T) {
	blk := block.New(1, 0, nil, 0)
	c := candidate.New(blk)
	n := 9

	for i := block.NodeID(0); i < 4; i++ {
		c.AddApprove(message.NewApprove(i, blk))
	}
	require.False(t, EnoughApproves(c, n), "4 of 9 approves must not satisfy enough_approves")

	c.AddApprove(message.NewApprove(4, blk))
	require.True(t, EnoughApproves(c, n), "5 of 9 approves must satisfy enough_approves")
}

func TestEnoughApproveStatusUpdates(t *testing.T) {
	c := candidate.New(block.NewBlank(0, 0))
	n := 5
	c.AddApproveStatusUpdate(0)
	c.AddApproveStatusUpdate(1)
	require.False(t, EnoughApproveStatusUpdates(c, n))
	c.AddApproveStatusUpdate(2)
	require.True(t, EnoughApproveStatusUpdates(c, n))
}

func TestEnoughVotesAndVoteStatusUpdates(t *testing.T) {
	blk := block.New(2, 1, nil, 0)
	c := candidate.New(blk)
	n := 3

	c.AddVote(0, message.NewVote(0, blk, message.Evidence{}))
	require.False(t, EnoughVotes(c, n))
	c.AddVote(1, message.NewVote(1, blk, message.Evidence{}))
	require.True(t, EnoughVotes(c, n))

	require.False(t, EnoughVoteStatusUpdates(c, n))
	c.AddVoteStatusUpdate(0)
	c.AddVoteStatusUpdate(1)
	require.True(t, EnoughVoteStatusUpdates(c, n))
}

func TestEvidenceMeetsQuorumRejectsInsufficientEvidence(t *testing.T) {
	// spec.md scenario 5: N=5, a forged status update carries only 2
	// entries of evidence, which must fail the quorum check.
	require.False(t, EvidenceMeetsQuorum(2, 5))
	require.True(t, EvidenceMeetsQuorum(3, 5))
}
