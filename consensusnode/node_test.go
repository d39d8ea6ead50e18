package node

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/candidate"
	"github.com/tolelom/qvote/message"
	"github.com/tolelom/qvote/transport"
)

func newTestCluster(t *testing.T, n int, cfg Config) ([]*Node, *transport.Transport) {
	t.Helper()
	tr := transport.New(0, rand.New(rand.NewSource(1)))
	nodes := make([]*Node, n)
	for i := 0; i < n; i++ {
		tr.Register(block.NodeID(i), transport.NodeRecord{Speed: 1})
		nd, err := New(block.NodeID(i), n, nil, cfg, tr, nil)
		require.NoError(t, err)
		nodes[i] = nd
	}
	return nodes, tr
}

// runUntilSlotForged drives every live node's Run loop in round-robin
// fashion for a bounded number of ticks, delivering due envelopes and
// otherwise ticking idle nodes — a miniature version of the Driver's own
// loop (spec.md §4.9), scoped down for unit testing a handful of nodes.
// Nodes listed in frozen are never run; envelopes addressed to them are
// dropped, modelling a node that has stopped responding.
func runUntilSlotForged(nodes []*Node, frozen map[block.NodeID]bool, tr *transport.Transport, maxTicks int64, target block.SlotID) bool {
	live := map[block.NodeID]*Node{}
	for _, nd := range nodes {
		if !frozen[nd.ID()] {
			live[nd.ID()] = nd
		}
	}
	for tick := int64(0); tick < maxTicks; tick++ {
		due := tr.Receive(tick)
		delivered := map[block.NodeID]bool{}
		for _, env := range due {
			if nd, ok := live[env.Recipient]; ok {
				nd.Run(tick, &env.Message)
				delivered[env.Recipient] = true
			}
		}
		for id, nd := range live {
			if !delivered[id] {
				nd.Run(tick, nil)
			}
		}
		allForged := true
		for _, nd := range live {
			if block.SlotID(len(nd.Chain())) <= target {
				allForged = false
				break
			}
		}
		if allForged {
			return true
		}
	}
	return false
}

func TestThreeNodeLosslessForgesSlotZero(t *testing.T) {
	nodes, tr := newTestCluster(t, 3, Config{BlankBlockTimeout: 1000, ChainUpdateTimeout: 1000})
	ok := runUntilSlotForged(nodes, nil, tr, 200, 0)
	require.True(t, ok, "all three nodes should forge slot 0 within 200 ticks")

	want := nodes[0].Chain()[0]
	for _, nd := range nodes {
		require.Len(t, nd.Chain(), 1)
		require.True(t, nd.Chain()[0].Equal(want), "every node must forge the same block at slot 0")
	}
	require.Equal(t, block.NodeID(0), want.Proposer, "slot 0's proposer must be node 0")
}

func TestInvalidChainRejectedAtConstruction(t *testing.T) {
	tr := transport.New(0, rand.New(rand.NewSource(1)))
	tr.Register(0, transport.NodeRecord{})
	bad := []block.Block{block.New(1, 0, nil, 0)} // slot 1 at index 0: density violation
	_, err := New(0, 1, bad, Config{}, tr, nil)
	require.ErrorIs(t, err, ErrInvalidChain)
}

func TestMalformedProposerDiscarded(t *testing.T) {
	nodes, _ := newTestCluster(t, 3, Config{BlankBlockTimeout: 1000, ChainUpdateTimeout: 1000})
	// node 1 claims to propose slot 0, which belongs to node 0.
	bad := message.NewCommit(1, block.New(0, 1, nil, 0))
	nodes[0].Run(0, &bad)
	require.Empty(t, nodes[0].Chain(), "a malformed proposer claim must be discarded, not acted on")
}

func TestInsufficientEvidenceDoesNotEmitVote(t *testing.T) {
	nodes, _ := newTestCluster(t, 5, Config{BlankBlockTimeout: 1000, ChainUpdateTimeout: 1000})
	blk := block.New(0, 0, nil, 0)
	commit := message.NewCommit(0, blk)
	nodes[1].Run(0, &commit) // node 1 registers the candidate and approves it

	forged := message.NewApproveStatusUpdate(2, blk, message.Evidence{
		0: message.NewApprove(0, blk),
		3: message.NewApprove(3, blk),
	}) // 2 of 5 is not a majority
	nodes[1].Run(1, &forged)

	require.Empty(t, nodes[1].Chain())
	require.False(t, nodes[1].active.HasTaken(candidate.ActionVote), "an under-quorum status update must not trigger a VOTE")
}

func TestBlankBlockElectedAfterTimeout(t *testing.T) {
	// Node 1 is slot 1's proposer but never commits; nodes 0 and 2 must
	// independently elect the same blank candidate once the timeout fires.
	nodes, tr := newTestCluster(t, 3, Config{BlankBlockTimeout: 5, ChainUpdateTimeout: 1000})

	// Manually forge slot 0 on all three nodes so next_slot becomes 1.
	blk0 := block.New(0, 0, nil, 0)
	for _, nd := range nodes {
		nd.chain = append(nd.chain, blk0)
	}

	ok := runUntilSlotForged(nodes, map[block.NodeID]bool{1: true}, tr, 200, 1)
	require.True(t, ok)
	require.True(t, nodes[0].Chain()[1].Proposer.IsBlank())
	require.True(t, nodes[0].Chain()[1].Equal(nodes[2].Chain()[1]))
}

func TestLateJoinerCatchesUpViaChainUpdate(t *testing.T) {
	tr := transport.New(0, rand.New(rand.NewSource(1)))
	tr.Register(0, transport.NodeRecord{})
	tr.Register(1, transport.NodeRecord{})

	seeded, err := New(0, 2, []block.Block{
		block.New(0, 0, nil, 0),
		block.New(1, 1, nil, 0),
		block.New(2, 0, nil, 0),
	}, Config{ChainUpdateTimeout: 1000, BlankBlockTimeout: 1000}, tr, nil)
	require.NoError(t, err)

	late, err := New(1, 2, nil, Config{ChainUpdateTimeout: 2, BlankBlockTimeout: 1000}, tr, nil)
	require.NoError(t, err)

	late.Run(0, nil)
	late.Run(1, nil)
	late.Run(3, nil) // idle past chain_update_timeout: broadcasts CHAIN_UPDATE_REQUEST

	due := tr.Receive(3)
	require.Len(t, due, 1)
	seeded.Run(3, &due[0].Message)

	due = tr.Receive(3)
	require.Len(t, due, 1)
	late.Run(3, &due[0].Message)

	require.Len(t, late.Chain(), 3)
	for i, b := range late.Chain() {
		require.True(t, b.Equal(seeded.Chain()[i]))
	}
}
