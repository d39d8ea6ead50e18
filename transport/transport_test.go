package transport

import (
	"math/rand"
	"testing"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/candidate"
	"github.com/tolelom/qvote/message"
)

func newDeterministicTransport(delayMultiplier float64) *Transport {
	return New(delayMultiplier, rand.New(rand.NewSource(1)))
}

func TestSendThenReceiveOrdersByDeliverTick(t *testing.T) {
	tr := newDeterministicTransport(1)
	tr.Register(0, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})
	tr.Register(1, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1}) // zero distance -> zero delay
	tr.Register(2, NodeRecord{Coordinate: Coordinate{10, 0}, Speed: 1})

	blk := block.New(1, 0, nil, 0)
	tr.Send(0, 0, 2, message.NewCommit(0, blk)) // far: large delay
	tr.Send(0, 0, 1, message.NewCommit(0, blk)) // near: zero delay

	due := tr.Receive(0)
	if len(due) != 1 || due[0].Recipient != 1 {
		t.Fatalf("expected only the zero-delay envelope to be due at tick 0, got %+v", due)
	}

	due = tr.Receive(1000)
	if len(due) != 1 || due[0].Recipient != 2 {
		t.Fatalf("expected the delayed envelope to arrive by tick 1000, got %+v", due)
	}
}

func TestReceiveDrainsOnlyDueEnvelopes(t *testing.T) {
	tr := newDeterministicTransport(1)
	tr.Register(0, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})
	tr.Register(1, NodeRecord{Coordinate: Coordinate{5, 0}, Speed: 1})

	tr.Send(0, 0, 1, message.NewCommit(0, block.New(1, 0, nil, 0)))
	if tr.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 before the deliver tick", tr.Pending())
	}
	if due := tr.Receive(0); len(due) != 0 {
		t.Fatalf("Receive(0) should return nothing before the connection delay elapses, got %+v", due)
	}
	if tr.Pending() != 1 {
		t.Fatal("Receive must not drain envelopes that are not yet due")
	}
}

func TestSendDeepCopiesSoSenderMutationIsInvisible(t *testing.T) {
	tr := newDeterministicTransport(0)
	tr.Register(0, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})
	tr.Register(1, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})

	blk := block.New(1, 0, nil, 0)
	m := message.NewApproveStatusUpdate(0, blk, message.Evidence{0: message.NewApprove(0, blk)})
	tr.Send(0, 0, 1, m)

	m.Evidence[9] = message.NewApprove(9, blk) // mutate sender's copy after send

	due := tr.Receive(0)
	if len(due) != 1 {
		t.Fatalf("expected one due envelope, got %d", len(due))
	}
	if len(due[0].Message.Evidence) != 1 {
		t.Fatal("a mutation made to the sender's message after Send must not be visible to the receiver")
	}
}

func TestSendDeepCopiesCandidateSnapshotSoSenderMutationIsInvisible(t *testing.T) {
	tr := newDeterministicTransport(0)
	tr.Register(0, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})
	tr.Register(1, NodeRecord{Coordinate: Coordinate{0, 0}, Speed: 1})

	blk := block.New(1, 0, nil, 0)
	mgr := candidate.NewManager()
	cand := mgr.Insert(blk)
	cand.AddApprove(message.NewApprove(0, blk))

	m := message.NewChainUpdate(0, nil, map[block.SlotID]interface{}{1: mgr})
	tr.Send(0, 0, 1, m)

	// Mutate the sender's own candidate after Send: more evidence, then forge it.
	cand.AddApprove(message.NewApprove(2, blk))
	cand.Forge()

	due := tr.Receive(0)
	if len(due) != 1 {
		t.Fatalf("expected one due envelope, got %d", len(due))
	}
	received, ok := due[0].Message.Candidates[1].(*candidate.Manager)
	if !ok {
		t.Fatal("expected a *candidate.Manager snapshot for slot 1")
	}
	receivedCand := received.FindByBlock(blk)
	if receivedCand == nil {
		t.Fatal("expected the snapshot to carry the candidate for blk")
	}
	if receivedCand == cand {
		t.Fatal("received Candidate must not be the same pointer as the sender's")
	}
	if len(receivedCand.MessagesApprove) != 1 {
		t.Fatalf("approves added to the sender's candidate after Send must not appear in the receiver's copy, got %d", len(receivedCand.MessagesApprove))
	}
	if receivedCand.Forged {
		t.Fatal("forging the sender's candidate after Send must not be visible to the receiver")
	}
}

func TestDropRateOneHundredPercentAlwaysDrops(t *testing.T) {
	tr := newDeterministicTransport(1)
	tr.Register(0, NodeRecord{DropRate: 100})
	tr.Register(1, NodeRecord{DropRate: 100})

	tr.Send(0, 0, 1, message.NewCommit(0, block.New(1, 0, nil, 0)))
	if tr.Pending() != 0 {
		t.Fatal("a send between two 100% drop-rate nodes must never enter the queue")
	}
}
