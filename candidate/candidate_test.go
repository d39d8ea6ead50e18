package candidate

import (
	"testing"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/message"
)

func TestAddApproveIsIdempotentPerSender(t *testing.T) {
	blk := block.New(1, 0, []byte("x"), 0)
	c := New(blk)

	c.AddApprove(message.NewApprove(1, blk))
	c.AddApprove(message.NewApprove(1, blk))

	if len(c.MessagesApprove) != 1 {
		t.Fatalf("len(MessagesApprove) = %d, want 1 (at most one approve per sender)", len(c.MessagesApprove))
	}
}

func TestActionGating(t *testing.T) {
	c := New(block.NewBlank(0, 0))

	if c.HasTaken(ActionApprove) {
		t.Fatal("a fresh Candidate must not report any action as taken")
	}
	c.MarkTaken(ActionApprove)
	if !c.HasTaken(ActionApprove) {
		t.Fatal("MarkTaken must make HasTaken report true")
	}
	if c.HasTaken(ActionVote) {
		t.Fatal("marking one action must not mark the others")
	}
}

func TestMergeVoteEvidenceDoesNotOverwrite(t *testing.T) {
	blk := block.New(1, 0, nil, 0)
	c := New(blk)
	original := message.NewApprove(2, blk)
	c.AddVote(2, original)

	c.MergeVoteEvidence(message.Evidence{2: message.NewApprove(2, block.New(1, 0, []byte("other"), 99))})

	if c.MessagesVote[2].Block.Created != original.Block.Created {
		t.Fatal("MergeVoteEvidence must not overwrite existing per-sender evidence")
	}
}

func TestGreaterThanForgedBeatsEverything(t *testing.T) {
	blk := block.New(1, 0, nil, 0)
	forged := New(blk)
	forged.Forge()

	rich := New(block.New(1, 1, nil, 0))
	for i := block.NodeID(0); i < 10; i++ {
		rich.AddVoteStatusUpdate(i)
	}

	if !forged.GreaterThan(rich) {
		t.Fatal("a forged Candidate must outrank a non-forged one regardless of evidence counts")
	}
}

func TestGreaterThanOrdersByEvidenceDepth(t *testing.T) {
	a := New(block.New(1, 0, nil, 0))
	b := New(block.New(1, 1, nil, 0))

	a.AddVoteStatusUpdate(9)
	if !a.GreaterThan(b) {
		t.Fatal("one vote status update must outrank zero")
	}

	b.AddVoteStatusUpdate(9)
	b.AddVoteStatusUpdate(8)
	if !b.GreaterThan(a) {
		t.Fatal("more vote status updates must outrank fewer")
	}
}
