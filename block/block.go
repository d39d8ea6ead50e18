// Package block defines the immutable slot record that nodes vote to commit.
package block

import "fmt"

// NodeID identifies a validator by its position, 0..N-1, in the fixed node
// set. A nil proposer (a blank block) is represented by the Blank constant.
type NodeID int32

// Blank is the sentinel NodeID meaning "no proposer" — a blank block.
const Blank NodeID = -1

// IsBlank reports whether id is the blank-proposer sentinel.
func (id NodeID) IsBlank() bool {
	return id == Blank
}

func (id NodeID) String() string {
	if id.IsBlank() {
		return "blank"
	}
	return fmt.Sprintf("node-%d", int32(id))
}

// SlotID is a position in the chain, synonymous with the protocol's
// block_id.
type SlotID int64

// Block is an immutable slot record. Two Blocks are equal iff Slot and
// Proposer match; Body and Created are deliberately excluded from equality
// so that two honest nodes which independently fabricate a blank block for
// the same slot recognise them as the same Block (spec.md §3, §4.3).
type Block struct {
	Slot     SlotID
	Proposer NodeID // Blank for a blank block
	Body     []byte
	Created  int64 // logical tick at construction, informational only

	// ContentHash is reserved for a future content hash / proposer
	// signature. Cryptographic authentication is out of scope; this is a
	// stub that always returns the empty string.
	ContentHash string
}

// New constructs a Block proposed by proposer for slot with the given body.
// created is the logical tick the driver was at when the block was built.
func New(slot SlotID, proposer NodeID, body []byte, created int64) Block {
	b := Block{
		Slot:     slot,
		Proposer: proposer,
		Body:     body,
		Created:  created,
	}
	b.ContentHash = computeContentHash(b)
	return b
}

// NoTip is the sentinel a Node with an empty chain reports as its tip when
// requesting a chain update (spec.md §4.6).
var NoTip = Block{Slot: -1, Proposer: Blank}

// NewBlank constructs a blank (proposer-less) Block for slot, used by the
// blank-block election liveness device (spec.md §4.3).
func NewBlank(slot SlotID, created int64) Block {
	return New(slot, Blank, nil, created)
}

// Equal reports whether b and other refer to the same (slot, proposer)
// pair. Body and Created are intentionally ignored.
func (b Block) Equal(other Block) bool {
	return b.Slot == other.Slot && b.Proposer == other.Proposer
}

// PrevSlot returns Slot-1. Only meaningful when Slot >= 1; callers at slot 0
// must not use this (there is no slot -1).
func (b Block) PrevSlot() SlotID {
	return b.Slot - 1
}

// ExpectedProposer returns the proposer NodeID the proposer rule assigns to
// slot under a node set of size n: slot mod n (spec.md §3, §4.3).
func ExpectedProposer(slot SlotID, n int) NodeID {
	if n <= 0 {
		return Blank
	}
	return NodeID(int64(slot) % int64(n))
}

// ValidProposer reports whether proposer is a legal proposer for slot given
// a node set of size n: either the blank sentinel, or exactly the node the
// proposer rule assigns.
func ValidProposer(slot SlotID, proposer NodeID, n int) bool {
	if proposer.IsBlank() {
		return true
	}
	return proposer == ExpectedProposer(slot, n)
}

// computeContentHash is the TODO stub referenced by ContentHash: hash
// linkage and signatures are not implemented (spec.md Non-goals, §9).
func computeContentHash(Block) string {
	return ""
}

func (b Block) String() string {
	return fmt.Sprintf("Block{slot=%d proposer=%s}", b.Slot, b.Proposer)
}
