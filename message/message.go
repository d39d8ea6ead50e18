// Package message defines the tagged envelope Nodes exchange over the
// Transport: seven kinds, each carrying exactly the fields it needs
// (spec.md §3, design note "Message polymorphism").
package message

import (
	"fmt"

	"github.com/tolelom/qvote/block"
)

// Kind tags which of the seven message variants a Message carries.
type Kind int

const (
	Commit Kind = iota
	Approve
	ApproveStatusUpdate
	Vote
	VoteStatusUpdate
	ChainUpdateRequest
	ChainUpdate
)

func (k Kind) String() string {
	switch k {
	case Commit:
		return "COMMIT"
	case Approve:
		return "APPROVE"
	case ApproveStatusUpdate:
		return "APPROVE_STATUS_UPDATE"
	case Vote:
		return "VOTE"
	case VoteStatusUpdate:
		return "VOTE_STATUS_UPDATE"
	case ChainUpdateRequest:
		return "CHAIN_UPDATE_REQUEST"
	case ChainUpdate:
		return "CHAIN_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// CandidateSnapshot is implemented by whatever opaque type populates
// Message.Candidates (candidate.Manager, in this repository). Clone calls
// through this interface to deep-copy the snapshot without this package
// importing candidate, which itself imports message.
type CandidateSnapshot interface {
	Clone() interface{}
}

// Evidence maps a sender NodeID to the message from that node which
// justifies a quorum claim ("messages_chain" in spec.md's vocabulary).
type Evidence map[block.NodeID]Message

// Clone returns a deep copy of e, modelling the serialise/deserialise step
// Transport performs on send (spec.md §4.8, design note "Deep copy on
// send").
func (e Evidence) Clone() Evidence {
	if e == nil {
		return nil
	}
	out := make(Evidence, len(e))
	for k, v := range e {
		out[k] = v.Clone()
	}
	return out
}

// Message is the tagged variant carrying one of the seven protocol message
// kinds. Only the fields relevant to Kind are populated; the zero value of
// an unused field is never inspected by receivers.
type Message struct {
	Kind   Kind
	Sender block.NodeID

	// Block is the referenced block. Populated for every kind except
	// ChainUpdate.
	Block block.Block

	// Chain carries a sequence of blocks. Populated for ChainUpdate.
	Chain []block.Block

	// Evidence carries the sender's justification for a status-update
	// message: for ApproveStatusUpdate, the APPROVE messages backing it;
	// for VoteStatusUpdate, the per-node VOTE evidence being relayed.
	Evidence Evidence

	// Candidates carries, for ChainUpdate, the sender's per-slot candidate
	// snapshot so the requester can merge quorum progress it missed. The
	// key is the slot the candidate set belongs to; the value is an
	// opaque snapshot, in this repository a *candidate.Manager (deep-copied
	// through CandidateSnapshot.Clone).
	Candidates map[block.SlotID]interface{}
}

// Clone returns a deep copy of m, the transport-boundary "deep copy on
// send" every envelope goes through before being queued (spec.md §4.8,
// §5: "Messages are deep-copied at send time, so receivers observe a
// snapshot and cannot mutate sender state").
func (m Message) Clone() Message {
	out := m
	out.Evidence = m.Evidence.Clone()
	if m.Chain != nil {
		out.Chain = append([]block.Block(nil), m.Chain...)
	}
	if m.Candidates != nil {
		out.Candidates = make(map[block.SlotID]interface{}, len(m.Candidates))
		for k, v := range m.Candidates {
			if snap, ok := v.(CandidateSnapshot); ok {
				out.Candidates[k] = snap.Clone()
			} else {
				out.Candidates[k] = v
			}
		}
	}
	return out
}

// Equal reports whether m and other carry the same semantic content,
// including sender identity (spec.md §3: "sender identity is part of
// equality").
func (m Message) Equal(other Message) bool {
	if m.Kind != other.Kind || m.Sender != other.Sender {
		return false
	}
	if !m.Block.Equal(other.Block) {
		return false
	}
	if len(m.Chain) != len(other.Chain) {
		return false
	}
	for i := range m.Chain {
		if !m.Chain[i].Equal(other.Chain[i]) {
			return false
		}
	}
	if len(m.Evidence) != len(other.Evidence) {
		return false
	}
	for k, v := range m.Evidence {
		ov, ok := other.Evidence[k]
		if !ok || !v.Block.Equal(ov.Block) {
			return false
		}
	}
	return true
}

func (m Message) String() string {
	return fmt.Sprintf("Message{%s from=%s slot=%d}", m.Kind, m.Sender, m.Block.Slot)
}

// NewCommit builds a COMMIT message for blk, sent by sender (its proposer).
func NewCommit(sender block.NodeID, blk block.Block) Message {
	return Message{Kind: Commit, Sender: sender, Block: blk}
}

// NewApprove builds an APPROVE message for blk.
func NewApprove(sender block.NodeID, blk block.Block) Message {
	return Message{Kind: Approve, Sender: sender, Block: blk}
}

// NewApproveStatusUpdate builds an APPROVE_STATUS_UPDATE carrying the
// approve evidence the sender collected for blk.
func NewApproveStatusUpdate(sender block.NodeID, blk block.Block, evidence Evidence) Message {
	return Message{Kind: ApproveStatusUpdate, Sender: sender, Block: blk, Evidence: evidence}
}

// NewVote builds a VOTE message for blk, carrying the evidence that
// justified the sender's vote (the approve-status-update evidence map).
func NewVote(sender block.NodeID, blk block.Block, evidence Evidence) Message {
	return Message{Kind: Vote, Sender: sender, Block: blk, Evidence: evidence}
}

// NewVoteStatusUpdate builds a VOTE_STATUS_UPDATE carrying the merged vote
// evidence the sender has collected for blk.
func NewVoteStatusUpdate(sender block.NodeID, blk block.Block, evidence Evidence) Message {
	return Message{Kind: VoteStatusUpdate, Sender: sender, Block: blk, Evidence: evidence}
}

// NewChainUpdateRequest builds a CHAIN_UPDATE_REQUEST referencing the
// sender's current tip (block.NoTip if its chain is empty).
func NewChainUpdateRequest(sender block.NodeID, tip block.Block) Message {
	return Message{Kind: ChainUpdateRequest, Sender: sender, Block: tip}
}

// NewChainUpdate builds a CHAIN_UPDATE carrying blocks above the
// requester's tip plus the sender's candidate snapshot for its next slot.
func NewChainUpdate(sender block.NodeID, chain []block.Block, candidates map[block.SlotID]interface{}) Message {
	return Message{Kind: ChainUpdate, Sender: sender, Chain: chain, Candidates: candidates}
}
