// Package node implements the per-node consensus state machine of
// spec.md §4: the five-round commit/approve/vote/status-update pipeline,
// blank-block election, and the chain-update liveness protocol. It is the
// largest package in this repository, grounded on the shape of the
// teacher's proof-of-authority engine at
// tolelom-tolchain/consensus/poa.go, generalized from PoA's single
// majority vote into the spec's five-stage quorum pipeline.
package node

import (
	"sort"

	"github.com/luxfi/log"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/candidate"
	"github.com/tolelom/qvote/message"
	"github.com/tolelom/qvote/quorum"
	"github.com/tolelom/qvote/transport"
)

// Config holds the behavioral knobs a Node needs that are not derived from
// its own state: whether to keep evidence past the point it stopped
// mattering, and the two liveness timeouts (spec.md §6). Ticks, not wall
// time, per spec.md §5's recommended reimplementation strategy.
type Config struct {
	KeepExcessiveMessages bool
	BlankBlockTimeout     int64
	ChainUpdateTimeout    int64
}

// Node is one participant in the simulated quorum. All of its exported
// behavior goes through Run; everything else is internal bookkeeping.
type Node struct {
	id        block.NodeID
	nodeCount int

	chain      []block.Block
	candidates map[block.SlotID]*candidate.Manager
	active     *candidate.Candidate

	buffer []message.Message // sorted by Block.Slot ascending

	timeForged          int64
	timeApproved        int64
	timeUpdateRequested int64

	cfg       Config
	transport *transport.Transport
	log       log.Logger
}

// New constructs a Node with the given id among nodeCount peers, seeded
// with initialChain (nil or empty for a fresh node). It returns
// ErrInvalidChain if initialChain violates slot density or the proposer
// rule (spec.md §7, §3).
func New(id block.NodeID, nodeCount int, initialChain []block.Block, cfg Config, tr *transport.Transport, logger log.Logger) (*Node, error) {
	for i, b := range initialChain {
		if b.Slot != block.SlotID(i) {
			return nil, ErrInvalidChain
		}
		if !block.ValidProposer(b.Slot, b.Proposer, nodeCount) {
			return nil, ErrInvalidChain
		}
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	chain := make([]block.Block, len(initialChain))
	copy(chain, initialChain)
	return &Node{
		id:         id,
		nodeCount:  nodeCount,
		chain:      chain,
		candidates: map[block.SlotID]*candidate.Manager{},
		cfg:        cfg,
		transport:  tr,
		log:        logger,
	}, nil
}

// ID returns this node's identity.
func (n *Node) ID() block.NodeID { return n.id }

// Chain returns the committed chain, oldest first. The returned slice must
// not be mutated by callers.
func (n *Node) Chain() []block.Block { return n.chain }

// NextSlot returns the slot this node is currently trying to fill.
func (n *Node) NextSlot() block.SlotID { return block.SlotID(len(n.chain)) }

func (n *Node) tip() block.Block {
	if len(n.chain) == 0 {
		return block.NoTip
	}
	return n.chain[len(n.chain)-1]
}

func (n *Node) managerFor(slot block.SlotID) *candidate.Manager {
	mgr, ok := n.candidates[slot]
	if !ok {
		mgr = candidate.NewManager()
		n.candidates[slot] = mgr
	}
	return mgr
}

// Run is the Driver's single entry point into a Node: msg is the envelope
// due this tick, or nil if none was delivered (spec.md §4.9). now is the
// driver's current logical tick.
func (n *Node) Run(now int64, msg *message.Message) {
	if msg != nil {
		if err := n.handle(now, *msg); err != nil {
			n.log.Debug("discarding message", "from", msg.Sender, "kind", msg.Kind, "err", err)
		}
	} else {
		n.tick(now)
	}
	n.drainBuffer(now)
}

// tick runs the idle-driven housekeeping: proposing or electing a blank
// block when there is no active candidate, and requesting a chain update
// when this node has been idle too long.
func (n *Node) tick(now int64) {
	nextSlot := n.NextSlot()
	if n.active == nil || n.active.Block.Slot != nextSlot {
		n.active = n.managerFor(nextSlot).Best()
	}
	if n.active == nil || n.active.Forged {
		if n.active != nil && n.active.Forged {
			n.active = nil
		}
		switch {
		case n.id == block.ExpectedProposer(nextSlot, n.nodeCount):
			n.genCommit(now)
		case now-n.timeForged > n.cfg.BlankBlockTimeout:
			n.genBlank(now)
		}
	}

	idleSince := n.timeForged
	if n.timeApproved > idleSince {
		idleSince = n.timeApproved
	}
	if n.timeUpdateRequested > idleSince {
		idleSince = n.timeUpdateRequested
	}
	if now-idleSince > n.cfg.ChainUpdateTimeout {
		n.requestChainUpdate(now)
	}
}

// genCommit fabricates and broadcasts the real block for next_slot; only
// ever called on the slot's expected proposer.
func (n *Node) genCommit(now int64) {
	blk := block.New(n.NextSlot(), n.id, nil, now)
	cand := n.managerFor(blk.Slot).Insert(blk)
	n.active = cand
	n.broadcast(now, message.NewCommit(n.id, blk))
	n.emitApprove(now, cand)
}

// genBlank fabricates the blank-block liveness candidate for next_slot
// (spec.md §4.3). No COMMIT is broadcast for a blank block; the APPROVE
// this emits is itself how peers learn a blank candidate exists.
func (n *Node) genBlank(now int64) {
	blk := block.NewBlank(n.NextSlot(), now)
	cand := n.managerFor(blk.Slot).Insert(blk)
	n.active = cand
	n.emitApprove(now, cand)
}

func (n *Node) requestChainUpdate(now int64) {
	n.broadcast(now, message.NewChainUpdateRequest(n.id, n.tip()))
	n.timeUpdateRequested = now
}

// handle runs the message-reception pipeline of spec.md §4.4.
func (n *Node) handle(now int64, msg message.Message) error {
	switch msg.Kind {
	case message.ChainUpdateRequest:
		return n.handleChainUpdateRequest(now, msg)
	case message.ChainUpdate:
		return n.handleChainUpdate(now, msg)
	}

	if err := n.validate(msg); err != nil {
		return err
	}

	nextSlot := n.NextSlot()
	switch {
	case msg.Block.Slot < block.SlotID(len(n.chain)):
		n.sendTo(now, msg.Sender, message.NewChainUpdate(n.id, n.blocksAbove(msg.Block.Slot), n.candidateSnapshot()))
		return nil
	case msg.Block.Slot == nextSlot+1:
		n.bufferInsert(msg)
		return nil
	case msg.Block.Slot > nextSlot:
		n.sendTo(now, msg.Sender, message.NewChainUpdateRequest(n.id, n.tip()))
		return ErrNotReady
	}

	mgr := n.managerFor(nextSlot)
	cand := mgr.FindByBlock(msg.Block)
	isNew := cand == nil
	if isNew {
		cand = mgr.Insert(msg.Block)
	}
	n.active = cand
	if isNew {
		n.emitApprove(now, cand)
	}

	switch msg.Kind {
	case message.Commit:
		// No-op beyond candidate registration above.
	case message.Approve:
		n.handleApprove(now, cand, msg)
	case message.ApproveStatusUpdate:
		return n.handleApproveStatusUpdate(now, cand, msg)
	case message.Vote:
		n.handleVote(now, cand, msg)
	case message.VoteStatusUpdate:
		if !quorum.EvidenceMeetsQuorum(len(msg.Evidence), n.nodeCount) {
			return ErrInsufficientEvidence
		}
		n.handleVoteStatusUpdate(now, cand, msg)
	}
	return nil
}

// validate checks the five "normal" round message kinds against the
// proposer rule (spec.md §4.4 step 2). CHAIN_UPDATE_REQUEST and
// CHAIN_UPDATE are dispatched before validate runs.
func (n *Node) validate(msg message.Message) error {
	switch msg.Kind {
	case message.Commit, message.Approve, message.ApproveStatusUpdate, message.Vote, message.VoteStatusUpdate:
	default:
		return ErrMalformedMessage
	}
	if !block.ValidProposer(msg.Block.Slot, msg.Block.Proposer, n.nodeCount) {
		return ErrMalformedMessage
	}
	for _, b := range msg.Chain {
		if !block.ValidProposer(b.Slot, b.Proposer, n.nodeCount) {
			return ErrMalformedMessage
		}
	}
	return nil
}

func (n *Node) handleApprove(now int64, cand *candidate.Candidate, msg message.Message) {
	if cand.HasTaken(candidate.ActionApproveStatusUpdate) && !n.cfg.KeepExcessiveMessages {
		return
	}
	cand.AddApprove(msg)
	if !cand.HasTaken(candidate.ActionApproveStatusUpdate) && quorum.EnoughApproves(cand, n.nodeCount) {
		n.emitApproveStatusUpdate(now, cand)
	}
}

func (n *Node) handleApproveStatusUpdate(now int64, cand *candidate.Candidate, msg message.Message) error {
	if !quorum.EvidenceMeetsQuorum(len(msg.Evidence), n.nodeCount) {
		return ErrInsufficientEvidence
	}
	for _, approve := range msg.Evidence {
		if !approve.Block.Equal(cand.Block) {
			return ErrConflictingBlock
		}
	}
	cand.MergeApproveEvidence(msg.Evidence)
	cand.AddApproveStatusUpdate(msg.Sender)
	if !cand.HasTaken(candidate.ActionVote) && quorum.EnoughApproveStatusUpdates(cand, n.nodeCount) {
		n.emitVote(now, cand)
	}
	return nil
}

func (n *Node) handleVote(now int64, cand *candidate.Candidate, msg message.Message) {
	cand.AddVote(msg.Sender, msg)
	if !cand.HasTaken(candidate.ActionVoteStatusUpdate) && quorum.EnoughVotes(cand, n.nodeCount) {
		n.emitVoteStatusUpdate(now, cand)
	}
	n.tryForge(now, cand)
}

func (n *Node) handleVoteStatusUpdate(now int64, cand *candidate.Candidate, msg message.Message) {
	cand.MergeVoteEvidence(msg.Evidence)
	cand.AddVoteStatusUpdate(msg.Sender)
	if !cand.HasTaken(candidate.ActionVoteStatusUpdate) && quorum.EnoughVotes(cand, n.nodeCount) {
		n.emitVoteStatusUpdate(now, cand)
	}
	n.tryForge(now, cand)
}

func (n *Node) emitApprove(now int64, cand *candidate.Candidate) {
	if cand.HasTaken(candidate.ActionApprove) {
		return
	}
	cand.MarkTaken(candidate.ActionApprove)
	approve := message.NewApprove(n.id, cand.Block)
	cand.AddApprove(approve)
	n.broadcast(now, approve)
	n.timeApproved = now
}

func (n *Node) emitApproveStatusUpdate(now int64, cand *candidate.Candidate) {
	if cand.HasTaken(candidate.ActionApproveStatusUpdate) {
		return
	}
	cand.MarkTaken(candidate.ActionApproveStatusUpdate)
	cand.AddApproveStatusUpdate(n.id)
	n.broadcast(now, message.NewApproveStatusUpdate(n.id, cand.Block, cand.MessagesApprove.Clone()))
}

func (n *Node) emitVote(now int64, cand *candidate.Candidate) {
	if cand.HasTaken(candidate.ActionVote) {
		return
	}
	cand.MarkTaken(candidate.ActionVote)
	evidence := cand.MessagesApprove.Clone()
	vote := message.NewVote(n.id, cand.Block, evidence)
	cand.AddVote(n.id, vote)
	n.broadcast(now, vote)
}

func (n *Node) emitVoteStatusUpdate(now int64, cand *candidate.Candidate) {
	if cand.HasTaken(candidate.ActionVoteStatusUpdate) {
		return
	}
	cand.MarkTaken(candidate.ActionVoteStatusUpdate)
	cand.AddVoteStatusUpdate(n.id)
	n.broadcast(now, message.NewVoteStatusUpdate(n.id, cand.Block, cand.MessagesVote.Clone()))
}

func (n *Node) tryForge(now int64, cand *candidate.Candidate) {
	if cand.Forged {
		return
	}
	if quorum.EnoughVoteStatusUpdates(cand, n.nodeCount) && quorum.EnoughVotes(cand, n.nodeCount) {
		n.forge(now, cand)
	}
}

func (n *Node) forge(now int64, cand *candidate.Candidate) {
	cand.Forge()
	n.chain = append(n.chain, cand.Block)
	if n.active == cand {
		n.active = nil
	}
	n.timeForged = now
	n.log.Info("block forged", "node", n.id, "slot", cand.Block.Slot, "proposer", cand.Block.Proposer)
}

// blocksAbove returns every committed block strictly above slot, for a
// CHAIN_UPDATE response.
func (n *Node) blocksAbove(slot block.SlotID) []block.Block {
	var out []block.Block
	for _, b := range n.chain {
		if b.Slot > slot {
			out = append(out, b)
		}
	}
	return out
}

func (n *Node) candidateSnapshot() map[block.SlotID]interface{} {
	return map[block.SlotID]interface{}{n.NextSlot(): n.managerFor(n.NextSlot())}
}

func (n *Node) handleChainUpdateRequest(now int64, msg message.Message) error {
	requesterNext := block.SlotID(0)
	if msg.Block.Slot != block.NoTip.Slot {
		requesterNext = msg.Block.Slot + 1
	}
	n.sendTo(now, msg.Sender, message.NewChainUpdate(n.id, n.blocksAbove(requesterNext-1), n.candidateSnapshot()))
	return nil
}

func (n *Node) handleChainUpdate(now int64, msg message.Message) error {
	incoming := append([]block.Block(nil), msg.Chain...)
	sort.Slice(incoming, func(i, j int) bool { return incoming[i].Slot < incoming[j].Slot })
	for _, b := range incoming {
		if b.Slot != block.SlotID(len(n.chain)) {
			break
		}
		if !block.ValidProposer(b.Slot, b.Proposer, n.nodeCount) {
			break
		}
		n.chain = append(n.chain, b)
	}

	nextSlot := n.NextSlot()
	if raw, ok := msg.Candidates[nextSlot]; ok {
		if incomingMgr, ok := raw.(*candidate.Manager); ok {
			n.managerFor(nextSlot).MergeFrom(incomingMgr)
		}
	}
	return nil
}

func (n *Node) bufferInsert(msg message.Message) {
	i := sort.Search(len(n.buffer), func(i int) bool { return n.buffer[i].Block.Slot >= msg.Block.Slot })
	n.buffer = append(n.buffer, message.Message{})
	copy(n.buffer[i+1:], n.buffer[i:])
	n.buffer[i] = msg
}

// drainBuffer re-dispatches any buffered message whose slot has become the
// current next_slot (spec.md §4.7), on every call to Run. Entries the chain
// has already passed (e.g. via a CHAIN_UPDATE while they sat buffered) are
// discarded rather than reprocessed.
func (n *Node) drainBuffer(now int64) {
	for len(n.buffer) > 0 && n.buffer[0].Block.Slot < n.NextSlot() {
		n.buffer = n.buffer[1:]
	}
	for len(n.buffer) > 0 && n.buffer[0].Block.Slot == n.NextSlot() {
		msg := n.buffer[0]
		n.buffer = n.buffer[1:]
		if err := n.handle(now, msg); err != nil {
			n.log.Debug("discarding buffered message", "from", msg.Sender, "kind", msg.Kind, "err", err)
		}
	}
}

func (n *Node) broadcast(now int64, msg message.Message) {
	for peer := 0; peer < n.nodeCount; peer++ {
		id := block.NodeID(peer)
		if id == n.id {
			continue
		}
		n.transport.Send(now, n.id, id, msg)
	}
}

func (n *Node) sendTo(now int64, recipient block.NodeID, msg message.Message) {
	n.transport.Send(now, n.id, recipient, msg)
}
