package candidate

import "github.com/tolelom/qvote/block"

// Manager tracks every Candidate a node has opened for a single slot. Two
// proposers can each produce a Block for the same slot (and the blank block
// is itself a candidate proposer), so a slot may have more than one
// concurrent Candidate until one of them forges.
type Manager struct {
	bySlot []*Candidate
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Insert returns the Candidate for blk, creating and registering a new one
// if this is the first evidence seen for that exact Block. Blocks are
// compared with block.Block.Equal, so a proposer that sends two
// byte-for-byte different bodies for the same slot is treated as a
// duplicate (spec.md §3: block equality ignores body).
func (m *Manager) Insert(blk block.Block) *Candidate {
	if existing := m.FindByBlock(blk); existing != nil {
		return existing
	}
	c := New(blk)
	m.bySlot = append(m.bySlot, c)
	return c
}

// FindByBlock returns the Candidate matching blk, or nil if none has been
// opened yet.
func (m *Manager) FindByBlock(blk block.Block) *Candidate {
	for _, c := range m.bySlot {
		if c.Block.Equal(blk) {
			return c
		}
	}
	return nil
}

// FindByProposer returns the Candidate proposed by proposer, or nil. A slot
// holds at most one Candidate per proposer, since ValidProposer rejects any
// other proposer for a non-blank block and the blank block is its own
// sentinel proposer.
func (m *Manager) FindByProposer(proposer block.NodeID) *Candidate {
	for _, c := range m.bySlot {
		if c.Block.Proposer == proposer {
			return c
		}
	}
	return nil
}

// All returns every Candidate opened for this slot, in insertion order.
func (m *Manager) All() []*Candidate {
	return m.bySlot
}

// MergeFrom folds candidates received from a peer's CHAIN_UPDATE into m.
// A candidate unseen locally is adopted outright; one already present is
// replaced only if the incoming version strictly outranks the local one
// under the Candidate ordering (spec.md §4.6).
func (m *Manager) MergeFrom(other *Manager) {
	for _, incoming := range other.All() {
		existing := m.FindByBlock(incoming.Block)
		if existing == nil {
			m.bySlot = append(m.bySlot, incoming)
			continue
		}
		if !incoming.GreaterThan(existing) {
			continue
		}
		for i, c := range m.bySlot {
			if c == existing {
				m.bySlot[i] = incoming
				break
			}
		}
	}
}

// Clone returns a deep copy of m: every Candidate is itself cloned, so
// mutating one manager's candidates (more evidence, Forge()) is never
// visible through the other. This is what makes a CHAIN_UPDATE's
// candidate snapshot safe to hand to a peer — satisfies
// message.CandidateSnapshot, which is why the return type is interface{}
// rather than *Manager.
func (m *Manager) Clone() interface{} {
	clone := &Manager{bySlot: make([]*Candidate, len(m.bySlot))}
	for i, c := range m.bySlot {
		clone.bySlot[i] = c.Clone()
	}
	return clone
}

// CheckAction reports whether any Candidate opened for this slot has
// taken action, the CandidateManager.check_action operation of spec.md
// §3 ("true if any member has taken it").
func (m *Manager) CheckAction(a Action) bool {
	for _, c := range m.bySlot {
		if c.HasTaken(a) {
			return true
		}
	}
	return false
}

// Best returns the Candidate that ranks highest under the total order of
// spec.md §3, or nil if no Candidate has been opened. Ties (equal on all
// five comparisons) resolve to whichever Candidate was inserted first.
func (m *Manager) Best() *Candidate {
	var best *Candidate
	for _, c := range m.bySlot {
		if best == nil || c.GreaterThan(best) {
			best = c
		}
	}
	return best
}
