package driver

import "github.com/tolelom/qvote/block"

// NodeSummary is one node's final state in a Result snapshot.
type NodeSummary struct {
	ID         block.NodeID   `json:"id"`
	ChainLen   int            `json:"chain_len"`
	ChainSlots []block.SlotID `json:"chain_slots"`
}

// Result is the JSON-serialisable snapshot of a finished (or paused) run,
// returned by Run and available at any point via Driver.Result.
type Result struct {
	Ticks           int64         `json:"ticks"`
	NodeCount       int           `json:"node_count"`
	Nodes           []NodeSummary `json:"nodes"`
	SlotsConfirmed  int           `json:"slots_confirmed"`
	MessagesSent    int64         `json:"messages_sent"`
	MessagesDropped int64         `json:"messages_dropped"`
}

// Result snapshots the Driver's current state. Safe to call mid-run, not
// just after termination.
func (d *Driver) Result() Result {
	nodes := make([]NodeSummary, len(d.nodes))
	for i, nd := range d.nodes {
		chain := nd.Chain()
		slots := make([]block.SlotID, len(chain))
		for j, b := range chain {
			slots[j] = b.Slot
		}
		nodes[i] = NodeSummary{ID: nd.ID(), ChainLen: len(chain), ChainSlots: slots}
	}
	sent, dropped := d.transport.Stats()
	return Result{
		Ticks:           d.tick,
		NodeCount:       len(d.nodes),
		Nodes:           nodes,
		SlotsConfirmed:  len(d.announced),
		MessagesSent:    sent,
		MessagesDropped: dropped,
	}
}
