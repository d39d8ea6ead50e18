// Package driver implements the round-robin dispatch loop of spec.md
// §4.9: each tick it pulls due envelopes from Transport, delivers each to
// its recipient Node, ticks every Node that received nothing, and
// terminates on majority completion or a tick cap. Grounded on the
// teacher's core/blockchain.go block-production loop, generalized from a
// single local chain append into a scheduler over many independent Nodes,
// and on events/emitter.go for structured run events.
package driver

import (
	"math/rand"

	"github.com/luxfi/log"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/config"
	node "github.com/tolelom/qvote/consensusnode"
	"github.com/tolelom/qvote/metrics"
	"github.com/tolelom/qvote/transport"
)

// Driver owns the fixed node set and the Transport they share, and drives
// both forward one logical tick at a time.
type Driver struct {
	nodes     []*node.Node
	transport *transport.Transport
	params    config.Parameters
	metrics   metrics.RunMetrics
	log       log.Logger
	emitter   *Emitter

	tick int64

	confirmedBy map[block.SlotID]map[block.NodeID]bool
	announced   map[block.SlotID]bool
	lastLen     map[block.NodeID]int
	lastSent    int64
	lastDropped int64
}

// New builds a Driver over nodeCount freshly constructed Nodes, each
// registered with tr at a uniformly random coordinate on
// [0, params.MaxDistance) and a connection speed of 1. Node coordinates
// and drop rates are fixed once here, per spec.md §4.8.
func New(params config.Parameters, tr *transport.Transport, rng *rand.Rand, m metrics.RunMetrics, logger log.Logger) (*Driver, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	nodes := make([]*node.Node, params.NodeCount)
	for i := 0; i < params.NodeCount; i++ {
		id := block.NodeID(i)
		tr.Register(id, transport.NodeRecord{
			Coordinate: transport.Coordinate{
				X: rng.Float64() * params.MaxDistance,
				Y: rng.Float64() * params.MaxDistance,
			},
			DropRate: params.LostMessagesPercentage,
			Speed:    1,
		})
		nd, err := node.New(id, params.NodeCount, nil, node.Config{
			KeepExcessiveMessages: params.KeepExcessiveMessages,
			BlankBlockTimeout:     params.BlankBlockTimeout,
			ChainUpdateTimeout:    params.ChainUpdateTimeout,
		}, tr, logger)
		if err != nil {
			return nil, err
		}
		nodes[i] = nd
	}
	return &Driver{
		nodes:       nodes,
		transport:   tr,
		params:      params,
		metrics:     m,
		log:         logger,
		emitter:     NewEmitter(),
		confirmedBy: map[block.SlotID]map[block.NodeID]bool{},
		announced:   map[block.SlotID]bool{},
		lastLen:     map[block.NodeID]int{},
	}, nil
}

// Events returns the Emitter run observers can Subscribe to.
func (d *Driver) Events() *Emitter { return d.emitter }

// Nodes returns the driven node set. The returned slice must not be
// mutated by callers.
func (d *Driver) Nodes() []*node.Node { return d.nodes }

// Tick returns the current logical tick.
func (d *Driver) Tick() int64 { return d.tick }

// Step runs exactly one tick: due envelopes are delivered, idle nodes are
// ticked, and newly confirmed slots are logged and emitted. It returns
// true once termination is reached (spec.md §4.9): more than half the
// nodes have a chain length at or above GenerateBlocks, or the tick cap
// has been hit.
func (d *Driver) Step() bool {
	now := d.tick
	due := d.transport.Receive(now)
	delivered := make(map[block.NodeID]bool, len(d.nodes))
	for _, env := range due {
		d.nodes[env.Recipient].Run(now, &env.Message)
		delivered[env.Recipient] = true
	}
	for _, nd := range d.nodes {
		if !delivered[nd.ID()] {
			nd.Run(now, nil)
		}
	}

	d.observe(now)
	d.metrics.Ticks.Inc()
	d.tick++

	return d.terminated()
}

// Run steps the Driver until Step reports termination, emits
// EventRunTerminated, and returns a Result snapshot of the final state.
func (d *Driver) Run() Result {
	for !d.Step() {
	}
	d.emitter.Emit(Event{Type: EventRunTerminated, Tick: d.tick, NodeCount: len(d.nodes)})
	return d.Result()
}

// observe detects newly forged blocks since the last tick by diffing each
// node's chain length, logs "slot S confirmed by K/N nodes" the first
// time a slot reaches majority confirmation, and updates metrics.
func (d *Driver) observe(now int64) {
	sentBefore, droppedBefore := d.lastSent, d.lastDropped
	sent, dropped := d.transport.Stats()
	if delta := sent - sentBefore; delta > 0 {
		d.metrics.MessagesSent.Add(delta)
	}
	if delta := dropped - droppedBefore; delta > 0 {
		d.metrics.MessagesDropped.Add(delta)
	}
	d.lastSent, d.lastDropped = sent, dropped

	var totalLen int
	for _, nd := range d.nodes {
		chain := nd.Chain()
		totalLen += len(chain)
		prev := d.lastLen[nd.ID()]
		for i := prev; i < len(chain); i++ {
			slot := chain[i].Slot
			confirmers, ok := d.confirmedBy[slot]
			if !ok {
				confirmers = map[block.NodeID]bool{}
				d.confirmedBy[slot] = confirmers
			}
			confirmers[nd.ID()] = true
			d.metrics.BlocksForged.Inc()

			if !d.announced[slot] && quorumMet(len(confirmers), len(d.nodes)) {
				d.announced[slot] = true
				d.log.Info("slot confirmed", "slot", slot, "confirmed_by", len(confirmers), "of", len(d.nodes), "tick", now)
				d.emitter.Emit(Event{
					Type:        EventSlotConfirmed,
					Tick:        now,
					Slot:        slot,
					ConfirmedBy: len(confirmers),
					NodeCount:   len(d.nodes),
				})
			}
		}
		d.lastLen[nd.ID()] = len(chain)
	}
	d.metrics.ChainLength.Observe(float64(totalLen) / float64(len(d.nodes)))
}

func quorumMet(count, n int) bool { return 2*count > n }

// terminated reports whether a majority of nodes have reached the
// configured GenerateBlocks threshold, or the tick cap has been exceeded.
func (d *Driver) terminated() bool {
	if d.tick >= d.params.MaxLoopIterations {
		return true
	}
	reached := 0
	for _, nd := range d.nodes {
		if len(nd.Chain()) >= d.params.GenerateBlocks {
			reached++
		}
	}
	return quorumMet(reached, len(d.nodes))
}
