// Package transport implements the central scheduled message queue
// described in spec.md §4.8: a discrete-event priority queue of envelopes
// ordered by delivery tick, with per-pair delay and drop simulation. The
// teacher's network package models a real TCP listener; here there is no
// real I/O, so the "network" is reduced to its essential scheduling
// behaviour and driven entirely by the Driver's logical clock.
package transport

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/tolelom/qvote/block"
	"github.com/tolelom/qvote/message"
)

// Coordinate is a node's fixed position on the simulated network plane,
// used only to compute connection delay.
type Coordinate struct {
	X, Y float64
}

func (c Coordinate) distanceTo(o Coordinate) float64 {
	dx := c.X - o.X
	dy := c.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// NodeRecord holds the per-node network characteristics fixed at
// construction: its plane coordinate, the percentage chance any message
// touching it is dropped, and its connection speed (a delay factor: a
// higher value contributes more delay, a lower one less).
type NodeRecord struct {
	Coordinate Coordinate
	DropRate   float64 // 0..100, percentage
	Speed      float64
}

// Envelope is one scheduled delivery: a deep copy of the message destined
// for recipient, stamped with the tick it was sent and the tick it is due.
type Envelope struct {
	Message     message.Message
	Recipient   block.NodeID
	SendTick    int64
	DeliverTick int64
}

// queue is a container/heap min-heap of envelopes ordered by DeliverTick.
// Ties break on insertion order (a monotonic sequence number), giving the
// "arbitrary but consistent for a given run" tie-break spec.md §4.8 asks
// for once the Transport's rng is seeded deterministically.
type queue struct {
	items []queueItem
}

type queueItem struct {
	envelope Envelope
	seq      int64
}

func (q queue) Len() int { return len(q.items) }
func (q queue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.envelope.DeliverTick != b.envelope.DeliverTick {
		return a.envelope.DeliverTick < b.envelope.DeliverTick
	}
	return a.seq < b.seq
}
func (q queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *queue) Push(x any)   { q.items = append(q.items, x.(queueItem)) }
func (q *queue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// Transport is the single shared message bus every Node sends through and
// the Driver polls for due deliveries.
type Transport struct {
	nodes           map[block.NodeID]NodeRecord
	delayMultiplier float64
	rng             *rand.Rand
	pq              queue
	nextSeq         int64

	totalSent    int64
	totalDropped int64
}

// New returns a Transport whose delivery delay is scaled by
// delayMultiplier. rng supplies the drop-probability sampling; callers
// that need reproducible runs should pass a seeded *rand.Rand.
func New(delayMultiplier float64, rng *rand.Rand) *Transport {
	return &Transport{
		nodes:           map[block.NodeID]NodeRecord{},
		delayMultiplier: delayMultiplier,
		rng:             rng,
	}
}

// Register fixes id's coordinate, drop rate, and connection speed. Per
// spec.md §4.8 these are initialised once at construction and never
// change during a run.
func (t *Transport) Register(id block.NodeID, rec NodeRecord) {
	t.nodes[id] = rec
}

// connectionDelay implements
// connection_delay(a,b) = euclidean_distance(a,b) × mean(speed_a,speed_b) × delay_multiplier.
func (t *Transport) connectionDelay(a, b block.NodeID) int64 {
	ra, rb := t.nodes[a], t.nodes[b]
	dist := ra.Coordinate.distanceTo(rb.Coordinate)
	meanSpeed := (ra.Speed + rb.Speed) / 2
	return int64(dist * meanSpeed * t.delayMultiplier)
}

// dropProbability implements (drop_rate_a + drop_rate_b)/2, as a
// percentage.
func (t *Transport) dropProbability(a, b block.NodeID) float64 {
	ra, rb := t.nodes[a], t.nodes[b]
	return (ra.DropRate + rb.DropRate) / 2
}

// Send enqueues m for delivery to recipient at the tick computed from the
// sender/recipient connection delay, unless the per-pair drop roll
// discards it first. The message is deep-copied so the receiver can never
// observe a mutation the sender makes after sending, modelling network
// serialisation (spec.md §4.8, §9).
func (t *Transport) Send(now int64, sender, recipient block.NodeID, m message.Message) {
	t.totalSent++
	roll := t.rng.Float64() * 100
	if roll < t.dropProbability(sender, recipient) {
		t.totalDropped++
		return
	}
	deliverAt := now + t.connectionDelay(sender, recipient)
	heap.Push(&t.pq, queueItem{
		envelope: Envelope{
			Message:     m.Clone(),
			Recipient:   recipient,
			SendTick:    now,
			DeliverTick: deliverAt,
		},
		seq: t.nextSeq,
	})
	t.nextSeq++
}

// Receive drains and returns, in delivery order, every envelope whose
// DeliverTick is <= now. The queue is left holding only envelopes still in
// flight.
func (t *Transport) Receive(now int64) []Envelope {
	var due []Envelope
	for t.pq.Len() > 0 && t.pq.items[0].envelope.DeliverTick <= now {
		item := heap.Pop(&t.pq).(queueItem)
		due = append(due, item.envelope)
	}
	return due
}

// Pending reports how many envelopes are still in flight. Useful for
// driver termination diagnostics and tests.
func (t *Transport) Pending() int {
	return t.pq.Len()
}

// Stats returns the cumulative number of sends attempted and the number
// of those that were dropped by the per-pair drop roll, since Transport
// construction.
func (t *Transport) Stats() (sent, dropped int64) {
	return t.totalSent, t.totalDropped
}
