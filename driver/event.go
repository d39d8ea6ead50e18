package driver

import (
	"log"
	"sync"

	"github.com/tolelom/qvote/block"
)

// EventType labels what happened during a run.
type EventType string

const (
	// EventSlotConfirmed fires the first tick a slot's forged block has
	// been observed on more than half the driven nodes.
	EventSlotConfirmed EventType = "slot_confirmed"
	// EventRunTerminated fires when Run returns, once Step has reported
	// termination. Driving the loop with Step directly does not emit it.
	EventRunTerminated EventType = "run_terminated"
)

// Event carries a typed payload emitted by a running Driver.
type Event struct {
	Type        EventType    `json:"type"`
	Tick        int64        `json:"tick"`
	Slot        block.SlotID `json:"slot,omitempty"`
	ConfirmedBy int          `json:"confirmed_by,omitempty"`
	NodeCount   int          `json:"node_count,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker over Driver events. Subscribe before
// the run starts; Emit delivers synchronously on the calling goroutine
// (the Driver's own), so handlers must not block.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously. Each
// handler is guarded by panic recovery so a misbehaving subscriber cannot
// halt the simulation loop.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[driver] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
