// Package config holds the simulation's tunable parameters: node count,
// termination threshold, the transport's delay/drop model, and the two
// liveness timeouts (spec.md §6). Grounded on the teacher's own
// config.Config: a plain JSON-serialisable struct with a Default
// constructor, a Validate method, and file Load/Save helpers.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parameters holds every externally tunable value of a simulation run.
type Parameters struct {
	// NodeCount is the number of participants, fixed for the run.
	NodeCount int `json:"node_count"`

	// GenerateBlocks is the termination threshold: the run stops once a
	// majority of nodes have committed at least this many blocks.
	GenerateBlocks int `json:"generate_blocks"`

	// MaxLoopIterations caps the number of ticks the Driver will run
	// before giving up even if the threshold was never reached.
	MaxLoopIterations int64 `json:"max_loop_iterations"`

	// MaxDistance bounds the node plane coordinates used by Transport's
	// connection-delay formula.
	MaxDistance float64 `json:"max_distance"`

	// LostMessagesPercentage is the initial per-node drop rate, 0-100.
	LostMessagesPercentage float64 `json:"lost_messages_percentage"`

	// DelayMultiplier scales distance x speed into a delivery delay.
	DelayMultiplier float64 `json:"delay_multiplier"`

	// BlankBlockTimeout is the idle time, in ticks, before any node
	// fabricates a blank block for the current slot.
	BlankBlockTimeout int64 `json:"blank_block_timeout"`

	// ChainUpdateTimeout is the idle time, in ticks, before a node
	// requests a chain update from its peers.
	ChainUpdateTimeout int64 `json:"chain_update_timeout"`

	// KeepExcessiveMessages controls whether evidence past the point it
	// stopped mattering for a gating decision is retained or dropped.
	KeepExcessiveMessages bool `json:"keep_excessive_messages"`
}

// Default returns a small, friendly three-node configuration suitable for
// a quick local run.
func Default() Parameters {
	return Parameters{
		NodeCount:              3,
		GenerateBlocks:         10,
		MaxLoopIterations:      5000,
		MaxDistance:            100,
		LostMessagesPercentage: 0,
		DelayMultiplier:        1,
		BlankBlockTimeout:      50,
		ChainUpdateTimeout:     100,
		KeepExcessiveMessages:  false,
	}
}

// Local is an alias for Default: a lossless, low-latency single-machine
// run.
func Local() Parameters {
	return Default()
}

// Stress exercises the one-third-loss scenario of spec.md §8: a larger
// node set under sustained partial loss, run until the tick cap.
func Stress() Parameters {
	p := Default()
	p.NodeCount = 9
	p.GenerateBlocks = 16
	p.MaxLoopIterations = 20000
	p.LostMessagesPercentage = 30
	p.DelayMultiplier = 2
	return p
}

// LossyWAN models a geographically spread, high-latency, moderately lossy
// deployment — a larger max_distance and delay_multiplier than Default,
// with enough loss to regularly exercise the chain-update path.
func LossyWAN() Parameters {
	p := Default()
	p.NodeCount = 7
	p.MaxDistance = 1000
	p.DelayMultiplier = 25
	p.LostMessagesPercentage = 15
	p.BlankBlockTimeout = 200
	p.ChainUpdateTimeout = 400
	return p
}

// Valid reports whether p describes a runnable simulation.
func (p Parameters) Valid() error {
	if p.NodeCount <= 0 {
		return fmt.Errorf("node_count must be positive, got %d", p.NodeCount)
	}
	if p.GenerateBlocks <= 0 {
		return fmt.Errorf("generate_blocks must be positive, got %d", p.GenerateBlocks)
	}
	if p.MaxLoopIterations <= 0 {
		return fmt.Errorf("max_loop_iterations must be positive, got %d", p.MaxLoopIterations)
	}
	if p.MaxDistance < 0 {
		return fmt.Errorf("max_distance must not be negative, got %f", p.MaxDistance)
	}
	if p.LostMessagesPercentage < 0 || p.LostMessagesPercentage > 100 {
		return fmt.Errorf("lost_messages_percentage must be 0-100, got %f", p.LostMessagesPercentage)
	}
	if p.DelayMultiplier < 0 {
		return fmt.Errorf("delay_multiplier must not be negative, got %f", p.DelayMultiplier)
	}
	if p.BlankBlockTimeout <= 0 {
		return fmt.Errorf("blank_block_timeout must be positive, got %d", p.BlankBlockTimeout)
	}
	if p.ChainUpdateTimeout <= 0 {
		return fmt.Errorf("chain_update_timeout must be positive, got %d", p.ChainUpdateTimeout)
	}
	return nil
}

// Load reads a JSON parameters file from path, starting from Default so
// any field the file omits keeps its default value, then validates it.
func Load(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, err
	}
	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		return Parameters{}, err
	}
	if err := p.Valid(); err != nil {
		return Parameters{}, fmt.Errorf("config validation: %w", err)
	}
	return p, nil
}

// Save writes p to path as indented JSON.
func Save(p Parameters, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
