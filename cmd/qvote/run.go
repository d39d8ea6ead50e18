package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tolelom/qvote/config"
	"github.com/tolelom/qvote/driver"
	"github.com/tolelom/qvote/metrics"
	"github.com/tolelom/qvote/transport"
)

// printSlotConfirmed is the console printer cmd/qvote subscribes to a
// Driver's Emitter, one line per slot as it reaches majority confirmation.
// Printed to stderr so stdout stays reserved for the final JSON Result.
func printSlotConfirmed(ev driver.Event) {
	fmt.Fprintf(os.Stderr, "tick %d: slot %d confirmed by %d/%d nodes\n", ev.Tick, ev.Slot, ev.ConfirmedBy, ev.NodeCount)
}

func runCmd() *cobra.Command {
	var (
		paramsPath string
		preset     string
		seed       int64
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single simulation to completion",
		Long: `Run loads a parameter set (from --preset, or --params for a JSON file,
defaulting to the local preset), drives the simulation to termination, and
prints a final summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := resolveParams(paramsPath, preset)
			if err != nil {
				return err
			}

			logger := log.NewLogger("qvote")
			if quiet {
				logger = log.NewNoOpLogger()
			}

			tr := transport.New(params.DelayMultiplier, rand.New(rand.NewSource(seed)))
			m, err := metrics.NewRunMetrics(prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}
			d, err := driver.New(params, tr, rand.New(rand.NewSource(seed+1)), m, logger)
			if err != nil {
				return fmt.Errorf("constructing driver: %w", err)
			}
			if !quiet {
				d.Events().Subscribe(driver.EventSlotConfirmed, printSlotConfirmed)
			}

			result := d.Run()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&paramsPath, "params", "", "path to a JSON parameters file")
	cmd.Flags().StringVar(&preset, "preset", "local", "built-in preset to use when --params is not given: local, stress, lossy-wan")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for network delay/drop and node placement")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-run log output, print only the final JSON summary")

	return cmd
}

func resolveParams(paramsPath, preset string) (config.Parameters, error) {
	if paramsPath != "" {
		return config.Load(paramsPath)
	}
	switch preset {
	case "local", "":
		return config.Local(), nil
	case "stress":
		return config.Stress(), nil
	case "lossy-wan":
		return config.LossyWAN(), nil
	default:
		return config.Parameters{}, fmt.Errorf("unknown preset %q (want local, stress, or lossy-wan)", preset)
	}
}
