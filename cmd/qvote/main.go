// Command qvote runs and inspects quorum-voting simulations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qvote",
	Short: "Quorum-voting consensus simulator",
	Long: `qvote drives a multi-node quorum-voting protocol over a simulated,
lossy network and reports how the chain converges.

Key features:
- Configurable node count, network loss, and latency
- Deterministic logical-clock scheduling for reproducible runs
- Preset parameter sets for local, stress, and lossy-WAN conditions`,
}

func main() {
	rootCmd.AddCommand(runCmd(), paramsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
