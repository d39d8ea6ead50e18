package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/qvote/config"
)

func paramsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Generate and validate parameter files",
	}
	cmd.AddCommand(paramsGenerateCmd(), paramsCheckCmd())
	return cmd
}

func paramsGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <local|stress|lossy-wan>",
		Short: "Write a named preset's parameters to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			params, err := resolveParams("", args[0])
			if err != nil {
				return err
			}
			if out == "" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(params)
			}
			if err := config.Save(params, out); err != nil {
				return fmt.Errorf("saving %s: %w", out, err)
			}
			fmt.Printf("wrote %s preset to %s\n", args[0], out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "file to write (defaults to stdout)")
	return cmd
}

func paramsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a parameters JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid (%d nodes, target %d blocks, tick cap %d)\n",
				args[0], p.NodeCount, p.GenerateBlocks, p.MaxLoopIterations)
			return nil
		},
	}
}
