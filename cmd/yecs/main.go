// Package main provides the entry point for the YECS scoring service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "yecs",
		Short: "Young Entrepreneur Credit Score service",
		Long: "yecs scores young entrepreneurs on an illustrative 300-850 scale, walks applicants through a " +
			"step-by-step profile workflow and serves AI insights over a REST API.",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newScoreCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
