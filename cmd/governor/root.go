package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "governor",
	Short: "Policy enforcement engine with a tamper-evident audit trail",
	Long: `Governor evaluates business operations against versioned policies and
enforces them in three modes: monitor (log only), human-in-loop (hold for
approval), and autonomous (block).

Every evaluation is appended to a hash-chained, append-only audit log;
violations open cases with repeat-offense escalation and a disciplinary
suggestion ladder.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
