package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleethq/governor/pkg/policy/source"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy tooling",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <file.yaml>",
	Short: "Validate a policy seed file",
	Long: `Parse and validate a YAML policy seed document without importing it.
Condition operators, regex patterns, and value arities are checked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := source.ParseFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d valid policies\n", args[0], len(doc.Policies))
		for _, p := range doc.Policies {
			fmt.Printf("  %-16s %-12s mode=%-13s severity=%-8s conditions=%d\n",
				p.Code, p.OperationType, p.Mode, p.Severity, len(p.Conditions))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)
}
