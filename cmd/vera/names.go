package main

import (
	"github.com/spf13/cobra"

	"vera/internal/ast"
)

var namesCmd = &cobra.Command{
	Use:   "names <ident>...",
	Short: "Show the compiled spelling of identifiers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, 0, len(args))
		for _, name := range args {
			rows = append(rows, []string{name, ast.EscapeName(name)})
		}
		table(cmd.OutOrStdout(), rows)
		return nil
	},
}
