package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vera/internal/ast"
)

var calcCmd = &cobra.Command{
	Use:   "calc [flags] <op>...",
	Short: "Fold the step operators of a calculation",
	Long: `Fold calculation steps into the relation the whole chain proves.
Operators are given by spelling (== < ==>) or name (eq lt imp); "_" uses the default.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().String("default", "==", "operator for steps written as _")
}

func runCalc(cmd *cobra.Command, args []string) error {
	defStr, err := cmd.Flags().GetString("default")
	if err != nil {
		return fmt.Errorf("failed to get default flag: %w", err)
	}
	def, err := ast.ParseCalcOp(defStr)
	if err != nil {
		return err
	}
	steps := make([]ast.CalcOp, len(args))
	for i, a := range args {
		if a == "_" {
			continue
		}
		if steps[i], err = ast.ParseCalcOp(a); err != nil {
			return err
		}
	}
	res, err := ast.ChainResult(def, steps)
	var calcErr *ast.CalcError
	if errors.As(err, &calcErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s step %d (%s) does not combine with %s\n",
			errorColor.Sprint("error:"), calcErr.Step+1, calcErr.Op, calcErr.Acc)
		return errSilent
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res)
	return nil
}
