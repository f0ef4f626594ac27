package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vera/internal/diag"
	"vera/internal/summary"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <manifest.toml|manifest.yaml>",
	Short: "Resolve a program manifest and report diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	checkCmd.Flags().String("out", "", "write the module summary file here on success")
	checkCmd.Flags().String("min-severity", "info", "hide diagnostics below this severity (info|warning|error)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	minLabel, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return fmt.Errorf("failed to get min-severity flag: %w", err)
	}
	minSev, err := diag.ParseSeverity(minLabel)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	s, runErr := load(cmd, args[0])
	if s == nil {
		return runErr
	}
	out := cmd.OutOrStdout()
	s.bag.Sort()
	if text := diag.FormatShort(diag.AtLeast(s.bag.Items(), minSev), s.fs, withNotes); text != "" {
		fmt.Fprintln(out, text)
	}
	if showTimings && s.res != nil {
		printTimings(cmd.ErrOrStderr(), s.res.Timings)
	}
	if runErr != nil {
		return runErr
	}

	errs, warns := countSeverities(s.bag.Items())
	// resolver counts errors past the bag limit too
	errs = max(errs, s.res.Errors)
	if !quiet {
		status := okColor.Sprint("ok")
		if errs > 0 {
			status = errorColor.Sprint("failed")
		}
		fmt.Fprintf(out, "%s: %s, %d modules, %d errors, %d warnings\n",
			s.path, status, len(s.res.Order), errs, warns)
	}
	if errs > 0 {
		return errSilent
	}

	if outPath != "" {
		mods := summary.Build(s.prog, summary.Options{Recursive: s.isRecursive})
		if err := summary.WriteFile(outPath, mods); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(out, "wrote %s\n", outPath)
		}
	}
	return nil
}

func countSeverities(items []diag.Diagnostic) (errs, warns int) {
	for _, d := range items {
		switch {
		case d.Severity.Fails():
			errs++
		case d.Severity == diag.SevWarning:
			warns++
		}
	}
	return errs, warns
}
