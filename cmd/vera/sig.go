package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vera/internal/summary"
)

var sigCmd = &cobra.Command{
	Use:   "sig [flags] <manifest|file.vsum> [module]",
	Short: "Print the resolved signatures of a program",
	Long: `Print declarations and member signatures per module. The input is either a
manifest, which is resolved first, or a summary file written by check --out.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSig,
}

func init() {
	sigCmd.Flags().String("format", "text", "output format (text|json|msgpack)")
	sigCmd.Flags().Bool("synthesized", false, "include synthesized members")
}

func runSig(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	synthesized, err := cmd.Flags().GetBool("synthesized")
	if err != nil {
		return fmt.Errorf("failed to get synthesized flag: %w", err)
	}

	var mods []summary.ModuleSummary
	if strings.HasSuffix(args[0], ".vsum") {
		mods, err = summary.ReadFile(args[0])
		if err != nil {
			return err
		}
	} else {
		s, err := load(cmd, args[0])
		if err != nil {
			return err
		}
		if s.bag.HasErrors() {
			return fmt.Errorf("%s has errors; run vera check", args[0])
		}
		mods = summary.Build(s.prog, summary.Options{Synthesized: synthesized, Recursive: s.isRecursive})
	}
	if len(args) == 2 {
		m, ok := summary.Find(mods, args[1])
		if !ok {
			return fmt.Errorf("no module %q", args[1])
		}
		mods = []summary.ModuleSummary{m}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		printSignatures(out, mods)
		return nil
	case "json":
		return summary.WriteJSON(out, mods)
	case "msgpack":
		if out == os.Stdout && isTerminal(os.Stdout) {
			return fmt.Errorf("refusing to write msgpack to a terminal")
		}
		return summary.Encode(out, mods)
	}
	return fmt.Errorf("unknown format: %s", format)
}

func printSignatures(out io.Writer, mods []summary.ModuleSummary) {
	for i, m := range mods {
		if i > 0 {
			fmt.Fprintln(out)
		}
		title := "module " + m.Name
		if m.Abstract {
			title = "abstract " + title
		}
		if m.Refines != "" {
			title += " refines " + m.Refines
		}
		fmt.Fprintln(out, header(title)+" "+dim(fmt.Sprintf("height %d", m.Height)))
		for _, imp := range m.Imports {
			fmt.Fprintf(out, "  import %s\n", imp)
		}
		for _, d := range m.Decls {
			line := "  " + d.Kind + " " + d.Name
			if len(d.TypeParams) > 0 {
				line += "<" + strings.Join(d.TypeParams, ", ") + ">"
			}
			if d.Equality != "" {
				line += " " + dim("equality "+d.Equality)
			}
			fmt.Fprintln(out, line)
			for _, c := range d.Ctors {
				fmt.Fprintf(out, "    | %s(%s)\n", c.Name, strings.Join(c.Fields, ", "))
			}
			for _, mem := range d.Members {
				var words []string
				if mem.Ghost {
					words = append(words, "ghost")
				}
				if mem.Static {
					words = append(words, "static")
				}
				words = append(words, mem.Kind)
				line := fmt.Sprintf("    %s %s%s", strings.Join(words, " "), mem.Name, mem.Signature)
				if mem.Kind == "field" || mem.Kind == "var" {
					line = fmt.Sprintf("    %s %s: %s", strings.Join(words, " "), mem.Name, mem.Signature)
				}
				if mem.Recursive {
					line += " " + dim("(recursive)")
				}
				fmt.Fprintln(out, line)
			}
		}
		if len(m.Ambiguous) > 0 {
			fmt.Fprintf(out, "  ambiguous constructors: %s\n", strings.Join(m.Ambiguous, ", "))
		}
	}
}
