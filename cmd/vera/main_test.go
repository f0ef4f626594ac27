package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const listManifest = `
[[module]]
name = ""

[[module.datatype]]
name = "List"
params = ["T"]

[[module.datatype.ctor]]
name = "Nil"

[[module.datatype.ctor]]
name = "Cons"
fields = [{ name = "head", type = "T" }, { name = "tail", type = "List<T>" }]

[[module.function]]
name = "Length"
params = ["T"]
formals = [{ name = "xs", type = "List<T>" }]
result = "int"
compiled = true
body = "if xs.Nil? then 0 else 1 + Length(xs.tail)"
`

const brokenManifest = `
[[module]]
name = ""

[[module.function]]
name = "F"
formals = [{ name = "x", type = "int" }]
result = "int"
body = "Missing(x)"
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

// resetFlags restores defaults; cobra keeps parsed values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--color", "off"}, args...))
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	err := rootCmd.Execute()
	runTraceCleanup()
	return out.String(), errOut.String(), err
}

func TestCheckWritesSummary(t *testing.T) {
	path := writeManifest(t, listManifest)
	vsum := filepath.Join(t.TempDir(), "out", "prog.vsum")
	out, _, err := execute(t, "check", "--out", vsum, path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ok, ") || !strings.Contains(out, "0 errors") {
		t.Fatalf("unexpected check output:\n%s", out)
	}
	if _, err := os.Stat(vsum); err != nil {
		t.Fatalf("summary not written: %v", err)
	}

	out, _, err = execute(t, "sig", vsum)
	if err != nil {
		t.Fatalf("sig: %v", err)
	}
	for _, want := range []string{"datatype List<T>", "| Cons(head: T, tail: List<T>)", "Length<T>(xs: List<T>): int", "(recursive)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("sig output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckReportsDiagnostics(t *testing.T) {
	path := writeManifest(t, brokenManifest)
	out, _, err := execute(t, "check", "--min-severity", "ERROR", path)
	if !errors.Is(err, errSilent) {
		t.Fatalf("expected silent failure, got %v", err)
	}
	if !strings.Contains(out, "prog.toml:") || !strings.Contains(out, ": error ") {
		t.Fatalf("missing diagnostic line:\n%s", out)
	}
	if !strings.Contains(out, "failed") {
		t.Fatalf("missing status line:\n%s", out)
	}
}

func TestCheckRejectsBadFlags(t *testing.T) {
	path := writeManifest(t, listManifest)
	if _, _, err := execute(t, "--equality-policy", "sometimes", "check", path); err == nil {
		t.Fatalf("expected equality policy error")
	}
	if _, _, err := execute(t, "check", "--min-severity", "fatal", path); err == nil {
		t.Fatalf("expected min-severity error")
	}
	if _, _, err := execute(t, "--color", "purple", "version"); err == nil {
		t.Fatalf("expected color error")
	}
}

func TestSigJSONModuleFilter(t *testing.T) {
	path := writeManifest(t, listManifest)
	out, _, err := execute(t, "sig", "--format", "json", path, "_module")
	if err != nil {
		t.Fatalf("sig: %v", err)
	}
	if !strings.Contains(out, `"name": "List"`) || !strings.Contains(out, `"equality": "conditional"`) {
		t.Fatalf("unexpected json:\n%s", out)
	}
	if _, _, err := execute(t, "sig", path, "Nope"); err == nil {
		t.Fatalf("expected unknown module error")
	}
}

func TestGraph(t *testing.T) {
	path := writeManifest(t, listManifest)
	out, _, err := execute(t, "graph", path)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, want := range []string{"modules", "_module", "Length  ->  Length", "recursive: {Length}"} {
		if !strings.Contains(out, want) {
			t.Fatalf("graph output missing %q:\n%s", want, out)
		}
	}
}

func TestCalc(t *testing.T) {
	tests := []struct {
		args []string
		want string
		fail bool
	}{
		{args: []string{"<", "<=", "=="}, want: "<"},
		{args: []string{"_", "_"}, want: "=="},
		{args: []string{"--default", "le", "_", "lt"}, want: "<"},
		{args: []string{"imp", "iff"}, want: "==>"},
		{args: []string{"<", ">"}, fail: true},
		{args: []string{"==>", "<"}, fail: true},
	}
	for _, tt := range tests {
		out, _, err := execute(t, append([]string{"calc"}, tt.args...)...)
		if tt.fail {
			if !errors.Is(err, errSilent) {
				t.Fatalf("calc %v: expected failure, got %v (%q)", tt.args, err, out)
			}
			continue
		}
		if err != nil {
			t.Fatalf("calc %v: %v", tt.args, err)
		}
		if got := strings.TrimSpace(out); got != tt.want {
			t.Fatalf("calc %v = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	out, _, err := execute(t, "names", "a_b", "x'", "int")
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	for _, want := range []string{"a__b", "x_k", "int_x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("names output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	out, _, err := execute(t, "version", "--format", "json", "--hash")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"tool": "vera"`) || !strings.Contains(out, `"git_commit"`) {
		t.Fatalf("unexpected version json:\n%s", out)
	}
}

func TestTraceAndProfileFlags(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, listManifest)
	traceOut := filepath.Join(dir, "run.ndjson")
	cpu := filepath.Join(dir, "cpu.out")
	_, _, err := execute(t, "--trace", traceOut, "--trace-mode", "stream", "--cpu-profile", cpu, "--timings", "check", path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	data, err := os.ReadFile(traceOut)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), "resolve") {
		t.Fatalf("trace has no resolve span:\n%s", data)
	}
	if _, err := os.Stat(cpu); err != nil {
		t.Fatalf("cpu profile missing: %v", err)
	}
}
