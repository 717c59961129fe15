package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]), writes the summary to
// stdout and returns the semantic exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv, err := ParseInvocation(args)
	if err != nil {
		code := ExitCode(err)
		if code == ExitSuccess {
			fmt.Fprint(stdout, err.Error())
		} else {
			fmt.Fprintln(stderr, err)
		}
		return code
	}
	res, err := ExecuteWithOptions(ctx, inv, Options{Logs: stderr})
	if res.Report != nil {
		WriteSummary(stdout, res, inv.DryRun)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
	}
	return res.ExitCode
}

// WriteSummary prints a short human-readable account of a run.
func WriteSummary(w io.Writer, res Result, dryRun bool) {
	rep := res.Report
	if rep == nil {
		return
	}
	upToDate := len(rep.Discovered) - len(rep.Stale)
	if dryRun {
		stale := make([]string, 0, len(rep.Stale))
		for _, c := range rep.Stale {
			stale = append(stale, fmt.Sprintf("%s (%s)", c.Path, c.Kind))
		}
		sort.Strings(stale)
		for _, s := range stale {
			fmt.Fprintf(w, "stale %s\n", s)
		}
		fmt.Fprintf(w, "%d stale, %d up to date\n", len(rep.Stale), upToDate)
		return
	}
	fmt.Fprintf(w, "%d compiled, %d failed, %d up to date\n",
		len(rep.Outcomes)-len(rep.Failures), len(rep.Failures), upToDate)
	if res.RunID != "" {
		fmt.Fprintf(w, "run %s\n", res.RunID)
	}
}
