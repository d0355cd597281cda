package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// AppendResults appends the run record to the JSON results file, creating it
// (and its directory) if needed. The file holds a JSON array of runs so
// repeated suite executions accumulate history.
func AppendResults(path string, run *RunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	var runs []*RunResult
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &runs); err != nil {
			// Preserve the unreadable file rather than destroying history.
			backup := path + ".corrupt"
			if renameErr := os.Rename(path, backup); renameErr == nil {
				runs = nil
			} else {
				return fmt.Errorf("results file %s is corrupt and could not be moved aside: %w", path, err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
		// first run
	default:
		return fmt.Errorf("reading results file: %w", err)
	}

	runs = append(runs, run)
	out, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return nil
}

// WriteSummary renders a human-readable run summary to w. verbose includes
// passing queries and raw model answers; failures always show the raw answer
// and, for text expectations, a diff of expected vs actual.
func WriteSummary(w io.Writer, run *RunResult, verbose bool) {
	fmt.Fprintf(w, "suite %q run %s\n", run.Suite, run.RunID)
	if run.ModelTag != "" {
		fmt.Fprintf(w, "model: %s\n", run.ModelTag)
	}

	for _, t := range run.Tests {
		status := "PASS"
		if t.Failed() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s (%s)\n", status, t.Name, t.URL)

		for _, q := range t.Queries {
			switch {
			case q.Passed():
				if verbose {
					fmt.Fprintf(w, "    pass  %q -> %q\n", q.Question, q.Verdict.Raw)
				}
			case q.ErrKind != ErrKindNone:
				fmt.Fprintf(w, "    error [%s]  %q: %s\n", q.ErrKind, q.Question, q.Err)
			default:
				fmt.Fprintf(w, "    fail  %q\n", q.Question)
				fmt.Fprintf(w, "          expected %s, model answered %q\n", q.Expect, q.Verdict.Raw)
				if d := expectDiff(q); d != "" {
					fmt.Fprintf(w, "          diff: %s\n", d)
				}
			}
		}
	}

	fmt.Fprintf(w, "%d passed, %d failed, %d errored in %s\n",
		run.Passed, run.Failed, run.Errored, run.End.Sub(run.Start).Round(time.Millisecond))
}

// expectDiff renders a character diff between the expected text and the raw
// answer for contains expectations, where seeing how close the model came is
// the fastest way to spot a prompt problem.
func expectDiff(q QueryResult) string {
	if q.Verdict == nil || !strings.HasPrefix(q.Expect, "contains:") {
		return ""
	}
	want := strings.TrimPrefix(q.Expect, "contains:")
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, q.Verdict.Raw, false)
	dmp.DiffCleanupSemantic(diffs)
	return strings.TrimSpace(dmp.DiffPrettyText(diffs))
}
