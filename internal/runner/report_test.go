package runner_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/runner"
)

func sampleRun(id string) *runner.RunResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &runner.RunResult{
		RunID:    id,
		Suite:    "homepage checks",
		Start:    start,
		End:      start.Add(1500 * time.Millisecond),
		ModelTag: "moondream@123",
		Passed:   1,
		Failed:   1,
		Errored:  1,
		Tests: []runner.TestResult{
			{
				ID:   "t1",
				Name: "submit button renders",
				URL:  "http://localhost/button",
				Queries: []runner.QueryResult{
					{
						Question: "Is there a Submit button?",
						Expect:   "yes",
						Verdict:  &assert.Verdict{Passed: true, Raw: "Yes, bottom right."},
					},
				},
			},
			{
				ID:   "t2",
				Name: "banner text",
				URL:  "http://localhost/banner",
				Queries: []runner.QueryResult{
					{
						Question: "What does the banner say?",
						Expect:   "contains:could not load",
						Verdict:  &assert.Verdict{Passed: false, Raw: "It says the data failed to load."},
					},
					{
						Question: "Is the page up?",
						Expect:   "yes",
						Err:      "inference: connection refused",
						ErrKind:  runner.ErrKindInference,
					},
				},
			},
		},
	}
}

func TestAppendResults_AccumulatesRuns(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "results.json")

	if err := runner.AppendResults(path, sampleRun("run-1")); err != nil {
		t.Fatalf("first AppendResults: %v", err)
	}
	if err := runner.AppendResults(path, sampleRun("run-2")); err != nil {
		t.Fatalf("second AppendResults: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading results: %v", err)
	}
	var runs []runner.RunResult
	if err := json.Unmarshal(data, &runs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-1" || runs[1].RunID != "run-2" {
		t.Errorf("runs = %d entries, want run-1 then run-2", len(runs))
	}
}

func TestAppendResults_CorruptFileMovedAside(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt fixture: %v", err)
	}

	if err := runner.AppendResults(path, sampleRun("run-1")); err != nil {
		t.Fatalf("AppendResults over corrupt file: %v", err)
	}

	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Error("corrupt file was not preserved aside")
	}
	data, _ := os.ReadFile(path)
	var runs []runner.RunResult
	if err := json.Unmarshal(data, &runs); err != nil || len(runs) != 1 {
		t.Errorf("fresh results file should hold one run, got %v (%d runs)", err, len(runs))
	}
}

func TestWriteSummary_Quiet(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	runner.WriteSummary(&sb, sampleRun("run-1"), false)
	out := sb.String()

	if !strings.Contains(out, "PASS  submit button renders") {
		t.Errorf("missing passing test line in:\n%s", out)
	}
	if !strings.Contains(out, "FAIL  banner text") {
		t.Errorf("missing failing test line in:\n%s", out)
	}
	if strings.Contains(out, "Yes, bottom right.") {
		t.Error("quiet mode must not print passing answers")
	}
	if !strings.Contains(out, `error [inference]`) {
		t.Errorf("missing error kind in:\n%s", out)
	}
	if !strings.Contains(out, "1 passed, 1 failed, 1 errored in 1.5s") {
		t.Errorf("missing totals line in:\n%s", out)
	}
	// contains expectations get a diff against the raw answer
	if !strings.Contains(out, "diff:") {
		t.Errorf("missing diff for contains failure in:\n%s", out)
	}
}

func TestWriteSummary_Verbose(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	runner.WriteSummary(&sb, sampleRun("run-1"), true)
	out := sb.String()

	if !strings.Contains(out, "Yes, bottom right.") {
		t.Errorf("verbose mode must print passing answers in:\n%s", out)
	}
	if !strings.Contains(out, "model: moondream@123") {
		t.Errorf("missing model tag in:\n%s", out)
	}
}
