package runner_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/cache"
	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/capture/blobstore"
	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/retry"
	"github.com/raysh454/miru/internal/runner"
	"github.com/raysh454/miru/internal/vlm"
)

//
// ───────────────────────────────────────────────
//   Stubs
// ───────────────────────────────────────────────
//

// stubCapturer serves canned screenshots keyed by URL and records series requests.
type stubCapturer struct {
	mu          sync.Mutex
	failURLs    map[string]bool
	seriesCalls int
}

func (c *stubCapturer) Capture(ctx context.Context, target capture.Target) (*capture.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failURLs[target.URL] {
		return nil, fmt.Errorf("%w: renderer crashed for %s", capture.ErrCapture, target.URL)
	}
	return capture.NewRecord([]byte("pixels:"+target.URL+target.Selector), target.URL, "Fixture"), nil
}

func (c *stubCapturer) CaptureSeries(ctx context.Context, target capture.Target, interval time.Duration, count int) ([]*capture.Record, error) {
	c.mu.Lock()
	c.seriesCalls++
	c.mu.Unlock()
	records := make([]*capture.Record, count)
	for i := range records {
		records[i] = capture.NewRecord([]byte(fmt.Sprintf("frame-%d:%s", i, target.URL)), target.URL, "Fixture")
	}
	return records, nil
}

func (c *stubCapturer) Close() error { return nil }

// scriptedSession answers by prompt prefix so one session serves mixed suites.
type scriptedSession struct {
	answers map[string]string // question -> raw answer
	err     error
}

func (s *scriptedSession) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if raw, ok := s.answers[prompt]; ok {
		return raw, nil
	}
	return "Yes", nil
}

func (s *scriptedSession) Model() string { return "scripted@1" }
func (s *scriptedSession) Close() error  { return nil }

func newTestRunner(t *testing.T, capturer capture.Capturer, session vlm.Session, cfg *runner.Config) *runner.Runner {
	t.Helper()
	policy := retry.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	ev := assert.NewEvaluator(session, cache.NewMemoryStore(), policy, logging.NoopLogger{})
	return runner.New(capturer, ev, nil, cfg, logging.NoopLogger{})
}

func passingTest(name, url string) runner.UITest {
	return runner.UITest{
		Name: name,
		URL:  url,
		Queries: []runner.UIQuery{
			{Question: "Is the page rendered?", Expect: "yes"},
		},
	}
}

func TestRun_CountsPassFailError(t *testing.T) {
	t.Parallel()

	capturer := &stubCapturer{failURLs: map[string]bool{"http://localhost/broken": true}}
	session := &scriptedSession{answers: map[string]string{
		"Is there an error banner?": "No, the page looks fine.",
	}}
	cfg := &runner.Config{Concurrency: 2}
	r := newTestRunner(t, capturer, session, cfg)

	suite := &runner.Suite{
		Name: "mixed",
		Tests: []runner.UITest{
			passingTest("renders", "http://localhost/ok"),
			{
				Name: "banner present",
				URL:  "http://localhost/ok",
				Queries: []runner.UIQuery{
					{Question: "Is there an error banner?", Expect: "yes"},
				},
			},
			passingTest("capture fails", "http://localhost/broken"),
		},
	}

	run, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Passed != 1 || run.Failed != 1 || run.Errored != 1 {
		t.Errorf("counts = %d passed, %d failed, %d errored; want 1/1/1",
			run.Passed, run.Failed, run.Errored)
	}
	if run.ModelTag != "scripted@1" {
		t.Errorf("ModelTag = %q", run.ModelTag)
	}
	if len(run.Tests) != 3 {
		t.Fatalf("got %d test results", len(run.Tests))
	}

	// Results keep suite order regardless of concurrency.
	if run.Tests[0].Name != "renders" || run.Tests[2].Name != "capture fails" {
		t.Error("test results out of suite order")
	}

	brokenQ := run.Tests[2].Queries[0]
	if brokenQ.ErrKind != runner.ErrKindCapture {
		t.Errorf("capture failure classified as %q, want %q", brokenQ.ErrKind, runner.ErrKindCapture)
	}
	if !run.Tests[2].Failed() {
		t.Error("a test with an errored query must count as failed")
	}
}

func TestRun_ErrorKindClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		wantKind runner.ErrKind
	}{
		{"timeout", vlm.ErrInferenceTimeout, runner.ErrKindTimeout},
		{"inference", vlm.ErrInference, runner.ErrKindInference},
		{"model load", vlm.ErrModelLoad, runner.ErrKindModelLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRunner(t, &stubCapturer{}, &scriptedSession{err: tt.err}, &runner.Config{})
			suite := &runner.Suite{Name: "s", Tests: []runner.UITest{passingTest("t", "http://localhost/x")}}

			run, err := r.Run(context.Background(), suite)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := run.Tests[0].Queries[0].ErrKind; got != tt.wantKind {
				t.Errorf("ErrKind = %q, want %q", got, tt.wantKind)
			}
			if run.Errored != 1 {
				t.Errorf("Errored = %d, want 1", run.Errored)
			}
		})
	}
}

func TestRun_UninterpretableClassified(t *testing.T) {
	t.Parallel()
	session := &scriptedSession{answers: map[string]string{
		"Is the page rendered?": "hard to say from this angle",
	}}
	r := newTestRunner(t, &stubCapturer{}, session, &runner.Config{})
	suite := &runner.Suite{Name: "s", Tests: []runner.UITest{passingTest("t", "http://localhost/x")}}

	run, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := run.Tests[0].Queries[0].ErrKind; got != runner.ErrKindUninterpretable {
		t.Errorf("ErrKind = %q, want %q", got, runner.ErrKindUninterpretable)
	}
}

func TestRun_SeriesCapturesAllFramesAssertsFinal(t *testing.T) {
	t.Parallel()
	capturer := &stubCapturer{}
	r := newTestRunner(t, capturer, &scriptedSession{}, &runner.Config{})

	suite := &runner.Suite{
		Name: "animated",
		Tests: []runner.UITest{{
			Name: "spinner settles",
			URL:  "http://localhost/spin",
			Queries: []runner.UIQuery{
				{Question: "Has the spinner stopped?", Expect: "yes", IntervalMS: 100, Frames: 3},
			},
		}},
	}

	run, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if capturer.seriesCalls != 1 {
		t.Errorf("CaptureSeries called %d times, want 1", capturer.seriesCalls)
	}
	q := run.Tests[0].Queries[0]
	if len(q.Screenshots) != 3 {
		t.Errorf("recorded %d screenshot hashes, want 3", len(q.Screenshots))
	}
	if q.Verdict == nil {
		t.Fatal("expected a verdict on the final frame")
	}
	// The asserted capture is the last frame of the series.
	if q.Verdict.CaptureHash != q.Screenshots[2] {
		t.Error("verdict must be computed on the final frame")
	}
}

func TestRun_PersistsResultsAndArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	resultsPath := filepath.Join(dir, "results.json")
	bs, err := blobstore.New(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	policy := retry.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	ev := assert.NewEvaluator(&scriptedSession{}, nil, policy, logging.NoopLogger{})
	r := runner.New(&stubCapturer{}, ev, bs, &runner.Config{ResultsPath: resultsPath}, logging.NoopLogger{})

	suite := &runner.Suite{Name: "s", Tests: []runner.UITest{passingTest("t", "http://localhost/x")}}
	run, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(resultsPath)
	if err != nil {
		t.Fatalf("results file not written: %v", err)
	}
	var runs []runner.RunResult
	if err := json.Unmarshal(data, &runs); err != nil {
		t.Fatalf("results file is not a JSON array: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != run.RunID {
		t.Error("results file does not contain this run")
	}

	hash := run.Tests[0].Queries[0].Screenshots[0]
	if !bs.Exists(hash) {
		t.Error("screenshot artifact missing from blobstore")
	}
}
