package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/capture/blobstore"
	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/vlm"
)

// ErrKind distinguishes why a query did not produce a passing verdict, so a
// report can tell "model said no" apart from "model crashed" and "page failed
// to render".
type ErrKind string

const (
	ErrKindNone            ErrKind = ""
	ErrKindCapture         ErrKind = "capture"
	ErrKindInference       ErrKind = "inference"
	ErrKindTimeout         ErrKind = "inference-timeout"
	ErrKindUninterpretable ErrKind = "uninterpretable-response"
	ErrKindModelLoad       ErrKind = "model-load"
	ErrKindOther           ErrKind = "error"
)

// QueryResult is the outcome of one assertion within a test.
type QueryResult struct {
	Question    string          `json:"question"`
	Expect      string          `json:"expect"`
	Verdict     *assert.Verdict `json:"verdict,omitempty"`
	Err         string          `json:"error,omitempty"`
	ErrKind     ErrKind         `json:"error_kind,omitempty"`
	Screenshots []string        `json:"screenshots,omitempty"` // blob hashes
}

// Passed reports whether the query produced a passing verdict.
func (q QueryResult) Passed() bool {
	return q.Err == "" && q.Verdict != nil && q.Verdict.Passed
}

// TestResult is the outcome of one UITest.
type TestResult struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	URL     string        `json:"url"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Queries []QueryResult `json:"queries"`
}

// Failed reports whether any query in the test failed or errored.
func (t TestResult) Failed() bool {
	for _, q := range t.Queries {
		if !q.Passed() {
			return true
		}
	}
	return false
}

// RunResult aggregates one suite run.
type RunResult struct {
	RunID    string       `json:"run_id"`
	Suite    string       `json:"suite"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Tests    []TestResult `json:"tests"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Errored  int          `json:"errored"`
	ModelTag string       `json:"model"`
}

type Config struct {
	// Concurrency bounds how many tests run at once. 1 runs serially.
	Concurrency int

	// ResultsPath is the JSON file run records are appended to. Empty
	// disables result persistence.
	ResultsPath string
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 1,
		ResultsPath: "artifacts/results.json",
	}
}

// Runner binds the capture adapter and the assertion evaluator to a test
// suite and reports per-test pass/fail.
type Runner struct {
	capturer  capture.Capturer
	evaluator *assert.Evaluator
	artifacts *blobstore.Blobstore
	cfg       *Config
	logger    logging.Logger
}

// New wires a Runner. artifacts may be nil to skip screenshot persistence.
func New(capturer capture.Capturer, evaluator *assert.Evaluator, artifacts *blobstore.Blobstore, cfg *Config, logger logging.Logger) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Runner{
		capturer:  capturer,
		evaluator: evaluator,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes every test in the suite and returns the aggregated result.
// Tests run with bounded concurrency; individual failures never abort the
// run, they are recorded with their distinguishing error kind.
func (r *Runner) Run(ctx context.Context, suite *Suite) (*RunResult, error) {
	run := &RunResult{
		RunID: uuid.NewString(),
		Suite: suite.Name,
		Start: time.Now().UTC(),
		Tests: make([]TestResult, len(suite.Tests)),
	}

	concurrency := r.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, test := range suite.Tests {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, test UITest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			run.Tests[i] = r.runTest(ctx, test)
		}(i, test)
	}
	wg.Wait()

	run.End = time.Now().UTC()
	for _, t := range run.Tests {
		for _, q := range t.Queries {
			switch {
			case q.Passed():
				run.Passed++
			case q.ErrKind == ErrKindNone:
				run.Failed++
			default:
				run.Errored++
			}
			if q.Verdict != nil {
				run.ModelTag = q.Verdict.Model
			}
		}
	}

	if r.cfg.ResultsPath != "" {
		if err := AppendResults(r.cfg.ResultsPath, run); err != nil {
			r.logger.Error("failed to save results",
				logging.Field{Key: "path", Value: r.cfg.ResultsPath},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return run, nil
}

func (r *Runner) runTest(ctx context.Context, test UITest) TestResult {
	r.logger.Info("starting test", logging.Field{Key: "name", Value: test.Name})

	result := TestResult{
		ID:    uuid.NewString(),
		Name:  test.Name,
		URL:   test.URL,
		Start: time.Now().UTC(),
	}

	for _, q := range test.Queries {
		result.Queries = append(result.Queries, r.runQuery(ctx, test, q))
	}

	result.End = time.Now().UTC()
	r.logger.Info("test complete",
		logging.Field{Key: "name", Value: test.Name},
		logging.Field{Key: "failed", Value: result.Failed()})
	return result
}

func (r *Runner) runQuery(ctx context.Context, test UITest, q UIQuery) QueryResult {
	qr := QueryResult{Question: q.Question, Expect: q.Expect}

	records, err := r.captureFor(ctx, test, q)
	if err != nil {
		qr.Err = err.Error()
		qr.ErrKind = classifyError(err)
		return qr
	}

	for _, rec := range records {
		qr.Screenshots = append(qr.Screenshots, rec.Hash)
		if r.artifacts != nil {
			if _, err := r.artifacts.Put(rec.Bytes); err != nil {
				r.logger.Warn("failed to store screenshot artifact",
					logging.Field{Key: "hash", Value: rec.Hash},
					logging.Field{Key: "error", Value: err.Error()})
			}
		}
	}

	query, err := q.Compile()
	if err != nil {
		// Suites are validated at load time; reaching this means the test was
		// constructed programmatically with a bad expect spec.
		qr.Err = err.Error()
		qr.ErrKind = ErrKindOther
		return qr
	}

	// For a series the final frame carries the settled visual state.
	verdict, err := r.evaluator.Evaluate(ctx, records[len(records)-1], query)
	if err != nil {
		qr.Err = err.Error()
		qr.ErrKind = classifyError(err)
		return qr
	}
	qr.Verdict = verdict
	return qr
}

func (r *Runner) captureFor(ctx context.Context, test UITest, q UIQuery) ([]*capture.Record, error) {
	target := q.Target(test)
	if q.IntervalMS > 0 {
		frames := q.Frames
		if frames <= 0 {
			frames = 5
		}
		return r.capturer.CaptureSeries(ctx, target, time.Duration(q.IntervalMS)*time.Millisecond, frames)
	}
	rec, err := r.capturer.Capture(ctx, target)
	if err != nil {
		return nil, err
	}
	return []*capture.Record{rec}, nil
}

func classifyError(err error) ErrKind {
	switch {
	case errors.Is(err, capture.ErrCapture):
		return ErrKindCapture
	case errors.Is(err, assert.ErrUninterpretable):
		return ErrKindUninterpretable
	case errors.Is(err, vlm.ErrInferenceTimeout):
		return ErrKindTimeout
	case errors.Is(err, vlm.ErrInference):
		return ErrKindInference
	case errors.Is(err, vlm.ErrModelLoad):
		return ErrKindModelLoad
	default:
		return ErrKindOther
	}
}
