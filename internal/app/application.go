package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/cache"
	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/capture/blobstore"
	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/runner"
	"github.com/raysh454/miru/internal/vlm"
)

// Application is the runtime state container for one process. It owns the
// model session, the browser capturer and the verdict cache, and shares them
// across every suite run. Pass Application into code that needs these rather
// than using package-level variables, so lifecycle stays visible and tests
// can substitute stubs.
type Application struct {
	Config *Config
	Logger logging.Logger
	Runner *runner.Runner

	session  vlm.Session
	capturer capture.Capturer
	verdicts assert.VerdictCache
}

// NewApplication wires the full evaluation pipeline from config. The model
// is loaded here, once, before any test runs; construction fails fast on a
// missing or corrupt model file so no inference is ever attempted against it.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("miru")
	}

	session, err := vlm.NewSession(cfg.VLMCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing model session: %w", err)
	}

	capturer, err := capture.NewChromedpCapturer(cfg.CaptureCfg, logger)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("initializing capturer: %w", err)
	}

	var verdicts assert.VerdictCache
	switch {
	case cfg.DisableCache:
		// leave nil; evaluator treats nil as cache-off
	case cfg.CacheDir != "":
		verdicts, err = cache.NewSQLiteStore(cfg.CacheDir, logger)
		if err != nil {
			capturer.Close()
			session.Close()
			return nil, fmt.Errorf("opening persistent verdict cache: %w", err)
		}
	default:
		verdicts = cache.NewMemoryStore()
	}

	var artifacts *blobstore.Blobstore
	if cfg.ArtifactsDir != "" {
		artifacts, err = blobstore.New(cfg.ArtifactsDir)
		if err != nil {
			logger.Warn("screenshot artifacts disabled",
				logging.Field{Key: "error", Value: err.Error()})
			artifacts = nil
		}
	}

	evaluator := assert.NewEvaluator(session, verdicts, cfg.Retry, logger)
	run := runner.New(capturer, evaluator, artifacts, cfg.RunnerCfg, logger)

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Runner:   run,
		session:  session,
		capturer: capturer,
		verdicts: verdicts,
	}, nil
}

// RunSuite loads and executes one suite file, writes the summary to w, and
// reports whether every assertion passed.
func (a *Application) RunSuite(ctx context.Context, suitePath string, w io.Writer, verbose bool) (bool, error) {
	suite, err := runner.LoadSuite(suitePath)
	if err != nil {
		return false, err
	}

	result, err := a.Runner.Run(ctx, suite)
	if err != nil {
		return false, err
	}

	runner.WriteSummary(w, result, verbose)
	return result.Failed == 0 && result.Errored == 0, nil
}

// Shutdown releases the browser, model session and cache.
func (a *Application) Shutdown() error {
	var errs []error
	if a.capturer != nil {
		errs = append(errs, a.capturer.Close())
	}
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.verdicts != nil {
		errs = append(errs, a.verdicts.Close())
	}
	return errors.Join(errs...)
}
