package app

import (
	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/cli"
	"github.com/raysh454/miru/internal/retry"
	"github.com/raysh454/miru/internal/runner"
	"github.com/raysh454/miru/internal/vlm"
)

// Config aggregates the per-module configuration required to wire a run.
type Config struct {
	// VLMCfg configures the model session backend.
	VLMCfg *vlm.Config

	// CaptureCfg configures the browser capture adapter.
	CaptureCfg *capture.Config

	// RunnerCfg configures suite execution and result persistence.
	RunnerCfg *runner.Config

	// Retry is the policy wrapped around every inference call.
	Retry retry.Policy

	// ArtifactsDir is where screenshot blobs are stored. Empty disables
	// artifact persistence.
	ArtifactsDir string

	// CacheDir, when set, swaps the in-memory verdict cache for the
	// SQLite-backed persistent one rooted at this directory.
	CacheDir string

	// DisableCache turns the verdict cache off entirely.
	DisableCache bool
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		VLMCfg:       vlm.DefaultConfig(),
		CaptureCfg:   capture.DefaultConfig(),
		RunnerCfg:    runner.DefaultConfig(),
		Retry:        retry.DefaultPolicy(),
		ArtifactsDir: "artifacts/screenshots",
	}
}

// FromArgs overlays parsed CLI arguments onto the config.
func (c *Config) FromArgs(args *cli.CLIArgs) {
	if args == nil {
		return
	}
	if args.ModelPath != "" {
		c.VLMCfg.ModelPath = args.ModelPath
	}
	if args.Backend != "" {
		c.VLMCfg.Backend = vlm.Backend(args.Backend)
	}
	if args.Concurrency > 0 {
		c.RunnerCfg.Concurrency = args.Concurrency
	}
	if args.ResultsPath != "" {
		c.RunnerCfg.ResultsPath = args.ResultsPath
	}
	if args.ArtifactsDir != "" {
		c.ArtifactsDir = args.ArtifactsDir
	}
	c.CacheDir = args.CacheDir
	c.DisableCache = args.NoCache
}
