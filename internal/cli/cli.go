package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIArgs are the command-line arguments controlling one suite run.
type CLIArgs struct {
	// SuitePath is the YAML suite file to execute (required).
	SuitePath string

	// ModelPath points at the local model file (.mf or .mf.gz).
	ModelPath string

	// Backend selects the inference backend: moondream|ollama.
	Backend string

	// Verbose includes passing queries and raw model answers in the summary.
	Verbose bool

	// Concurrency overrides how many tests run at once; 0 means "use config default".
	Concurrency int

	// NoCache disables the verdict cache for this run.
	NoCache bool

	// CacheDir enables the persistent verdict cache rooted at this directory.
	// Empty keeps the in-memory cache.
	CacheDir string

	// ResultsPath overrides where the JSON run history is appended.
	ResultsPath string

	// ArtifactsDir overrides where screenshot blobs are stored.
	ArtifactsDir string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by
// passing arbitrary slices. The function is deterministic and does not read
// os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs := flag.NewFlagSet("miru", flag.ContinueOnError)
	var (
		suite       = fs.String("suite", "", "YAML test suite file to run (required)")
		model       = fs.String("model", "", "Path to the local model file (.mf or .mf.gz)")
		backend     = fs.String("backend", "moondream", "Inference backend: moondream|ollama")
		verbose     = fs.Bool("verbose", false, "Include passing queries and raw answers in the summary")
		concurrency = fs.Int("concurrency", 0, "Tests to run at once (0=use default)")
		noCache     = fs.Bool("no-cache", false, "Disable the verdict cache for this run")
		cacheDir    = fs.String("cache-dir", "", "Enable the persistent verdict cache at this directory")
		results     = fs.String("results", "", "JSON results file to append run history to")
		artifacts   = fs.String("artifacts", "", "Directory for screenshot artifacts")
	)

	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if strings.TrimSpace(*suite) == "" {
		return nil, fmt.Errorf("missing required -suite argument")
	}

	return &CLIArgs{
		SuitePath:    *suite,
		ModelPath:    *model,
		Backend:      *backend,
		Verbose:      *verbose,
		Concurrency:  *concurrency,
		NoCache:      *noCache,
		CacheDir:     *cacheDir,
		ResultsPath:  *results,
		ArtifactsDir: *artifacts,
		RawArgs:      args,
	}, nil
}
