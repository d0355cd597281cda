package vlm

import "time"

type Backend string

const (
	BackendMoondream Backend = "moondream"
	BackendOllama    Backend = "ollama"
)

// Config selects and parameterizes a Session backend.
type Config struct {
	Backend Backend

	// ModelPath points at a local model file, either decompressed (.mf) or
	// gzip-compressed (.mf.gz). Compressed paths are decompressed once at
	// load time; decompress ahead of time for repeated test runs.
	ModelPath string

	// BinaryPath is the moondream inference binary (moondream backend only).
	// Defaults to "moondream" resolved via PATH.
	BinaryPath string

	// BaseURL is the Ollama server address (ollama backend only).
	BaseURL string

	// Model is the Ollama model name, e.g. "moondream" (ollama backend only).
	Model string

	// RequestTimeout bounds a single inference call when the caller's context
	// carries no deadline of its own.
	RequestTimeout time.Duration

	Temperature float64
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendMoondream,
		BinaryPath:     "moondream",
		BaseURL:        "http://localhost:11434",
		Model:          "moondream",
		RequestTimeout: 2 * time.Minute,
		Temperature:    0.1,
	}
}
