package vlm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/raysh454/miru/internal/logging"
)

// BackendConstructor constructs a Session given the config and logger.
type BackendConstructor func(cfg *Config, logger logging.Logger) (Session, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the
// previous constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// NewSession constructs the configured Session backend. It returns an error
// if the named backend has not been registered.
func NewSession(cfg *Config, logger logging.Logger) (Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	backend := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if backend == "" {
		backend = string(BackendMoondream)
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("vlm backend %q not registered: available backends=%v", backend, ListBackends())
	}

	s, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct vlm backend %q: %w", backend, err)
	}
	if s == nil {
		return nil, errors.New("vlm backend constructor returned nil")
	}
	return s, nil
}

// ListBackends returns the list of registered backend names.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// RegisterDefaultBackends registers the default moondream and ollama backends.
// Call this from init() or early in main() to make backends available to
// NewSession.
func RegisterDefaultBackends() {
	RegisterBackend(string(BackendMoondream), func(cfg *Config, logger logging.Logger) (Session, error) {
		handle, err := Load(cfg.ModelPath, logger)
		if err != nil {
			return nil, err
		}
		s := NewMoondreamSession(handle, cfg, logger)
		if logger != nil {
			logger.Debug("created moondream session",
				logging.Field{Key: "model", Value: handle.Tag()})
		}
		return s, nil
	})

	RegisterBackend(string(BackendOllama), func(cfg *Config, logger logging.Logger) (Session, error) {
		s := NewOllamaSession(cfg, logger)
		if logger != nil {
			logger.Debug("created ollama session",
				logging.Field{Key: "base_url", Value: cfg.BaseURL},
				logging.Field{Key: "model", Value: cfg.Model})
		}
		return s, nil
	})
}
