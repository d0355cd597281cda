package vlm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/vlm"
)

// fakeSession is a minimal Session for registry tests.
type fakeSession struct{ model string }

func (f *fakeSession) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	return "Yes", nil
}
func (f *fakeSession) Model() string { return f.model }
func (f *fakeSession) Close() error  { return nil }

func TestNewSession_UnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := vlm.DefaultConfig()
	cfg.Backend = "does-not-exist"

	_, err := vlm.NewSession(cfg, logging.NoopLogger{})
	if err == nil {
		t.Fatal("expected error for unregistered backend")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("error should name the registration failure, got %q", err)
	}
}

func TestRegisterBackend_ConstructsRegisteredSession(t *testing.T) {
	t.Parallel()
	vlm.RegisterBackend("fake-registry-test", func(cfg *vlm.Config, logger logging.Logger) (vlm.Session, error) {
		return &fakeSession{model: "fake@1"}, nil
	})

	cfg := vlm.DefaultConfig()
	cfg.Backend = "Fake-Registry-Test" // lookup is case-insensitive

	s, err := vlm.NewSession(cfg, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	if s.Model() != "fake@1" {
		t.Errorf("Model = %q, want the registered fake", s.Model())
	}
}

func TestListBackends_IncludesRegistered(t *testing.T) {
	t.Parallel()
	vlm.RegisterBackend("fake-list-test", func(cfg *vlm.Config, logger logging.Logger) (vlm.Session, error) {
		return &fakeSession{}, nil
	})

	found := false
	for _, name := range vlm.ListBackends() {
		if name == "fake-list-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListBackends missing registered backend: %v", vlm.ListBackends())
	}
}

func TestRegisterDefaultBackends_RegistersBoth(t *testing.T) {
	vlm.RegisterDefaultBackends()

	names := map[string]bool{}
	for _, name := range vlm.ListBackends() {
		names[name] = true
	}
	if !names["moondream"] || !names["ollama"] {
		t.Errorf("default backends missing from %v", vlm.ListBackends())
	}
}
