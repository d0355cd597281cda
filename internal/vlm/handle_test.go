package vlm_test

import (
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/vlm"
)

// Handle caching is process-wide, so these tests share state and must not
// run in parallel with each other.

func writeModelFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing model fixture: %v", err)
	}
	return path
}

func writeGzippedModel(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating gz fixture: %v", err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(content); err != nil {
		t.Fatalf("writing gz fixture: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gz writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing gz fixture: %v", err)
	}
	return path
}

func TestLoad_MissingPath(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	_, err := vlm.Load(filepath.Join(t.TempDir(), "nope.mf"), logging.NoopLogger{})
	if !errors.Is(err, vlm.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for missing file, got %v", err)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	path := writeModelFile(t, t.TempDir(), "weights.bin", []byte("not a model"))
	_, err := vlm.Load(path, logging.NoopLogger{})
	if !errors.Is(err, vlm.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for .bin, got %v", err)
	}
}

func TestLoad_PlainModelFile(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	content := []byte("model-weights-0123456789")
	path := writeModelFile(t, t.TempDir(), "moondream.mf", content)

	h, err := vlm.Load(path, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Path() != path {
		t.Errorf("Path = %q, want %q", h.Path(), path)
	}
	want := fmt.Sprintf("moondream.mf@%d", len(content))
	if h.Tag() != want {
		t.Errorf("Tag = %q, want %q", h.Tag(), want)
	}
}

func TestLoad_SamePathReturnsCachedHandle(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	path := writeModelFile(t, t.TempDir(), "moondream.mf", []byte("weights"))
	h1, err := vlm.Load(path, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	h2, err := vlm.Load(path, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if h1 != h2 {
		t.Error("same path must return the same Handle")
	}
}

func TestLoad_GzipDecompressesToSibling(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	dir := t.TempDir()
	content := []byte("compressed-model-weights")
	src := writeGzippedModel(t, dir, "moondream.mf.gz", content)

	h, err := vlm.Load(src, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sibling := filepath.Join(dir, "moondream.mf")
	if h.Path() != sibling {
		t.Errorf("Path = %q, want decompressed sibling %q", h.Path(), sibling)
	}
	got, err := os.ReadFile(sibling)
	if err != nil {
		t.Fatalf("reading decompressed model: %v", err)
	}
	if string(got) != string(content) {
		t.Error("decompressed content mismatch")
	}
	want := fmt.Sprintf("moondream.mf@%d", len(content))
	if h.Tag() != want {
		t.Errorf("Tag = %q, want %q", h.Tag(), want)
	}
}

func TestLoad_ReusesDecompressedSibling(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	dir := t.TempDir()
	src := writeGzippedModel(t, dir, "moondream.mf.gz", []byte("from-archive"))
	// A pre-existing sibling wins; decompression is never repeated.
	sibling := writeModelFile(t, dir, "moondream.mf", []byte("already-here"))

	h, err := vlm.Load(src, logging.NoopLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Path() != sibling {
		t.Errorf("Path = %q, want existing sibling %q", h.Path(), sibling)
	}
	got, _ := os.ReadFile(sibling)
	if string(got) != "already-here" {
		t.Error("existing sibling was overwritten")
	}
}

func TestLoad_CorruptGzip(t *testing.T) {
	vlm.ResetHandles()
	t.Cleanup(vlm.ResetHandles)

	path := writeModelFile(t, t.TempDir(), "broken.mf.gz", []byte("definitely not gzip"))
	_, err := vlm.Load(path, logging.NoopLogger{})
	if !errors.Is(err, vlm.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for corrupt gzip, got %v", err)
	}
}
