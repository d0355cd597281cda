package vlm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/miru/internal/logging"
)

// MoondreamSession drives a local moondream inference binary as a subprocess
// per call. Launching a fresh subprocess per inference gives full isolation:
// a crash in the inference runtime never corrupts the Handle, which stays
// reusable for the next call.
type MoondreamSession struct {
	// Only 1 request is processed at a time because the target hardware is a
	// developer machine whose GPU/VRAM usually cannot serve two inference
	// calls simultaneously.
	mu sync.Mutex

	handle     *Handle
	binaryPath string
	timeout    time.Duration // applied when the caller's context has no deadline
	temp       float64
	logger     logging.Logger
}

// NewMoondreamSession creates a Session over a local moondream binary bound to
// the given model handle.
func NewMoondreamSession(handle *Handle, cfg *Config, logger logging.Logger) *MoondreamSession {
	bin := cfg.BinaryPath
	if bin == "" {
		bin = "moondream"
	}
	return &MoondreamSession{
		handle:     handle,
		binaryPath: bin,
		timeout:    cfg.RequestTimeout,
		temp:       cfg.Temperature,
		logger:     logger,
	}
}

func (s *MoondreamSession) Model() string { return s.handle.Tag() }

func (s *MoondreamSession) Infer(ctx context.Context, image []byte, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withDefaultDeadline(ctx)
	defer cancel()

	imgPath, err := writeTempImage(image)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer os.Remove(imgPath)

	cmd := exec.CommandContext(ctx, s.binaryPath,
		"-m", s.handle.Path(),
		"--image", imgPath,
		"--temp", strconv.FormatFloat(s.temp, 'f', 2, 64),
		"-p", prompt,
	)
	var out bytes.Buffer
	var errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	runErr := cmd.Run()
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: moondream subprocess killed after deadline", ErrInferenceTimeout)
		}
		return "", fmt.Errorf("%w: moondream subprocess: %v: %s", ErrInference, runErr, trimStderr(errOut.String()))
	}
	return cleanModelOutput(out.String()), nil
}

func (s *MoondreamSession) Close() error { return nil }

func (s *MoondreamSession) withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func writeTempImage(image []byte) (string, error) {
	f, err := os.CreateTemp("", "miru-capture-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %v", err)
	}
	path := f.Name()
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write temp image: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp image: %v", err)
	}
	return path, nil
}

// cleanModelOutput strips the runtime's preamble from stdout. The moondream
// binary echoes encoding statistics before the answer; everything up to and
// including the anchor line is dropped.
func cleanModelOutput(raw string) string {
	const anchor = "per image patch)"
	if i := strings.Index(raw, anchor); i != -1 {
		raw = raw[i+len(anchor):]
	}
	return strings.TrimSpace(raw)
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
