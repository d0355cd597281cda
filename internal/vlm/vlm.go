package vlm

import (
	"context"
	"errors"
)

// Session is a handle to a loaded vision-language model. Infer submits one
// image plus a natural-language prompt and blocks until the model answers.
// Infer is the dominant latency cost in the whole system; callers should
// treat it as a blocking boundary and keep it off any UI/driver critical path.
type Session interface {
	// Infer runs one inference call. The context deadline bounds the call;
	// exceeding it returns an error wrapping ErrInferenceTimeout and leaves
	// the session reusable.
	Infer(ctx context.Context, image []byte, prompt string) (string, error)

	// Model returns an identifier for the loaded model, suitable for tagging
	// cached verdicts so answers from a different model are never reused.
	Model() string

	Close() error
}

var (
	// ErrModelLoad indicates the model file is missing, corrupted or in an
	// unsupported format. Not transient; never retried.
	ErrModelLoad = errors.New("vlm: model load failed")

	// ErrInference indicates a backend failure during inference. Transport
	// level occurrences are transient and safe to retry.
	ErrInference = errors.New("vlm: inference failed")

	// ErrInferenceTimeout indicates the inference call exceeded its deadline.
	// Transient; safe to retry.
	ErrInferenceTimeout = errors.New("vlm: inference timed out")
)

// IsTransient reports whether err is a failure classification expected to
// sometimes succeed on retry. Model load failures and uninterpretable
// responses are structural and never transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInference) || errors.Is(err, ErrInferenceTimeout)
}
