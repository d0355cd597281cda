package assert

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Query pairs a natural-language prompt with the interpreter that maps the
// model's answer to a verdict. Immutable; supplied by test code.
type Query struct {
	Prompt      string
	Interpreter Interpreter
}

// PromptHash returns a stable digest of the prompt, used as one component of
// the verdict cache key.
func (q Query) PromptHash() string {
	sum := sha256.Sum256([]byte(q.Prompt))
	return hex.EncodeToString(sum[:])
}

// Verdict is the normalized outcome of one assertion: what the model said,
// how it was interpreted, and exactly which capture and query produced it.
type Verdict struct {
	ID          string    `json:"id"`
	Passed      bool      `json:"passed"`
	Label       string    `json:"label,omitempty"`
	Score       float64   `json:"score,omitempty"`
	Raw         string    `json:"raw"`
	CaptureHash string    `json:"capture_hash"`
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key identifies one cached verdict. All three components are required:
// capture hash and prompt hash make collisions across distinct inputs
// impossible, and the model tag prevents silently reusing answers from a
// different model.
type Key struct {
	CaptureHash string
	PromptHash  string
	ModelTag    string
}

func (k Key) String() string {
	return k.CaptureHash + "/" + k.PromptHash + "/" + k.ModelTag
}

// VerdictCache memoizes (capture hash, prompt) pairs so repeated test runs
// against unchanged page states skip inference entirely. Implementations must
// be safe for concurrent use. The cache is a pure optimization: entries are
// derived, never authoritative, and clearing it never affects correctness.
type VerdictCache interface {
	Get(key Key) (*Verdict, bool, error)
	Put(key Key, v *Verdict) error
	Clear() error
	Close() error
}
