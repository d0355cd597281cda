package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrCapture indicates the target was unreachable or rendering did not
// complete within the bounded wait. Distinct from an assertion mismatch so
// flaky rendering is never confused with a real visual regression.
var ErrCapture = errors.New("capture: page capture failed")

// Target identifies what to capture: a page URL and optionally a CSS selector
// to scope the screenshot to one element.
type Target struct {
	URL      string
	Selector string
	Viewport Viewport
}

type Viewport struct {
	Width  int
	Height int
}

// Record is one content-addressable screenshot. The hash is a stable digest
// of the image bytes only; timestamps and source metadata are deliberately
// excluded so an unchanged visual state yields an identical hash across
// repeated captures. Never mutated after creation.
type Record struct {
	Bytes   []byte
	Hash    string
	TakenAt time.Time
	Source  string // canonical target URL (plus selector if any)
	Title   string // page <title> at capture time, for reports
}

// NewRecord builds a Record from raw image bytes, computing the content hash.
func NewRecord(img []byte, source, title string) *Record {
	sum := sha256.Sum256(img)
	return &Record{
		Bytes:   img,
		Hash:    hex.EncodeToString(sum[:]),
		TakenAt: time.Now(),
		Source:  source,
		Title:   title,
	}
}

// Capturer renders a target and returns a content-addressable screenshot.
type Capturer interface {
	Capture(ctx context.Context, target Target) (*Record, error)

	// CaptureSeries takes count screenshots spaced interval apart, for
	// asserting on animated or time-varying content.
	CaptureSeries(ctx context.Context, target Target, interval time.Duration, count int) ([]*Record, error)

	Close() error
}
