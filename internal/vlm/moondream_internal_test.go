package vlm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCleanModelOutput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips encoding preamble",
			raw:  "encoding image (729 tokens, 27x27 per image patch)\nYes, there is a blue button.",
			want: "Yes, there is a blue button.",
		},
		{
			name: "no preamble passes through",
			raw:  "No, the page is blank.",
			want: "No, the page is blank.",
		},
		{
			name: "trims surrounding whitespace",
			raw:  "  Yes  \n",
			want: "Yes",
		},
		{
			name: "empty output",
			raw:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanModelOutput(tt.raw); got != tt.want {
				t.Errorf("cleanModelOutput(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestWithDefaultDeadline(t *testing.T) {
	t.Parallel()

	s := &MoondreamSession{timeout: time.Minute}
	ctx, cancel := s.withDefaultDeadline(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected a deadline applied when the caller has none")
	}

	// A caller-supplied deadline is never tightened or replaced.
	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx2, cancel2 := s.withDefaultDeadline(parent)
	defer cancel2()
	if got, ok := ctx2.Deadline(); !ok || !got.Equal(want) {
		t.Errorf("caller deadline changed: got %v want %v", got, want)
	}

	// No timeout configured means no deadline is imposed.
	s2 := &MoondreamSession{}
	ctx3, cancel3 := s2.withDefaultDeadline(context.Background())
	defer cancel3()
	if _, ok := ctx3.Deadline(); ok {
		t.Error("no deadline expected with zero timeout")
	}
}

func TestTrimStderr(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	got := trimStderr("  " + long + "  ")
	if len(got) != 512+len("...") {
		t.Errorf("trimStderr length = %d, want capped at 512 plus ellipsis", len(got))
	}
	if trimStderr(" short ") != "short" {
		t.Error("short stderr should only be trimmed of whitespace")
	}
}
