package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/miru/internal/assert"
	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/urlutil"
)

// Suite is a YAML-defined collection of visual UI tests.
type Suite struct {
	Name  string   `yaml:"name"`
	Tests []UITest `yaml:"tests"`
}

// UITest targets one page and asks one or more questions about it.
type UITest struct {
	Name     string    `yaml:"name"`
	URL      string    `yaml:"url"`
	Viewport *Viewport `yaml:"viewport,omitempty"`
	Queries  []UIQuery `yaml:"queries"`
}

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// UIQuery is one natural-language assertion against a rendered page.
//
// Expect selects the answer interpreter:
//
//	yes                 answer must be an affirmative
//	no                  answer must be a negative
//	label:<want>        answer must contain exactly one of Labels, equal to want
//	score>=<threshold>  answer must contain a number meeting the threshold
//	contains:<text>     answer must contain the text
type UIQuery struct {
	Question string   `yaml:"question"`
	Expect   string   `yaml:"expect"`
	Labels   []string `yaml:"labels,omitempty"`
	Selector string   `yaml:"selector,omitempty"`

	// IntervalMS and Frames request a timed screenshot series for animated
	// content. The final frame is the one asserted on.
	IntervalMS int `yaml:"interval_ms,omitempty"`
	Frames     int `yaml:"frames,omitempty"`
}

// LoadSuite reads and validates a suite file. Target URLs are canonicalized
// so identical targets share source identifiers, and every expect spec is
// compiled eagerly so a malformed suite fails at load time, not mid-run.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file %s: %w", path, err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite file %s: %w", path, err)
	}
	if len(s.Tests) == 0 {
		return nil, fmt.Errorf("suite file %s defines no tests", path)
	}

	for i := range s.Tests {
		t := &s.Tests[i]
		if t.Name == "" {
			return nil, fmt.Errorf("test %d has no name", i)
		}
		canonical, err := urlutil.Canonicalize(t.URL, "http")
		if err != nil {
			return nil, fmt.Errorf("test %q has invalid url %q: %w", t.Name, t.URL, err)
		}
		t.URL = canonical

		if len(t.Queries) == 0 {
			return nil, fmt.Errorf("test %q defines no queries", t.Name)
		}
		for j, q := range t.Queries {
			if strings.TrimSpace(q.Question) == "" {
				return nil, fmt.Errorf("test %q query %d has no question", t.Name, j)
			}
			if _, err := q.Compile(); err != nil {
				return nil, fmt.Errorf("test %q query %q: %w", t.Name, q.Question, err)
			}
		}
	}
	return &s, nil
}

// Compile turns the query's expect spec into an assert.Query.
func (q UIQuery) Compile() (assert.Query, error) {
	interp, err := parseExpect(q.Expect, q.Labels)
	if err != nil {
		return assert.Query{}, err
	}
	return assert.Query{Prompt: q.Question, Interpreter: interp}, nil
}

// Target returns the capture target for this query within the given test.
func (q UIQuery) Target(t UITest) capture.Target {
	target := capture.Target{URL: t.URL, Selector: q.Selector}
	if t.Viewport != nil {
		target.Viewport = capture.Viewport{Width: t.Viewport.Width, Height: t.Viewport.Height}
	}
	return target
}

func parseExpect(spec string, labels []string) (assert.Interpreter, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "" || strings.EqualFold(spec, "yes"):
		return assert.YesNo{Want: true}, nil
	case strings.EqualFold(spec, "no"):
		return assert.YesNo{Want: false}, nil
	case strings.HasPrefix(spec, "label:"):
		want := strings.TrimPrefix(spec, "label:")
		if want == "" {
			return nil, fmt.Errorf("expect %q: empty label", spec)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("expect %q: labels list is required for label expectations", spec)
		}
		found := false
		for _, l := range labels {
			if strings.EqualFold(l, want) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("expect %q: label %q not in labels %v", spec, want, labels)
		}
		return assert.Label{Labels: labels, Want: want}, nil
	case strings.HasPrefix(spec, "score>="):
		raw := strings.TrimPrefix(spec, "score>=")
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expect %q: bad threshold %q", spec, raw)
		}
		return assert.Score{Threshold: threshold}, nil
	case strings.HasPrefix(spec, "contains:"):
		want := strings.TrimPrefix(spec, "contains:")
		if strings.TrimSpace(want) == "" {
			return nil, fmt.Errorf("expect %q: empty contains text", spec)
		}
		return assert.Contains{Want: want}, nil
	default:
		return nil, fmt.Errorf("unknown expect spec %q", spec)
	}
}
