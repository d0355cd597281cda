package assert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUninterpretable indicates the model answered, but not in a shape the
// query's interpreter recognizes. Distinct from inference failure so prompt
// and interpreter bugs stay visible instead of masquerading as test failures.
// Never coerced to a pass or fail verdict, and never cached.
var ErrUninterpretable = errors.New("assert: model response not interpretable")

// Outcome is the normalized result of interpreting one raw model response.
type Outcome struct {
	Passed bool
	Label  string
	Score  float64
}

// Interpreter maps free-form model text onto a verdict outcome. The closed
// set of implementations below bounds the model's duck-typed output instead
// of scattering ad hoc string matching across call sites.
type Interpreter interface {
	Interpret(raw string) (Outcome, error)

	// Describe returns a short human-readable expectation for reports,
	// e.g. `yes` or `label:error`.
	Describe() string
}

// YesNo maps yes/no style answers to a boolean verdict. Want selects which
// polarity counts as a pass.
type YesNo struct {
	Want bool
}

var (
	yesWords = map[string]struct{}{"yes": {}, "yeah": {}, "yep": {}, "correct": {}, "true": {}, "indeed": {}}
	noWords  = map[string]struct{}{"no": {}, "nope": {}, "false": {}, "negative": {}}
)

func (y YesNo) Interpret(raw string) (Outcome, error) {
	word := firstWord(raw)
	if _, ok := yesWords[word]; ok {
		return Outcome{Passed: y.Want, Label: "yes"}, nil
	}
	if _, ok := noWords[word]; ok {
		return Outcome{Passed: !y.Want, Label: "no"}, nil
	}
	return Outcome{}, fmt.Errorf("%w: expected a yes/no answer, got %q", ErrUninterpretable, snippet(raw))
}

func (y YesNo) Describe() string {
	if y.Want {
		return "yes"
	}
	return "no"
}

// Label matches the response against an enumerated label set. The verdict
// passes when the matched label equals Want.
type Label struct {
	Labels []string
	Want   string
}

func (l Label) Interpret(raw string) (Outcome, error) {
	lower := strings.ToLower(raw)
	var matched []string
	for _, lab := range l.Labels {
		if strings.Contains(lower, strings.ToLower(lab)) {
			matched = append(matched, lab)
		}
	}
	switch len(matched) {
	case 1:
		return Outcome{
			Passed: strings.EqualFold(matched[0], l.Want),
			Label:  matched[0],
		}, nil
	case 0:
		return Outcome{}, fmt.Errorf("%w: none of %v found in %q", ErrUninterpretable, l.Labels, snippet(raw))
	default:
		return Outcome{}, fmt.Errorf("%w: ambiguous response matches %v in %q", ErrUninterpretable, matched, snippet(raw))
	}
}

func (l Label) Describe() string { return "label:" + l.Want }

// Score extracts a numeric score from the response and passes when it meets
// Threshold.
type Score struct {
	Threshold float64
}

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

func (s Score) Interpret(raw string) (Outcome, error) {
	m := numberRe.FindString(raw)
	if m == "" {
		return Outcome{}, fmt.Errorf("%w: no numeric score in %q", ErrUninterpretable, snippet(raw))
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: parsing score %q: %v", ErrUninterpretable, m, err)
	}
	return Outcome{Passed: v >= s.Threshold, Score: v}, nil
}

func (s Score) Describe() string { return fmt.Sprintf("score>=%g", s.Threshold) }

// Contains passes when the expected text occurs in the response,
// case-insensitively. Any response is interpretable.
type Contains struct {
	Want string
}

func (c Contains) Interpret(raw string) (Outcome, error) {
	return Outcome{
		Passed: strings.Contains(strings.ToLower(raw), strings.ToLower(c.Want)),
	}, nil
}

func (c Contains) Describe() string { return "contains:" + c.Want }

// firstWord returns the first whitespace-delimited token of raw, lower-cased
// and stripped of trailing punctuation.
func firstWord(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,!?;:")
}

func snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 120 {
		return raw[:120] + "..."
	}
	return raw
}
