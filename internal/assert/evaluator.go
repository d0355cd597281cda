package assert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/miru/internal/capture"
	"github.com/raysh454/miru/internal/logging"
	"github.com/raysh454/miru/internal/retry"
	"github.com/raysh454/miru/internal/vlm"
)

// Evaluator composes a capture with a query and produces a verdict, going
// through the verdict cache and the retry controller. The model session is
// injected explicitly so lifecycle stays visible and tests can use stubs.
type Evaluator struct {
	session vlm.Session
	cache   VerdictCache
	policy  retry.Policy
	logger  logging.Logger
}

// NewEvaluator wires an evaluator. cache may be nil to disable caching. The
// policy's retryable predicate defaults to vlm.IsTransient, so timeouts and
// transport failures are retried while structural errors are not.
func NewEvaluator(session vlm.Session, cache VerdictCache, policy retry.Policy, logger logging.Logger) *Evaluator {
	if policy.Retryable == nil {
		policy.Retryable = vlm.IsTransient
	}
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Evaluator{
		session: session,
		cache:   cache,
		policy:  policy,
		logger:  logger,
	}
}

// Evaluate produces a Verdict for one capture and query. A cache hit returns
// the stored verdict without any inference call. On a miss the inference call
// is retried per the policy, the interpreter normalizes the raw answer, and
// the verdict is cached. An uninterpretable response propagates as a typed
// error and is never cached, so a later run with a corrected interpreter
// re-invokes the model.
func (e *Evaluator) Evaluate(ctx context.Context, rec *capture.Record, q Query) (*Verdict, error) {
	key := Key{
		CaptureHash: rec.Hash,
		PromptHash:  q.PromptHash(),
		ModelTag:    e.session.Model(),
	}

	if e.cache != nil {
		v, ok, err := e.cache.Get(key)
		if err != nil {
			// A broken cache must not fail the assertion; fall through to inference.
			e.logger.Warn("verdict cache read failed",
				logging.Field{Key: "key", Value: key.String()},
				logging.Field{Key: "error", Value: err.Error()})
		} else if ok {
			e.logger.Debug("verdict cache hit",
				logging.Field{Key: "capture", Value: rec.Hash},
				logging.Field{Key: "prompt", Value: q.Prompt})
			return v, nil
		}
	}

	raw, err := retry.Do(ctx, e.policy, func(ctx context.Context) (string, error) {
		return e.session.Infer(ctx, rec.Bytes, q.Prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating %q against %s: %w", q.Prompt, rec.Source, err)
	}

	outcome, err := q.Interpreter.Interpret(raw)
	if err != nil {
		return nil, err
	}

	v := &Verdict{
		ID:          uuid.NewString(),
		Passed:      outcome.Passed,
		Label:       outcome.Label,
		Score:       outcome.Score,
		Raw:         raw,
		CaptureHash: rec.Hash,
		Prompt:      q.Prompt,
		Model:       e.session.Model(),
		CreatedAt:   time.Now().UTC(),
	}

	if e.cache != nil {
		if err := e.cache.Put(key, v); err != nil {
			e.logger.Warn("verdict cache write failed",
				logging.Field{Key: "key", Value: key.String()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return v, nil
}
