package accessibility

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/conneroisu/templaudit/internal/dom"
	"github.com/conneroisu/templaudit/internal/errors"
	"github.com/conneroisu/templaudit/internal/logging"
)

// DefaultTimeout bounds how long Audit waits for an engine.
const DefaultTimeout = 30 * time.Second

// Runner drives one engine against owned documents.
type Runner struct {
	engine  Engine
	timeout time.Duration
	logger  logging.Logger
}

// NewRunner creates a runner. A non-positive timeout selects
// DefaultTimeout.
func NewRunner(engine Engine, timeout time.Duration, logger logging.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		engine:  engine,
		timeout: timeout,
		logger:  logger.WithComponent("auditor"),
	}
}

// Engine returns the engine the runner drives.
func (r *Runner) Engine() Engine { return r.engine }

// Timeout returns the bounded wait applied to each audit.
func (r *Runner) Timeout() time.Duration { return r.timeout }

type outcome struct {
	results *RawResults
	err     error
}

// Audit injects the engine into doc and runs it, waiting at most the
// runner's timeout. Audit takes ownership of doc: it is released before
// Audit returns on every path. A timed out engine is abandoned, not
// cancelled, and may finish in the background.
func (r *Runner) Audit(ctx context.Context, doc dom.Document) (*RawResults, error) {
	defer func() {
		if err := doc.Release(); err != nil {
			r.logger.Warn(ctx, err, "Failed to release document")
		}
	}()

	perf := logging.StartOperation(r.logger, "audit")

	done := make(chan outcome, 1)
	engineCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("engine panicked: %v", p)}
			}
		}()
		if err := r.engine.Inject(engineCtx, doc); err != nil {
			done <- outcome{err: fmt.Errorf("injecting %s: %w", r.engine.Name(), err)}
			return
		}
		results, err := r.engine.Run(engineCtx, doc)
		done <- outcome{results: results, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			perf.EndWithError(ctx, out.err, "engine", r.engine.Name())
			return nil, errors.NewAuditError("auditor engine failed", out.err)
		}
		if out.results == nil {
			out.results = &RawResults{Violations: []RawRule{}}
		}
		perf.End(ctx, "engine", r.engine.Name(), "violations", len(out.results.Violations))
		return out.results, nil

	case <-timer.C:
		err := errors.NewTimeoutError(fmt.Sprintf("audit did not finish within %s", r.timeout))
		perf.EndWithError(ctx, err, "engine", r.engine.Name())
		return nil, err

	case <-ctx.Done():
		perf.EndWithError(ctx, ctx.Err(), "engine", r.engine.Name())
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("audit deadline exceeded")
		}
		return nil, errors.NewAuditError("audit cancelled", ctx.Err())
	}
}
