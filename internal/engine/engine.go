package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"reelforge/internal/artifact"
	"reelforge/internal/ledger"
	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/step"
	"reelforge/internal/stepgraph"
)

// Engine drives a step graph to completion: it schedules eligible steps,
// owns the retry and rework state machines, and is the only component that
// commits step outcomes into the run context, the artifact store, and the
// consistency ledger.
type Engine struct {
	policy Policy
	store  *artifact.Store
	ledger *ledger.Ledger
	logger *slog.Logger
}

// New constructs an engine. The store receives step payloads at commit time;
// the ledger receives boundary bindings declared by step specs.
func New(policy Policy, store *artifact.Store, led *ledger.Ledger, logger *slog.Logger) *Engine {
	return &Engine{
		policy: policy.normalize(),
		store:  store,
		ledger: led,
		logger: logging.NewComponentLogger(logger, "engine"),
	}
}

// Run executes the graph against a fresh run context seeded with the given
// values. It returns when every step settled, a non-optional step failed, or
// ctx was cancelled.
func (e *Engine) Run(ctx context.Context, graph *stepgraph.Graph, info step.RunInfo, seeds map[string]any) Result {
	result, _ := e.RunWithContext(ctx, graph, info, seeds)
	return result
}

// RunWithContext is Run for callers that need the committed state afterwards,
// e.g. to write a manifest or report.
func (e *Engine) RunWithContext(ctx context.Context, graph *stepgraph.Graph, info step.RunInfo, seeds map[string]any) (Result, *RunContext) {
	ctx = services.WithRunID(ctx, info.RunID)
	rs := newRunState(graph, NewRunContext(info, seeds))

	var failedStep string
	var err error
	if e.policy.ParallelDispatch {
		failedStep, err = e.runParallel(ctx, rs)
	} else {
		failedStep, err = e.runSequential(ctx, rs)
	}

	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			status = StatusCancelled
		}
	}

	logger := logging.WithContext(ctx, e.logger)
	if err != nil {
		logger.Error("run finished",
			logging.String("status", string(status)),
			logging.String(logging.FieldStep, failedStep),
			logging.Error(err),
		)
	} else {
		logger.Info("run finished", logging.String("status", string(status)))
	}

	result := Result{
		Status:       status,
		FailedStep:   failedStep,
		Err:          err,
		StepStates:   rs.statesSnapshot(),
		Attempts:     rs.attemptsSnapshot(),
		ReworkRounds: rs.reworkSnapshot(),
	}
	return result, rs.runCtx
}

func (e *Engine) runSequential(ctx context.Context, rs *runState) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name, ok := rs.nextDispatchable()
		if !ok {
			if rs.allSettled() {
				return "", nil
			}
			return "", services.Wrap(services.ErrConfiguration, "", "schedule",
				"no dispatchable step but run incomplete", nil)
		}
		res := e.dispatch(ctx, rs, name)
		if stop, failedStep, err := e.applyResult(ctx, rs, res); stop {
			return failedStep, err
		}
	}
}

func (e *Engine) runParallel(ctx context.Context, rs *runState) (string, error) {
	sem := semaphore.NewWeighted(int64(e.policy.MaxConcurrency))
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		concurrent, serial := rs.dispatchableSets()
		if len(concurrent) == 0 && len(serial) == 0 {
			if rs.allSettled() {
				return "", nil
			}
			return "", services.Wrap(services.ErrConfiguration, "", "schedule",
				"no dispatchable step but run incomplete", nil)
		}

		var results []dispatchResult
		if len(concurrent) > 0 {
			var wg sync.WaitGroup
			var rmu sync.Mutex
			for _, name := range concurrent {
				if err := sem.Acquire(ctx, 1); err != nil {
					wg.Wait()
					return "", err
				}
				wg.Add(1)
				go func(name string) {
					defer wg.Done()
					defer sem.Release(1)
					res := e.dispatch(ctx, rs, name)
					rmu.Lock()
					results = append(results, res)
					rmu.Unlock()
				}(name)
			}
			wg.Wait()
		} else {
			results = append(results, e.dispatch(ctx, rs, serial[0]))
		}

		sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
		for _, res := range results {
			if stop, failedStep, err := e.applyResult(ctx, rs, res); stop {
				return failedStep, err
			}
		}
	}
}

type dispatchKind int

const (
	dispatchSucceeded dispatchKind = iota
	dispatchSkipped
	dispatchRejected
	dispatchFailed
	dispatchCancelled
)

type dispatchResult struct {
	name     string
	kind     dispatchKind
	feedback string
	err      error
}

// dispatch runs one episode of a step: invoke, retry with backoff on
// transient failure, and commit on success. It never mutates scheduling
// state beyond the step's own entry.
func (e *Engine) dispatch(ctx context.Context, rs *runState, name string) dispatchResult {
	s, _ := rs.graph.Step(name)
	spec := s.Spec()
	sctx := services.WithStep(ctx, name)
	logger := logging.WithContext(sctx, e.logger)

	rs.setState(name, Running)
	attempt := 0
	for {
		if err := sctx.Err(); err != nil {
			return dispatchResult{name: name, kind: dispatchCancelled, err: err}
		}
		attempt++
		rs.addAttempt(name)
		logger.Debug("step started", logging.Int(logging.FieldAttempt, attempt))

		view := rs.runCtx.ViewFor(spec)
		outcome := e.invoke(sctx, s, spec, view)
		switch {
		case outcome.IsSuccess():
			if err := e.commit(sctx, rs, spec, outcome.Updates); err != nil {
				logger.Error("commit failed", logging.Error(err))
				return dispatchResult{name: name, kind: dispatchFailed, err: err}
			}
			logger.Info("step succeeded", logging.Int(logging.FieldAttempt, attempt))
			return dispatchResult{name: name, kind: dispatchSucceeded}

		case outcome.IsReject():
			if !spec.IsGate() {
				err := services.Wrap(services.ErrConfiguration, name, "outcome",
					"non-gate step returned a rejection", nil)
				return dispatchResult{name: name, kind: dispatchFailed, err: err}
			}
			logger.Warn("gate rejected output", logging.String("feedback", outcome.Feedback))
			return dispatchResult{name: name, kind: dispatchRejected, feedback: outcome.Feedback}

		case outcome.IsFatal():
			err := services.Wrap(services.ErrService, name, "invoke", "fatal step failure", outcome.Err)
			if services.Fatal(outcome.Err) {
				err = outcome.Err
			}
			if spec.Optional && !services.Fatal(outcome.Err) {
				logger.Warn("optional step failed, continuing", logging.Error(err))
				return dispatchResult{name: name, kind: dispatchSkipped, err: err}
			}
			return dispatchResult{name: name, kind: dispatchFailed, err: err}

		default: // retry
			err := outcome.Err
			if sctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return dispatchResult{name: name, kind: dispatchCancelled, err: sctx.Err()}
			}
			if services.Fatal(err) {
				return dispatchResult{name: name, kind: dispatchFailed, err: err}
			}
			if !spec.Retryable || attempt >= e.policy.MaxAttempts {
				exhausted := services.Wrap(services.ErrService, name, "invoke",
					fmt.Sprintf("failed after %d attempts", attempt), err)
				if !spec.Retryable {
					exhausted = services.Wrap(services.ErrService, name, "invoke", "transient failure on non-retryable step", err)
				}
				if spec.Optional {
					logger.Warn("optional step exhausted retries, continuing", logging.Error(exhausted))
					return dispatchResult{name: name, kind: dispatchSkipped, err: exhausted}
				}
				return dispatchResult{name: name, kind: dispatchFailed, err: exhausted}
			}
			backoff := e.policy.RetryBackoff << (attempt - 1)
			logger.Warn("step retrying",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("backoff", backoff),
				logging.Error(err),
			)
			rs.setState(name, Retrying)
			select {
			case <-time.After(backoff):
			case <-sctx.Done():
				return dispatchResult{name: name, kind: dispatchCancelled, err: sctx.Err()}
			}
			rs.setState(name, Running)
		}
	}
}

// invoke runs a single attempt under the per-step timeout. A step that
// overruns the deadline is abandoned and reported as a transient timeout;
// the goroutine finishes on its own once the step honors its context.
func (e *Engine) invoke(ctx context.Context, s step.Interface, spec step.Spec, view step.View) step.Outcome {
	if e.policy.StepTimeout <= 0 {
		return s.Invoke(ctx, view)
	}
	ictx, cancel := context.WithTimeout(ctx, e.policy.StepTimeout)
	defer cancel()
	done := make(chan step.Outcome, 1)
	go func() {
		done <- s.Invoke(ictx, view)
	}()
	select {
	case outcome := <-done:
		if outcome.IsRetry() && errors.Is(outcome.Err, context.DeadlineExceeded) && ctx.Err() == nil {
			return step.Retry(services.Wrap(services.ErrTimeout, spec.Name, "invoke", "step deadline exceeded", outcome.Err))
		}
		return outcome
	case <-ictx.Done():
		if ctx.Err() != nil {
			return step.Retry(ctx.Err())
		}
		return step.Retry(services.Wrap(services.ErrTimeout, spec.Name, "invoke", "step deadline exceeded", ictx.Err()))
	}
}

// applyResult folds a dispatch result into scheduling state. It returns
// stop=true when the run is over.
func (e *Engine) applyResult(ctx context.Context, rs *runState, res dispatchResult) (bool, string, error) {
	switch res.kind {
	case dispatchSucceeded:
		rs.setState(res.name, Succeeded)
		return false, "", nil
	case dispatchSkipped:
		rs.setState(res.name, Skipped)
		return false, "", nil
	case dispatchCancelled:
		rs.setState(res.name, Pending)
		return true, "", res.err
	case dispatchRejected:
		if err := e.applyRework(ctx, rs, res.name, res.feedback); err != nil {
			rs.setState(res.name, Failed)
			return true, res.name, err
		}
		return false, "", nil
	default:
		rs.setState(res.name, Failed)
		return true, res.name, res.err
	}
}

// applyRework processes a gate rejection: within budget it invalidates the
// producer's committed keys along with everything downstream, attaches the
// feedback, and returns producer and dependents to the scheduler. Over
// budget it converts the rejection into a validation failure.
func (e *Engine) applyRework(ctx context.Context, rs *runState, gateName, feedback string) error {
	gate, _ := rs.graph.Step(gateName)
	target := gate.Spec().ReworkTarget
	rounds := rs.incRework(gateName)
	logger := logging.WithContext(services.WithStep(ctx, gateName), e.logger)

	if rounds > e.policy.MaxReworkRounds {
		return services.Wrap(services.ErrValidation, gateName, "quality gate",
			fmt.Sprintf("still rejected after %d rework rounds: %s", e.policy.MaxReworkRounds, feedback), nil)
	}

	rs.runCtx.AddFeedback(target, feedback)
	for _, name := range rs.transitiveDependents(target) {
		dep, _ := rs.graph.Step(name)
		rs.runCtx.Invalidate(dep.Spec().Writes...)
		rs.setState(name, Pending)
	}
	producer, _ := rs.graph.Step(target)
	rs.runCtx.Invalidate(producer.Spec().Writes...)
	rs.setState(target, RejectedForRework)

	logger.Info("rework scheduled",
		logging.String("target", target),
		logging.Int(logging.FieldReworkRound, rounds),
		logging.String("feedback", feedback),
	)
	return nil
}

// commit applies a successful outcome atomically: validate the writes against
// the spec, persist payloads to the artifact store, bind declared boundaries
// into the ledger, then commit values to the run context. Any failure leaves
// the run context untouched.
func (e *Engine) commit(ctx context.Context, rs *runState, spec step.Spec, updates map[string]any) error {
	declared := make(map[string]struct{}, len(spec.Writes))
	for _, key := range spec.Writes {
		declared[key] = struct{}{}
	}
	for key := range updates {
		if _, ok := declared[key]; !ok {
			return services.Wrap(services.ErrConfiguration, spec.Name, "commit",
				fmt.Sprintf("update for undeclared key %q", key), nil)
		}
	}

	resolved := make(map[string]any, len(updates))
	for key, value := range updates {
		payload, ok := value.(step.Payload)
		if !ok {
			resolved[key] = value
			continue
		}
		if e.store == nil {
			return services.Wrap(services.ErrConfiguration, spec.Name, "commit", "payload committed without a store", nil)
		}
		art, err := e.store.Put(ctx, payload.Bytes, artifact.PutOptions{
			Kind:   payload.Kind,
			Ext:    payload.Ext,
			Width:  payload.Width,
			Height: payload.Height,
		})
		if err != nil {
			return err
		}
		resolved[key] = art
	}

	for _, boundary := range spec.Boundaries {
		id, err := boundaryArtifactID(resolved[boundary.Key])
		if err != nil {
			return services.Wrap(services.ErrConfiguration, spec.Name, "commit",
				fmt.Sprintf("boundary key %q: %v", boundary.Key, err), nil)
		}
		if e.ledger == nil {
			return services.Wrap(services.ErrConfiguration, spec.Name, "commit", "boundary declared without a ledger", nil)
		}
		if err := e.ledger.BindBoundary(boundary.Segment, boundary.Position, id); err != nil {
			return err
		}
	}

	return rs.runCtx.Commit(spec.Name, resolved)
}

func boundaryArtifactID(value any) (string, error) {
	switch v := value.(type) {
	case artifact.Artifact:
		return v.ID, nil
	case string:
		if v != "" {
			return v, nil
		}
	}
	return "", errors.New("value does not carry an artifact id")
}
