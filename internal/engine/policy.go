package engine

import (
	"time"

	"reelforge/internal/config"
)

// Policy is the engine's execution policy, derived from configuration and
// normalized so the scheduler never has to guard against zero values.
type Policy struct {
	// MaxAttempts bounds invocations of a retryable step per dispatch episode,
	// including the first attempt.
	MaxAttempts int
	// MaxReworkRounds bounds how many times a quality gate may send its
	// producer back for rework before the run fails.
	MaxReworkRounds int
	// RetryBackoff is the base delay before the second attempt; it doubles
	// each further attempt.
	RetryBackoff time.Duration
	// StepTimeout caps a single invocation. Zero disables the cap.
	StepTimeout time.Duration
	// MaxConcurrency bounds concurrently dispatched parallel steps.
	MaxConcurrency int
	// ParallelDispatch enables the concurrent backend. When false every step
	// runs sequentially in topological order.
	ParallelDispatch bool
}

// PolicyFromConfig maps the engine configuration section onto a normalized
// policy.
func PolicyFromConfig(cfg config.Engine) Policy {
	policy := Policy{
		MaxAttempts:      cfg.MaxAttempts,
		MaxReworkRounds:  cfg.MaxReworkRounds,
		RetryBackoff:     time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		StepTimeout:      time.Duration(cfg.StepTimeoutSec) * time.Second,
		MaxConcurrency:   cfg.MaxConcurrency,
		ParallelDispatch: cfg.ParallelDispatch,
	}
	return policy.normalize()
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxReworkRounds < 0 {
		p.MaxReworkRounds = 0
	}
	if p.RetryBackoff < 0 {
		p.RetryBackoff = 0
	}
	if p.StepTimeout < 0 {
		p.StepTimeout = 0
	}
	if p.MaxConcurrency < 1 {
		p.MaxConcurrency = 1
	}
	return p
}
