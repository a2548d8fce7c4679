// Package retry runs an operation with bounded attempts and exponential backoff.
//
// A run moves through explicit phases: Attempting(n) -> Waiting(delay) -> Attempting(n+1) and
// ends in one of the terminal phases Succeeded, Exhausted, Aborted (permanent error) or
// Cancelled (context done). Every transition is reported to an optional Observer, and waits go
// through a utils.Clock so they honour context cancellation.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/utils"
)

type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// Multiplier is applied to the delay after each further attempt.
	Multiplier float64
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy is three attempts waiting 2s and then 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay returns the wait after the given (1-based) failed attempt:
// InitialDelay * Multiplier^(attempt-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type Phase string

const (
	PhaseAttempting Phase = "attempting"
	PhaseWaiting    Phase = "waiting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseExhausted  Phase = "exhausted"
	PhaseAborted    Phase = "aborted"
	PhaseCancelled  Phase = "cancelled"
)

func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseSucceeded, PhaseExhausted, PhaseAborted, PhaseCancelled:
		return true
	}
	return false
}

// State is a snapshot of a run. Err is the most recent attempt error (or the context error
// once cancelled), Delay is set while waiting.
type State struct {
	Phase   Phase
	Attempt int
	Delay   time.Duration
	Err     error
}

type Observer func(State)

type Result struct {
	Phase    Phase
	Attempts int
	Err      error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not worth retrying. Run stops and reports the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Run executes op until it succeeds, fails permanently, runs out of attempts or ctx is done.
func Run(ctx context.Context, clock utils.Clock, policy Policy, op func(ctx context.Context, attempt int) error, observe Observer) Result {
	if clock == nil {
		clock = utils.SystemClock
	}
	emit := func(s State) {
		if observe != nil {
			observe(s)
		}
	}

	state := State{Phase: PhaseAttempting, Attempt: 1}
	for {
		emit(state)

		switch state.Phase {
		case PhaseAttempting:
			if err := ctx.Err(); err != nil {
				state = State{Phase: PhaseCancelled, Attempt: state.Attempt - 1, Err: err}
				continue
			}
			err := op(ctx, state.Attempt)
			switch {
			case err == nil:
				state = State{Phase: PhaseSucceeded, Attempt: state.Attempt}
			case IsPermanent(err):
				var p *permanentError
				errors.As(err, &p)
				state = State{Phase: PhaseAborted, Attempt: state.Attempt, Err: p.err}
			case state.Attempt >= policy.maxAttempts():
				state = State{Phase: PhaseExhausted, Attempt: state.Attempt, Err: err}
			default:
				state = State{Phase: PhaseWaiting, Attempt: state.Attempt, Delay: policy.Delay(state.Attempt), Err: err}
			}

		case PhaseWaiting:
			if err := clock.Sleep(ctx, state.Delay); err != nil {
				state = State{Phase: PhaseCancelled, Attempt: state.Attempt, Err: err}
				continue
			}
			state = State{Phase: PhaseAttempting, Attempt: state.Attempt + 1, Err: state.Err}

		default:
			return Result{Phase: state.Phase, Attempts: state.Attempt, Err: state.Err}
		}
	}
}
