// Package retry runs one book's fetch/extract/download sequence under a
// bounded attempt budget, branching on the kind of each failure.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/fetcher"
)

// State is a position in the per-book attempt loop.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSuccess
	StatePermanentFailure
	StateExhausted
	// StateAborted means the context was cancelled between attempts.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StatePermanentFailure:
		return "not_found"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempts will be made.
func (s State) Terminal() bool {
	return s >= StateSuccess
}

// Policy bounds the attempt loop.
type Policy struct {
	MaxAttempts int
	// Backoff is slept before retrying after the second and later
	// consecutive connectivity failures.
	Backoff time.Duration
}

// PolicyFrom builds a Policy from configuration.
func PolicyFrom(cfg models.RetryConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff}
}

// AttemptReport describes one finished attempt.
type AttemptReport struct {
	BookID  models.BookID
	Attempt int
	Kind    fetcher.Kind
	Err     error
}

// Outcome is the terminal result of a Do call.
type Outcome struct {
	State    State
	Attempts int
	Backoffs int
	LastErr  error
}

// machine carries the loop state for one book.
type machine struct {
	state     State
	remaining int
	attempts  int
	backoffs  int
	// degraded is set by a connectivity failure and cleared by any other
	// outcome, so only consecutive connectivity failures back off.
	degraded bool
	lastKind fetcher.Kind
	lastErr  error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Orchestrator struct {
	policy    Policy
	logger    *slog.Logger
	sleep     SleepFunc
	onAttempt func(AttemptReport)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

// WithAttemptHook is called after every attempt.
func WithAttemptHook(fn func(AttemptReport)) Option {
	return func(o *Orchestrator) {
		o.onAttempt = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func NewOrchestrator(policy Policy, opts ...Option) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	o := &Orchestrator{
		policy: policy,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Do runs attempt until it succeeds, reports a not-found condition, or the
// attempt budget is spent.
func (o *Orchestrator) Do(ctx context.Context, id models.BookID, attempt func(ctx context.Context) error) Outcome {
	m := &machine{state: StateIdle, remaining: o.policy.MaxAttempts}

	for !m.state.Terminal() {
		if err := ctx.Err(); err != nil {
			m.state = StateAborted
			m.lastErr = err
			break
		}

		m.state = StateAttempting
		m.attempts++
		m.remaining--

		err := attempt(ctx)
		kind := fetcher.KindOf(err)
		if o.onAttempt != nil {
			o.onAttempt(AttemptReport{BookID: id, Attempt: m.attempts, Kind: kind, Err: err})
		}
		if err == nil {
			m.state = StateSuccess
			m.lastErr = nil
			break
		}
		m.lastErr = err
		m.lastKind = kind

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			m.state = StateAborted
			break
		}

		switch kind {
		case fetcher.KindNotFound:
			o.logger.Info("Book does not exist, skipping", "book_id", int(id), "attempt", m.attempts, "error", err)
			m.state = StatePermanentFailure

		case fetcher.KindConnectivity:
			if !m.degraded {
				m.degraded = true
				o.logger.Warn("Unsuccessful connection attempt, retrying", "book_id", int(id), "attempt", m.attempts, "error", err)
				break
			}
			if m.remaining == 0 {
				break
			}
			o.logger.Warn("Connection still missing, backing off", "book_id", int(id), "attempt", m.attempts, "delay", o.policy.Backoff, "error", err)
			m.backoffs++
			if sleepErr := o.sleep(ctx, o.policy.Backoff); sleepErr != nil {
				m.state = StateAborted
				m.lastErr = sleepErr
			}

		default:
			m.degraded = false
			o.logger.Error("Unexpected error while loading book", "book_id", int(id), "attempt", m.attempts, "error", err)
		}

		if !m.state.Terminal() && m.remaining == 0 {
			m.state = StateExhausted
			o.logger.Warn("Attempts exhausted, dropping book", "book_id", int(id), "attempts", m.attempts, "last_kind", m.lastKind.String(), "error", err)
		}
	}

	return Outcome{
		State:    m.state,
		Attempts: m.attempts,
		Backoffs: m.backoffs,
		LastErr:  m.lastErr,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
