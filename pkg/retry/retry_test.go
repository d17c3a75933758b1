package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/dtnitsch/tululu-parser/pkg/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRefused  = &fetcher.FetchError{URL: "https://tululu.org/b1/", Kind: fetcher.KindConnectivity, Err: syscall.ECONNREFUSED}
	errNotFound = &fetcher.NotFoundError{URL: "https://tululu.org/b1/", FinalURL: "https://tululu.org/"}
	errStatus   = &fetcher.FetchError{URL: "https://tululu.org/b1/", StatusCode: 500, Kind: fetcher.KindOther}
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// script returns an attempt func that yields errs in order, then nil.
func script(errs ...error) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}, &calls
}

func newTestOrchestrator(max int, rec *sleepRecorder, opts ...Option) *Orchestrator {
	opts = append([]Option{WithSleep(rec.sleep), WithLogger(quietLogger())}, opts...)
	return NewOrchestrator(Policy{MaxAttempts: max, Backoff: 10 * time.Second}, opts...)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script()

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.calls)
	assert.NoError(t, out.LastErr)
}

func TestDo_NotFoundIsPermanent(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script(errNotFound, errNotFound, errNotFound)

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StatePermanentFailure, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.calls)
	var nf *fetcher.NotFoundError
	assert.ErrorAs(t, out.LastErr, &nf)
}

func TestDo_WrappedNotFoundIsPermanent(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, _ := script(errors.Join(errors.New("text"), errNotFound))

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StatePermanentFailure, out.State)
	assert.Equal(t, 1, out.Attempts)
}

func TestDo_ConnectivityRecovers(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script(errRefused, errRefused)

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, *calls)
	// The first failure retries immediately; the second one backs off.
	assert.Equal(t, []time.Duration{10 * time.Second}, rec.calls)
	assert.Equal(t, 1, out.Backoffs)
}

func TestDo_ConnectivityExhausted(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script(errRefused, errRefused, errRefused, errRefused, errRefused, errRefused)

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, *calls)
	// No wait after the first failure, nor after the last attempt.
	assert.Len(t, rec.calls, 3)
	assert.Equal(t, 3, out.Backoffs)
	assert.Equal(t, fetcher.KindConnectivity, fetcher.KindOf(out.LastErr))
}

func TestDo_OtherErrorsRetryWithoutSleep(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script(errStatus, errStatus, errStatus)

	out := newTestOrchestrator(3, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, *calls)
	assert.Empty(t, rec.calls)
}

func TestDo_OtherErrorResetsConnectivityStreak(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, _ := script(errRefused, errStatus, errRefused, errRefused)

	out := newTestOrchestrator(5, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, 5, out.Attempts)
	// Only the connectivity failure following another one sleeps.
	assert.Len(t, rec.calls, 1)
}

func TestDo_AttemptBudgetNeverExceeded(t *testing.T) {
	for max := 1; max <= 6; max++ {
		rec := &sleepRecorder{}
		attempt, calls := script(errRefused, errStatus, errRefused, errRefused, errStatus, errRefused, errRefused)

		out := newTestOrchestrator(max, rec).Do(context.Background(), 1, attempt)

		assert.LessOrEqual(t, *calls, max, "max=%d", max)
		assert.Equal(t, *calls, out.Attempts, "max=%d", max)
		assert.True(t, out.State.Terminal(), "max=%d", max)
	}
}

func TestDo_AttemptHook(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, _ := script(errRefused, errStatus)

	var reports []AttemptReport
	orch := newTestOrchestrator(5, rec, WithAttemptHook(func(r AttemptReport) {
		reports = append(reports, r)
	}))
	out := orch.Do(context.Background(), 42, attempt)
	require.Equal(t, StateSuccess, out.State)

	require.Len(t, reports, 3)
	assert.Equal(t, fetcher.KindConnectivity, reports[0].Kind)
	assert.Equal(t, fetcher.KindOther, reports[1].Kind)
	assert.NoError(t, reports[2].Err)
	for i, r := range reports {
		assert.EqualValues(t, 42, r.BookID)
		assert.Equal(t, i+1, r.Attempt)
	}
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestOrchestrator(5, rec).Do(ctx, 1, attempt)

	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, 0, *calls)
	assert.ErrorIs(t, out.LastErr, context.Canceled)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	attempt, calls := script(errRefused, errRefused, errRefused)

	orch := NewOrchestrator(Policy{MaxAttempts: 5, Backoff: time.Minute}, WithSleep(sleep), WithLogger(quietLogger()))
	out := orch.Do(ctx, 1, attempt)

	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, 2, *calls)
}

func TestNewOrchestrator_ZeroAttemptsMeansOne(t *testing.T) {
	rec := &sleepRecorder{}
	attempt, calls := script(errStatus, errStatus)

	out := newTestOrchestrator(0, rec).Do(context.Background(), 1, attempt)

	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 1, *calls)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "success", StateSuccess.String())
	assert.Equal(t, "not_found", StatePermanentFailure.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.False(t, StateAttempting.Terminal())
	assert.True(t, StateAborted.Terminal())
}
