package layerswap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

// scriptedSource returns the scripted statuses in order, repeating the last one
type scriptedSource struct {
	statuses []types.SwapStatus
	calls    int
	err      error
}

func (s *scriptedSource) GetSwap(_ context.Context, id string) (*types.Swap, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls - 1
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return &types.Swap{ID: id, Status: s.statuses[i]}, nil
}

type countingWait struct {
	waits int
}

func (w *countingWait) wait(ctx context.Context, _ time.Duration) error {
	w.waits++
	return ctx.Err()
}

func newTestPoller(src SwapGetter, w *countingWait, attempts int) *Poller {
	return &Poller{Source: src, Interval: time.Millisecond, MaxAttempts: attempts, Wait: w.wait}
}

func TestPollCompletesOnThirdAttempt(t *testing.T) {
	src := &scriptedSource{statuses: []types.SwapStatus{types.SwapPending, types.SwapProcessing, types.SwapCompleted}}
	w := &countingWait{}

	swap, err := newTestPoller(src, w, 30).PollUntilTerminal(context.Background(), "swap-1")
	require.NoError(t, err)
	assert.Equal(t, types.SwapCompleted, swap.Status)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 3, w.waits)
}

func TestPollStopsOnFailure(t *testing.T) {
	for _, status := range []types.SwapStatus{types.SwapFailed, types.SwapCancelled, types.SwapExpired, types.SwapRefunded} {
		src := &scriptedSource{statuses: []types.SwapStatus{status}}

		swap, err := newTestPoller(src, &countingWait{}, 30).PollUntilTerminal(context.Background(), "swap-1")
		require.Error(t, err, status)
		assert.Equal(t, 1, src.calls, status)
		assert.Equal(t, status, swap.Status)

		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindSwapTerminal, e.Kind)
		assert.Contains(t, e.Body, `"status":"`+string(status)+`"`)
	}
}

func TestPollBudgetExhausted(t *testing.T) {
	src := &scriptedSource{statuses: []types.SwapStatus{types.SwapPending}}
	w := &countingWait{}

	swap, err := newTestPoller(src, w, 4).PollUntilTerminal(context.Background(), "swap-1")
	require.ErrorIs(t, err, ErrPollBudgetExhausted)
	require.NotNil(t, swap)
	assert.Equal(t, types.SwapPending, swap.Status)
	assert.Equal(t, 4, src.calls)
	assert.Equal(t, 4, w.waits)
}

func TestPollUnknownStatusKeepsPolling(t *testing.T) {
	src := &scriptedSource{statuses: []types.SwapStatus{"ls_transfer_confirming", types.SwapCompleted}}

	swap, err := newTestPoller(src, &countingWait{}, 5).PollUntilTerminal(context.Background(), "swap-1")
	require.NoError(t, err)
	assert.Equal(t, types.SwapCompleted, swap.Status)
	assert.Equal(t, 2, src.calls)
}

func TestPollFetchErrorPropagates(t *testing.T) {
	src := &scriptedSource{err: errors.New("connection reset")}

	_, err := newTestPoller(src, &countingWait{}, 5).PollUntilTerminal(context.Background(), "swap-1")
	require.EqualError(t, err, "connection reset")
	assert.Equal(t, 1, src.calls)
}

func TestPollHonorsCancellation(t *testing.T) {
	src := &scriptedSource{statuses: []types.SwapStatus{types.SwapPending}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPoller(src, &countingWait{}, 5).PollUntilTerminal(ctx, "swap-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
}

func TestPollRealWaitIsBounded(t *testing.T) {
	src := &scriptedSource{statuses: []types.SwapStatus{types.SwapPending}}
	p := NewPoller(src)
	p.Interval = 5 * time.Millisecond
	p.MaxAttempts = 3

	start := time.Now()
	_, err := p.PollUntilTerminal(context.Background(), "swap-1")
	require.ErrorIs(t, err, ErrPollBudgetExhausted)
	assert.Less(t, time.Since(start), time.Second)
}
