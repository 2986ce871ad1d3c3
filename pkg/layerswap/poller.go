package layerswap

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/metrics"
	"agent-tools/pkg/types"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultMaxPollAttempts = 30
)

// ErrPollBudgetExhausted is returned together with the last observed swap when
// no terminal status was seen within MaxAttempts.
var ErrPollBudgetExhausted = errors.New("maximum poll attempts reached")

// SwapGetter is the single call the poller makes per attempt
type SwapGetter interface {
	GetSwap(ctx context.Context, swapID string) (*types.Swap, error)
}

// WaitFunc blocks for d or until ctx is done
type WaitFunc func(ctx context.Context, d time.Duration) error

// Poller polls a swap at a fixed interval until it reaches a terminal status
type Poller struct {
	Source      SwapGetter
	Interval    time.Duration
	MaxAttempts int
	Wait        WaitFunc
}

// NewPoller creates a poller with the default interval and budget
func NewPoller(source SwapGetter) *Poller {
	return &Poller{
		Source:      source,
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultMaxPollAttempts,
		Wait:        sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollUntilTerminal waits then fetches the swap, once per attempt.
//
// completed returns the swap. failed, cancelled, expired and refunded return a
// KindSwapTerminal error carrying the swap JSON. Running out of attempts
// returns the last swap with ErrPollBudgetExhausted. A fetch error stops
// polling immediately.
func (p *Poller) PollUntilTerminal(ctx context.Context, swapID string) (*types.Swap, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxPollAttempts
	}
	wait := p.Wait
	if wait == nil {
		wait = sleep
	}

	var last *types.Swap
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := wait(ctx, interval); err != nil {
			metrics.PollAttempts.Observe(float64(attempt - 1))
			return last, apperr.Wrap(apperr.KindUpstream, "layerswap poll", err, "polling interrupted")
		}

		swap, err := p.Source.GetSwap(ctx, swapID)
		if err != nil {
			metrics.PollAttempts.Observe(float64(attempt))
			return last, err
		}
		last = swap

		zap.L().Debug("Polled swap status",
			zap.String("swap_id", swapID),
			zap.String("status", string(swap.Status)),
			zap.Int("attempt", attempt))

		if swap.Status == types.SwapCompleted {
			metrics.PollAttempts.Observe(float64(attempt))
			return swap, nil
		}
		if swap.Status.IsFailure() {
			metrics.PollAttempts.Observe(float64(attempt))
			return swap, terminalError(swap)
		}
	}

	metrics.PollAttempts.Observe(float64(maxAttempts))
	return last, ErrPollBudgetExhausted
}

func terminalError(swap *types.Swap) error {
	body, _ := json.Marshal(swap)
	return &apperr.Error{
		Kind:    apperr.KindSwapTerminal,
		Op:      "layerswap poll",
		Message: "swap " + string(swap.Status),
		Body:    string(body),
	}
}
