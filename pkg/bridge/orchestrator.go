package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/journal"
	"agent-tools/pkg/layerswap"
	"agent-tools/pkg/metrics"
	"agent-tools/pkg/types"
)

// Bridge is the remote swap service
type Bridge interface {
	GetLimits(ctx context.Context, route types.Route, refuel bool) (*types.Limits, error)
	GetQuote(ctx context.Context, req layerswap.QuoteRequest) (*types.Quote, error)
	CreateSwap(ctx context.Context, req types.BridgeRequest) (*types.Swap, error)
	GetDepositActions(ctx context.Context, swapID, sourceAddress string) ([]types.DepositAction, error)
	GetSwap(ctx context.Context, swapID string) (*types.Swap, error)
	GetSwapsByReference(ctx context.Context, referenceID string) ([]types.Swap, error)
}

// Settler funds the deposit on the source chain
type Settler interface {
	Settle(ctx context.Context, action types.DepositAction) (string, error)
	AddressFor(network string) string
	// CanSettle fails when no key is configured for network
	CanSettle(network string) error
}

const (
	// PendingMessage is returned when polling ran out before a terminal status
	PendingMessage = "Maximum poll attempts reached. Check swap status manually."
	// InterruptedMessage is returned when polling stopped after the deposit was sent
	InterruptedMessage = "Polling stopped before the swap finished. Check swap status manually."
)

// Orchestrator runs limits, quote, swap creation, settlement and polling as
// one sequential operation.
type Orchestrator struct {
	bridge  Bridge
	settler Settler
	journal journal.Store

	PollInterval    time.Duration
	MaxPollAttempts int
	// Wait is used between polls; nil sleeps
	Wait layerswap.WaitFunc
}

// NewOrchestrator wires the collaborators. store may be nil to skip dedup
// bookkeeping.
func NewOrchestrator(bridge Bridge, settler Settler, store journal.Store) *Orchestrator {
	return &Orchestrator{
		bridge:          bridge,
		settler:         settler,
		journal:         store,
		PollInterval:    layerswap.DefaultPollInterval,
		MaxPollAttempts: layerswap.DefaultMaxPollAttempts,
	}
}

// ExecuteParams is a bridge request plus optional polling overrides
type ExecuteParams struct {
	types.BridgeRequest
	PollInterval    time.Duration
	MaxPollAttempts int
}

// SuccessResult is the payload of a completed bridge
type SuccessResult struct {
	SwapID                 string           `json:"swapId"`
	SourceTransaction      string           `json:"sourceTransaction"`
	DestinationTransaction string           `json:"destinationTransaction,omitempty"`
	Status                 types.SwapStatus `json:"status"`
	ReferenceID            string           `json:"referenceId"`
	Fee                    decimal.Decimal  `json:"fee"`
	Amount                 decimal.Decimal  `json:"amount"`
	DestinationAmount      decimal.Decimal  `json:"destinationAmount"`
}

// PendingResult is the payload of a bridge whose outcome is not known yet
type PendingResult struct {
	SwapID            string `json:"swapId"`
	SourceTransaction string `json:"sourceTransaction"`
	ReferenceID       string `json:"referenceId"`
	Message           string `json:"message"`
}

// Execute runs the whole bridge and always returns an envelope
func (o *Orchestrator) Execute(ctx context.Context, params ExecuteParams) types.Result {
	req := params.BridgeRequest
	if req.ReferenceID == "" {
		req.ReferenceID = "bridge-" + uuid.NewString()
	}

	log := zap.L().With(
		zap.String("reference_id", req.ReferenceID),
		zap.String("route", req.Route.String()),
		zap.String("amount", req.Amount.String()))

	result, rec, err := o.execute(ctx, params, req, log)
	if err != nil {
		log.Warn("Bridge execution failed", zap.Error(err))
		metrics.BridgeOutcomes.WithLabelValues(string(types.StatusError), string(apperr.KindOf(err))).Inc()
		if rec != nil {
			// entries whose deposit went out keep the status execute gave them
			if rec.Status == journal.StatusInFlight {
				rec.Status = journal.StatusError
			}
			rec.Error = err.Error()
			o.record(ctx, rec)
		}
		return types.Failure(err)
	}

	metrics.BridgeOutcomes.WithLabelValues(string(result.Status), "").Inc()
	o.record(ctx, rec)
	log.Info("Bridge execution finished", zap.String("status", string(result.Status)))
	return result
}

// execute returns the journal entry once the reference id is claimed so the
// caller can record the outcome.
func (o *Orchestrator) execute(ctx context.Context, params ExecuteParams, req types.BridgeRequest, log *zap.Logger) (types.Result, *journal.Entry, error) {
	if err := req.Validate(); err != nil {
		return types.Result{}, nil, apperr.Wrap(apperr.KindValidation, "bridge", err, "invalid bridge request")
	}
	if o.settler == nil {
		return types.Result{}, nil, apperr.New(apperr.KindSettlement, "bridge", "no settlement executor configured")
	}
	if err := o.settler.CanSettle(req.SourceNetwork); err != nil {
		return types.Result{}, nil, err
	}
	if req.SourceAddress == "" {
		req.SourceAddress = o.settler.AddressFor(req.SourceNetwork)
	}

	rec, err := o.claim(ctx, req)
	if err != nil {
		return types.Result{}, nil, err
	}
	if err := o.checkRemoteDuplicate(ctx, req.ReferenceID); err != nil {
		return types.Result{}, rec, err
	}

	limits, err := o.bridge.GetLimits(ctx, req.Route, req.Refuel)
	if err != nil {
		return types.Result{}, rec, err
	}
	if !limits.Contains(req.Amount) {
		return types.Result{}, rec, apperr.Newf(apperr.KindValidation, "bridge",
			"Amount must be between %s and %s %s", limits.MinAmount.String(), limits.MaxAmount.String(), req.SourceToken)
	}

	quote, err := o.bridge.GetQuote(ctx, layerswap.QuoteRequest{
		Route:         req.Route,
		Amount:        req.Amount,
		Refuel:        req.Refuel,
		SourceAddress: req.SourceAddress,
	})
	if err != nil {
		return types.Result{}, rec, err
	}
	log.Info("Quote received",
		zap.String("fee", fee(quote).String()),
		zap.String("destination_amount", quote.DestinationAmount.String()))

	swap, err := o.bridge.CreateSwap(ctx, req)
	if err != nil {
		return types.Result{}, rec, err
	}
	if rec != nil {
		rec.SwapID = swap.ID
		o.record(ctx, rec)
	}

	actions, err := o.bridge.GetDepositActions(ctx, swap.ID, req.SourceAddress)
	if err != nil {
		return types.Result{}, rec, err
	}
	if len(actions) == 0 {
		return types.Result{}, rec, apperr.New(apperr.KindUpstream, "bridge", "No deposit actions received from Layerswap")
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })
	action := actions[0]
	if action.Network.Name == "" {
		action.Network.Name = req.SourceNetwork
	}

	txHash, err := o.settler.Settle(ctx, action)
	if err != nil {
		return types.Result{}, rec, err
	}
	if rec != nil {
		rec.SourceTx = txHash
		o.record(ctx, rec)
	}
	log.Info("Deposit submitted", zap.String("swap_id", swap.ID), zap.String("tx_hash", txHash))

	poller := &layerswap.Poller{
		Source:      o.bridge,
		Interval:    firstPositive(params.PollInterval, o.PollInterval),
		MaxAttempts: firstPositiveInt(params.MaxPollAttempts, o.MaxPollAttempts),
		Wait:        o.Wait,
	}
	final, err := poller.PollUntilTerminal(ctx, swap.ID)
	if err != nil {
		// the deposit is on-chain: the reference id stays taken unless the
		// swap itself failed
		if rec != nil {
			rec.Status = journal.StatusPending
			if apperr.Is(err, apperr.KindSwapTerminal) {
				rec.Status = journal.StatusError
			}
		}
		if message, ok := pendingMessage(ctx, err); ok {
			log.Warn("Bridge left pending", zap.String("swap_id", swap.ID), zap.Error(err))
			return types.Pending(PendingResult{
				SwapID:            swap.ID,
				SourceTransaction: txHash,
				ReferenceID:       req.ReferenceID,
				Message:           message,
			}), rec, nil
		}
		return types.Result{}, rec, withSwapDetails(err, swap.ID, txHash, req.ReferenceID)
	}

	if rec != nil {
		rec.Status = journal.StatusSuccess
	}
	result := SuccessResult{
		SwapID:            swap.ID,
		SourceTransaction: txHash,
		Status:            final.Status,
		ReferenceID:       req.ReferenceID,
		Fee:               fee(quote),
		Amount:            req.Amount,
		DestinationAmount: quote.DestinationAmount,
	}
	if out := final.OutputTransaction(); out != nil {
		result.DestinationTransaction = out.TransactionHash
	}
	return types.Success(result), rec, nil
}

func (o *Orchestrator) claim(ctx context.Context, req types.BridgeRequest) (*journal.Entry, error) {
	if o.journal == nil {
		return nil, nil
	}
	rec := &journal.Entry{
		ReferenceID: req.ReferenceID,
		Route:       req.Route.String(),
		Amount:      req.Amount.String(),
	}
	if err := o.journal.Claim(ctx, *rec); err != nil {
		return nil, err
	}
	rec.Status = journal.StatusInFlight
	return rec, nil
}

// checkRemoteDuplicate rejects a reference id the bridge already knows about
// unless every swap under it ended in failure.
func (o *Orchestrator) checkRemoteDuplicate(ctx context.Context, referenceID string) error {
	swaps, err := o.bridge.GetSwapsByReference(ctx, referenceID)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Status == http.StatusNotFound {
			return nil
		}
		return err
	}
	for _, s := range swaps {
		if !s.Status.IsFailure() {
			return apperr.Newf(apperr.KindDuplicate, "bridge",
				"reference id %s already used by swap %s (%s)", referenceID, s.ID, s.Status)
		}
	}
	return nil
}

// record writes rec even when ctx was cancelled mid-bridge
func (o *Orchestrator) record(ctx context.Context, rec *journal.Entry) {
	if o.journal == nil || rec == nil {
		return
	}
	if err := o.journal.Update(context.WithoutCancel(ctx), *rec); err != nil {
		zap.L().Warn("Failed to update bridge journal",
			zap.String("reference_id", rec.ReferenceID),
			zap.Error(err))
	}
}

// pendingMessage reports whether a poll that ended with err leaves the
// swap's outcome unknown rather than failed
func pendingMessage(ctx context.Context, err error) (string, bool) {
	switch {
	case errors.Is(err, layerswap.ErrPollBudgetExhausted):
		return PendingMessage, true
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return InterruptedMessage, true
	}
	return "", false
}

// withSwapDetails keeps err's kind and status and puts the funded swap's
// identifiers into the details the caller sees.
func withSwapDetails(err error, swapID, txHash, referenceID string) error {
	details := map[string]any{
		"swapId":            swapID,
		"sourceTransaction": txHash,
		"referenceId":       referenceID,
	}
	out := &apperr.Error{
		Kind:    apperr.KindOf(err),
		Op:      "bridge",
		Message: "swap " + swapID + " was funded by " + txHash,
		Err:     err,
	}
	if e, ok := apperr.As(err); ok {
		out.Status = e.Status
		if e.Body != "" {
			if json.Valid([]byte(e.Body)) {
				details["swap"] = json.RawMessage(e.Body)
			} else {
				details["upstream"] = e.Body
			}
		}
	}
	body, _ := json.Marshal(details)
	out.Body = string(body)
	return out
}

// fee prefers the total fee and falls back to the plain fee
func fee(q *types.Quote) decimal.Decimal {
	if !q.TotalFee.IsZero() {
		return q.TotalFee
	}
	return q.Fee
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
