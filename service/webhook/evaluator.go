package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/supplywatch/service/alert"
	"github.com/brojonat/supplywatch/service/metrics"
	"github.com/brojonat/supplywatch/service/solana"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Skip reasons, used as summary keys and metric labels.
const (
	SkipInvalidTransaction = "invalid_transaction"
	SkipFiltered           = "filtered"
	SkipNotTransfer        = "not_transfer"
	SkipNotWatched         = "not_watched"
	SkipInvalidAmount      = "invalid_amount"
	SkipSupplyUnavailable  = "supply_unavailable"
)

var hundred = decimal.NewFromInt(100)

// SupplyFetcher looks up the total UI-scaled supply of a mint.
type SupplyFetcher interface {
	GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error)
}

// Options configures an Evaluator.
type Options struct {
	Wallets WalletSet

	// Threshold is the minimum percentage of supply that raises an alert.
	Threshold decimal.Decimal

	// Concurrency caps in-flight transfer evaluations. Values below 1 mean 1.
	Concurrency int

	// OutboundTimeout bounds each supply fetch and alert dispatch. Zero means none.
	OutboundTimeout time.Duration

	// Filter is applied to each raw transaction before decoding. Nil accepts all.
	Filter *Filter
}

// Evaluator finds transfers into watched wallets that move a large share
// of their token's supply and hands them to a dispatcher.
type Evaluator struct {
	supply     SupplyFetcher
	dispatcher alert.Dispatcher
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewEvaluator creates an Evaluator. If m is nil, no metrics are recorded.
func NewEvaluator(supply SupplyFetcher, dispatcher alert.Dispatcher, opts Options, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Evaluator{
		supply:     supply,
		dispatcher: dispatcher,
		opts:       opts,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WalletCount returns the number of watched wallets.
func (e *Evaluator) WalletCount() int {
	return len(e.opts.Wallets)
}

// candidate is a transfer into a watched wallet with a parsed amount.
type candidate struct {
	signature string
	transfer  TokenTransfer
	amount    decimal.Decimal
}

// Evaluate scans txns and dispatches an alert for every qualifying transfer.
// Per-item failures are logged and counted; they never abort the batch.
func (e *Evaluator) Evaluate(ctx context.Context, txns []json.RawMessage) Summary {
	rec := newSummaryRecorder()

	var candidates []candidate
	for i, raw := range txns {
		rec.transaction()
		candidates = append(candidates, e.scanTransaction(ctx, i, raw, rec)...)
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			e.evaluateTransfer(ctx, c, rec)
			return nil
		})
	}
	_ = g.Wait()

	return rec.summary()
}

// scanTransaction returns the transfers of raw that need a supply lookup.
func (e *Evaluator) scanTransaction(ctx context.Context, index int, raw json.RawMessage, rec *summaryRecorder) []candidate {
	var txn Transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		e.logger.DebugContext(ctx, "skipping undecodable transaction", "index", index, "error", err)
		e.skipTransaction(rec, SkipInvalidTransaction)
		return nil
	}

	if e.opts.Filter != nil {
		ok, err := e.opts.Filter.Match(ctx, raw)
		if err != nil {
			e.logger.WarnContext(ctx, "transaction filter failed",
				"signature", txn.Signature,
				"filter", e.opts.Filter.String(),
				"error", err,
			)
		}
		if !ok {
			e.logger.DebugContext(ctx, "transaction filtered out", "signature", txn.Signature)
			e.skipTransaction(rec, SkipFiltered)
			return nil
		}
	}

	if !txn.IsTokenTransfer() {
		e.skipTransaction(rec, SkipNotTransfer)
		return nil
	}
	e.metrics.RecordWebhookTransaction("processed")

	var out []candidate
	for _, transfer := range txn.TokenTransfers {
		if !e.opts.Wallets.Contains(transfer.ToUserAccount) {
			e.skipTransfer(rec, SkipNotWatched)
			continue
		}

		amount, err := ParseAmount(transfer.TokenAmount)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping transfer with invalid amount",
				"signature", txn.Signature,
				"mint", transfer.Mint,
				"wallet", transfer.ToUserAccount,
				"error", err,
			)
			e.skipTransfer(rec, SkipInvalidAmount)
			continue
		}

		out = append(out, candidate{
			signature: txn.Signature,
			transfer:  transfer,
			amount:    amount,
		})
	}
	return out
}

// evaluateTransfer fetches the mint's supply and alerts when the threshold is met.
func (e *Evaluator) evaluateTransfer(ctx context.Context, c candidate, rec *summaryRecorder) {
	logger := e.logger.With(
		"signature", c.signature,
		"mint", c.transfer.Mint,
		"wallet", c.transfer.ToUserAccount,
	)

	fetchCtx, cancel := e.outboundContext(ctx)
	supply, err := e.supply.GetTokenSupply(fetchCtx, c.transfer.Mint)
	cancel()
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch token supply", "error", err)
		e.skipTransfer(rec, SkipSupplyUnavailable)
		return
	}
	if supply == nil || !supply.UIAmount.IsPositive() {
		logger.WarnContext(ctx, "token supply is not positive")
		e.skipTransfer(rec, SkipSupplyUnavailable)
		return
	}

	percentage := Percentage(c.amount, supply.UIAmount)
	rec.evaluated()
	e.metrics.RecordTransferEvaluated(percentage.InexactFloat64())

	if percentage.LessThan(e.opts.Threshold) {
		logger.DebugContext(ctx, "transfer below threshold",
			"amount", c.amount.String(),
			"percentage", percentage.StringFixed(4),
		)
		return
	}

	a := alert.Alert{
		Wallet:      c.transfer.ToUserAccount,
		Mint:        c.transfer.Mint,
		Amount:      c.amount,
		Decimals:    c.transfer.DecimalPlaces(),
		Percentage:  percentage,
		TotalSupply: supply.UIAmount,
		Signature:   c.signature,
		Sender:      c.transfer.FromUserAccount,
		DetectedAt:  e.now(),
	}

	logger.InfoContext(ctx, "large transfer detected",
		"amount", c.amount.String(),
		"percentage", a.PercentageString(),
		"from", a.Sender,
	)

	sendCtx, cancel := e.outboundContext(ctx)
	defer cancel()
	if err := e.dispatcher.Dispatch(sendCtx, a); err != nil {
		logger.WarnContext(ctx, "alert delivery failed", "error", err)
		rec.alertFailed()
		return
	}
	rec.alertSent()
}

func (e *Evaluator) outboundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.OutboundTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.OutboundTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Evaluator) skipTransaction(rec *summaryRecorder, reason string) {
	rec.skip(reason)
	e.metrics.RecordWebhookTransaction(reason)
}

func (e *Evaluator) skipTransfer(rec *summaryRecorder, reason string) {
	rec.skip(reason)
	e.metrics.RecordTransferSkipped(reason)
}

// Summary counts what happened to one webhook batch.
type Summary struct {
	Transactions       int
	TransfersEvaluated int
	AlertsSent         int
	AlertsFailed       int
	Skipped            map[string]int
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("transactions", s.Transactions),
		slog.Int("transfers_evaluated", s.TransfersEvaluated),
		slog.Int("alerts_sent", s.AlertsSent),
		slog.Int("alerts_failed", s.AlertsFailed),
	}
	for reason, n := range s.Skipped {
		attrs = append(attrs, slog.Int("skipped_"+reason, n))
	}
	return slog.GroupValue(attrs...)
}

// summaryRecorder accumulates a Summary across concurrent evaluations.
type summaryRecorder struct {
	mu sync.Mutex
	s  Summary
}

func newSummaryRecorder() *summaryRecorder {
	return &summaryRecorder{s: Summary{Skipped: make(map[string]int)}}
}

func (r *summaryRecorder) transaction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Transactions++
}

func (r *summaryRecorder) evaluated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.TransfersEvaluated++
}

func (r *summaryRecorder) alertSent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.AlertsSent++
}

func (r *summaryRecorder) alertFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.AlertsFailed++
}

func (r *summaryRecorder) skip(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Skipped[reason]++
}

func (r *summaryRecorder) summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.s
	out.Skipped = make(map[string]int, len(r.s.Skipped))
	for k, v := range r.s.Skipped {
		out.Skipped[k] = v
	}
	return out
}
