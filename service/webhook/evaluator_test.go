package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/supplywatch/service/alert"
	"github.com/brojonat/supplywatch/service/metrics"
	"github.com/brojonat/supplywatch/service/solana"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSupplyFetcher returns a configured supply per mint.
type mockSupplyFetcher struct {
	mu       sync.Mutex
	supplies map[string]string
	errs     map[string]error
	calls    []string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newMockSupplyFetcher() *mockSupplyFetcher {
	return &mockSupplyFetcher{
		supplies: make(map[string]string),
		errs:     make(map[string]error),
	}
}

func (m *mockSupplyFetcher) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, mint)
	supply, ok := m.supplies[mint]
	err := m.errs[mint]
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, solana.ErrNoSupplyValue
	}
	return &solana.TokenSupply{Mint: mint, UIAmount: decimal.RequireFromString(supply)}, nil
}

func (m *mockSupplyFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockDispatcher records every alert it receives.
type mockDispatcher struct {
	mu     sync.Mutex
	err    error
	alerts []alert.Alert
}

func (m *mockDispatcher) Name() string { return "mock" }

func (m *mockDispatcher) Dispatch(ctx context.Context, a alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return m.err
}

func (m *mockDispatcher) sent() []alert.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]alert.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func testOptions() Options {
	return Options{
		Wallets:   NewWalletSet([]string{"W1"}),
		Threshold: decimal.RequireFromString("0.2"),
	}
}

func newTestEvaluator(supply SupplyFetcher, d alert.Dispatcher, opts Options) *Evaluator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(supply, d, opts, nil, logger)
}

func rawTxns(t *testing.T, payload string) []json.RawMessage {
	t.Helper()
	var txns []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &txns))
	return txns
}

const singleTransfer = `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"}]}]`

func TestEvaluate_AboveThresholdAlerts(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, singleTransfer))

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "M1", alerts[0].Mint)
	assert.Equal(t, "W1", alerts[0].Wallet)
	assert.Equal(t, "F1", alerts[0].Sender)
	assert.Equal(t, "S1", alerts[0].Signature)
	assert.Equal(t, "0.2500", alerts[0].PercentageString())
	assert.Equal(t, "100000000", alerts[0].TotalSupply.String())
	assert.False(t, alerts[0].DetectedAt.IsZero())

	assert.Equal(t, 1, summary.Transactions)
	assert.Equal(t, 1, summary.TransfersEvaluated)
	assert.Equal(t, 1, summary.AlertsSent)
	assert.Equal(t, 0, summary.AlertsFailed)
}

// fixedSupplyRPC answers getTokenSupply with the same UI amount for every mint.
type fixedSupplyRPC struct {
	mu       sync.Mutex
	uiAmount string
	calls    []string
}

func (f *fixedSupplyRPC) GetTokenSupply(ctx context.Context, mint string) (*rpc.GetTokenSupplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mint)
	return &rpc.GetTokenSupplyResult{
		Value: &rpc.UiTokenAmount{Amount: f.uiAmount, UiAmountString: f.uiAmount},
	}, nil
}

func TestEvaluate_AlertsThroughSolanaClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rpcClient := &fixedSupplyRPC{uiAmount: "100000000"}
	dispatcher := &mockDispatcher{}

	e := newTestEvaluator(solana.NewClient(rpcClient, "test", nil, logger), dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, singleTransfer))

	assert.Equal(t, []string{"M1"}, rpcClient.calls)
	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "0.2500", alerts[0].PercentageString())
	assert.Equal(t, 1, summary.AlertsSent)
	assert.Empty(t, summary.Skipped)
}

func TestEvaluate_BelowThresholdDoesNotAlert(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "1000000000"
	dispatcher := &mockDispatcher{}

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, singleTransfer))

	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 1, supply.callCount())
	assert.Equal(t, 1, summary.TransfersEvaluated)
	assert.Equal(t, 0, summary.AlertsSent)
}

func TestEvaluate_ExactlyAtThresholdAlerts(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "125000000"
	dispatcher := &mockDispatcher{}

	e := newTestEvaluator(supply, dispatcher, testOptions())
	e.Evaluate(context.Background(), rawTxns(t, singleTransfer))

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "0.2000", alerts[0].PercentageString())
}

func TestEvaluate_NonWatchedWalletSkipsFetch(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100"
	dispatcher := &mockDispatcher{}

	payload := `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[{"mint":"M1","toUserAccount":"OTHER","fromUserAccount":"F1","tokenAmount":"250000"}]}]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Equal(t, 0, supply.callCount())
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 1, summary.Skipped[SkipNotWatched])
}

func TestEvaluate_SupplyFailureContinues(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.errs["BAD"] = errors.New("connection refused")
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	payload := `[
		{"type":"TRANSFER","signature":"S0","tokenTransfers":[
			{"mint":"BAD","toUserAccount":"W1","fromUserAccount":"F0","tokenAmount":"999999999"},
			{"mint":"MISSING","toUserAccount":"W1","fromUserAccount":"F0","tokenAmount":"999999999"}
		]},
		{"type":"TRANSFER","signature":"S1","tokenTransfers":[
			{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"}
		]}
	]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "S1", alerts[0].Signature)
	assert.Equal(t, 3, supply.callCount())
	assert.Equal(t, 2, summary.Skipped[SkipSupplyUnavailable])
}

func TestEvaluate_InvalidAmountSkipsWithoutFetch(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100"
	dispatcher := &mockDispatcher{}

	payload := `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"NaN-ish"}]}]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Equal(t, 0, supply.callCount())
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 1, summary.Skipped[SkipInvalidAmount])
}

func TestEvaluate_ZeroSupplyNeverAlerts(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "0"
	dispatcher := &mockDispatcher{}

	e := newTestEvaluator(supply, dispatcher, testOptions())

	var summary Summary
	assert.NotPanics(t, func() {
		summary = e.Evaluate(context.Background(), rawTxns(t, singleTransfer))
	})
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 1, summary.Skipped[SkipSupplyUnavailable])
}

func TestEvaluate_SkipsNonTransferTransactions(t *testing.T) {
	supply := newMockSupplyFetcher()
	dispatcher := &mockDispatcher{}

	payload := `[
		{"type":"SWAP","signature":"S1","tokenTransfers":[{"mint":"M1","toUserAccount":"W1","tokenAmount":"1"}]},
		{"type":"TRANSFER","signature":"S2","tokenTransfers":[]},
		{"type":"TRANSFER","signature":"S3"},
		"not an object",
		42
	]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Equal(t, 0, supply.callCount())
	assert.Equal(t, 5, summary.Transactions)
	assert.Equal(t, 3, summary.Skipped[SkipNotTransfer])
	assert.Equal(t, 2, summary.Skipped[SkipInvalidTransaction])
}

func TestEvaluate_FilterSkipsBeforeFetch(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	filter, err := NewFilter(`.source == "PUMP_FUN"`)
	require.NoError(t, err)
	opts := testOptions()
	opts.Filter = filter

	payload := `[
		{"type":"TRANSFER","signature":"S1","source":"RAYDIUM","tokenTransfers":[{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"}]},
		{"type":"TRANSFER","signature":"S2","source":"PUMP_FUN","tokenTransfers":[{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"}]}
	]`

	e := newTestEvaluator(supply, dispatcher, opts)
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "S2", alerts[0].Signature)
	assert.Equal(t, 1, supply.callCount())
	assert.Equal(t, 1, summary.Skipped[SkipFiltered])
}

func TestEvaluate_RepeatedMintFetchesEachTime(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	payload := `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[
		{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"},
		{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F2","tokenAmount":"300000"}
	]}]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Equal(t, 2, supply.callCount())
	assert.Len(t, dispatcher.sent(), 2)
}

func TestEvaluate_DispatchFailureIsCounted(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{err: errors.New("telegram down")}

	payload := `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[
		{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"},
		{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F2","tokenAmount":"300000"}
	]}]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	summary := e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Len(t, dispatcher.sent(), 2)
	assert.Equal(t, 0, summary.AlertsSent)
	assert.Equal(t, 2, summary.AlertsFailed)
}

func TestEvaluate_ConcurrencyEvaluatesEachTransferOnce(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.delay = 20 * time.Millisecond
	dispatcher := &mockDispatcher{}

	var transfers []map[string]string
	for i := 0; i < 12; i++ {
		mint := "M" + string(rune('A'+i))
		supply.supplies[mint] = "100000000"
		transfers = append(transfers, map[string]string{
			"mint":            mint,
			"toUserAccount":   "W1",
			"fromUserAccount": "F1",
			"tokenAmount":     "250000",
		})
	}
	payload, err := json.Marshal([]map[string]any{{
		"type":           "TRANSFER",
		"signature":      "S1",
		"tokenTransfers": transfers,
	}})
	require.NoError(t, err)

	opts := testOptions()
	opts.Concurrency = 4

	e := newTestEvaluator(supply, dispatcher, opts)
	summary := e.Evaluate(context.Background(), rawTxns(t, string(payload)))

	assert.Equal(t, 12, supply.callCount())
	assert.Equal(t, 12, summary.AlertsSent)

	seen := make(map[string]int)
	for _, a := range dispatcher.sent() {
		seen[a.Mint]++
	}
	assert.Len(t, seen, 12)
	for mint, n := range seen {
		assert.Equal(t, 1, n, mint)
	}
	assert.LessOrEqual(t, supply.maxSeen.Load(), int32(4))
}

func TestEvaluate_SequentialByDefault(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.delay = 5 * time.Millisecond
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	payload := `[{"type":"TRANSFER","signature":"S1","tokenTransfers":[
		{"mint":"M1","toUserAccount":"W1","tokenAmount":"1"},
		{"mint":"M1","toUserAccount":"W1","tokenAmount":"2"},
		{"mint":"M1","toUserAccount":"W1","tokenAmount":"3"}
	]}]`

	e := newTestEvaluator(supply, dispatcher, testOptions())
	e.Evaluate(context.Background(), rawTxns(t, payload))

	assert.Equal(t, 3, supply.callCount())
	assert.Equal(t, int32(1), supply.maxSeen.Load())
}

func TestEvaluate_OutboundTimeout(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.delay = time.Second
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}

	opts := testOptions()
	opts.OutboundTimeout = 10 * time.Millisecond

	e := newTestEvaluator(supply, dispatcher, opts)

	start := time.Now()
	summary := e.Evaluate(context.Background(), rawTxns(t, singleTransfer))

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 1, summary.Skipped[SkipSupplyUnavailable])
}

func TestEvaluate_RecordsMetrics(t *testing.T) {
	supply := newMockSupplyFetcher()
	supply.supplies["M1"] = "100000000"
	dispatcher := &mockDispatcher{}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	payload := `[
		{"type":"TRANSFER","signature":"S1","tokenTransfers":[
			{"mint":"M1","toUserAccount":"W1","fromUserAccount":"F1","tokenAmount":"250000"},
			{"mint":"M1","toUserAccount":"OTHER","fromUserAccount":"F1","tokenAmount":"250000"}
		]},
		{"type":"SWAP","signature":"S2"}
	]`

	e := NewEvaluator(supply, dispatcher, testOptions(), m, logger)
	e.Evaluate(context.Background(), rawTxns(t, payload))

	expected := `
# HELP token_transfers_evaluated_total Total number of token transfers whose supply percentage was computed
# TYPE token_transfers_evaluated_total counter
token_transfers_evaluated_total 1
# HELP token_transfers_skipped_total Total number of token transfers skipped by reason
# TYPE token_transfers_skipped_total counter
token_transfers_skipped_total{reason="not_watched"} 1
# HELP webhook_transactions_total Total number of transactions received in webhook payloads by outcome
# TYPE webhook_transactions_total counter
webhook_transactions_total{outcome="not_transfer"} 1
webhook_transactions_total{outcome="processed"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"token_transfers_evaluated_total",
		"token_transfers_skipped_total",
		"webhook_transactions_total",
	)
	assert.NoError(t, err)
}

func TestEvaluator_WalletCount(t *testing.T) {
	e := newTestEvaluator(newMockSupplyFetcher(), &mockDispatcher{}, Options{})
	assert.Equal(t, 0, e.WalletCount())

	e = newTestEvaluator(newMockSupplyFetcher(), &mockDispatcher{}, testOptions())
	assert.Equal(t, 1, e.WalletCount())
}
