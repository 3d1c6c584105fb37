package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
	"github.com/rovshanmuradov/solana-portfolio/internal/events"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
	"github.com/rovshanmuradov/solana-portfolio/internal/pricefeed"
	"github.com/rovshanmuradov/solana-portfolio/internal/storage/gormstore"
)

var (
	testOwner  = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	testMint   = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	errOffline = errors.New("connection refused")
)

type fakeChain struct {
	mu       sync.Mutex
	balances portfolio.Balances
	balErr   error
	history  []activity.TxHistoryEntry
	histErr  error
	decimals int
	decCalls int
}

func (f *fakeChain) FetchBalances(context.Context, solana.PublicKey, solana.PublicKey) (portfolio.Balances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, f.balErr
}

func (f *fakeChain) History(context.Context, solana.PublicKey, int) ([]activity.TxHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, f.histErr
}

func (f *fakeChain) TokenDecimals(context.Context, solana.PublicKey) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decCalls++
	return f.decimals, nil
}

func (f *fakeChain) setOffline(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balErr = err
}

type fakeFeed struct {
	prices   pricefeed.Prices
	err      error
	quoteOut float64
	gotDec   int
}

func (f *fakeFeed) Prices(context.Context, string) (pricefeed.Prices, error) {
	return f.prices, f.err
}

func (f *fakeFeed) Quote(_ context.Context, _ string, decimals int, inputSOL float64, _ int) (pricefeed.Quote, error) {
	f.gotDec = decimals
	return pricefeed.Quote{InputSOL: inputSOL, Output: f.quoteOut}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	svc   *Service
	chain *fakeChain
	feed  *fakeFeed
	store *gormstore.Store
	clock *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := gormstore.Open(gormstore.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "portfolio.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		chain: &fakeChain{balances: portfolio.Balances{SOL: 1.5, Bitty: 1000}, decimals: 6},
		feed: &fakeFeed{prices: pricefeed.Prices{
			TokenPriceNative: 0.01,
			NativeUSD:        amount.Some(150),
		}},
		store: store,
		clock: &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc = NewService(Config{
		Owner:            testOwner,
		Mint:             testMint,
		RPCTimeout:       time.Second,
		HistoryLimit:     25,
		MatchWindow:      2 * time.Minute,
		PendingRetention: 24 * time.Hour,
		QuoteTolerance:   1,
		SlippageBps:      50,
	}, f.chain, f.feed, store, zap.NewNop(), opts...)
	return f
}

func blockTime(t time.Time) *int64 {
	v := t.Unix()
	return &v
}

func TestRefreshLive(t *testing.T) {
	f := newFixture(t)
	t0 := f.clock.Now()
	f.chain.history = []activity.TxHistoryEntry{
		{Signature: "sig1", Slot: 10, BlockTime: blockTime(t0.Add(-time.Minute)), Memo: "Swap"},
	}

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, portfolio.SourceLive, ov.Snapshot.Source)
	assert.Equal(t, 1.5, ov.Snapshot.SOLBalance)
	require.NotNil(t, ov.Snapshot.LastUpdated)
	assert.True(t, t0.Equal(*ov.Snapshot.LastUpdated))
	assert.Empty(t, ov.Alerts)
	require.Len(t, ov.Activity, 1)
	assert.Equal(t, "sig1", ov.Activity[0].ID)
	assert.Equal(t, activity.DefaultExplorerURL+"sig1", ov.Activity[0].Link)

	// 1.5 SOL + 1000 tokens at 0.01 SOL = 11.5 SOL at $150
	require.True(t, ov.ValueUSD.Valid)
	assert.InDelta(t, 1725.0, ov.ValueUSD.Value, 1e-9)

	cached, err := f.store.LoadPortfolio(context.Background(), testOwner.String())
	require.NoError(t, err)
	assert.Equal(t, portfolio.SourceLive, cached.LastSource)
	assert.True(t, t0.Equal(*cached.LastUpdated))
}

func TestRefreshOfflineUsesCachedTimestamp(t *testing.T) {
	f := newFixture(t)
	t0 := f.clock.Now()

	_, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)

	f.chain.setOffline(errOffline)
	f.clock.Set(t0.Add(90 * time.Minute))

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, portfolio.SourceLocal, ov.Snapshot.Source)
	assert.Equal(t, 1.5, ov.Snapshot.SOLBalance)
	assert.Equal(t, 1000.0, ov.Snapshot.BittyBalance)
	require.NotNil(t, ov.Snapshot.LastUpdated)
	assert.True(t, t0.Equal(*ov.Snapshot.LastUpdated), "fallback must keep the cached timestamp")

	require.Len(t, ov.Alerts, 1)
	assert.Contains(t, ov.Alerts[0].Message, "1h30m0s")

	cached, err := f.store.LoadPortfolio(context.Background(), testOwner.String())
	require.NoError(t, err)
	assert.True(t, t0.Equal(*cached.LastUpdated))
	assert.Equal(t, 1.5, cached.SOLBalance)
	assert.Equal(t, portfolio.SourceLocal, cached.LastSource)
}

func TestRefreshOfflineFirstRun(t *testing.T) {
	f := newFixture(t)
	f.chain.setOffline(errOffline)

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, portfolio.Snapshot{Source: portfolio.SourceLocal}, ov.Snapshot)
	require.Len(t, ov.Alerts, 1)
	assert.Contains(t, ov.Alerts[0].Message, "no cached data yet")

	_, err = f.store.LoadPortfolio(context.Background(), testOwner.String())
	assert.Error(t, err)
}

func TestRefreshHistoryFailureKeepsLocalEntries(t *testing.T) {
	f := newFixture(t)
	f.chain.histErr = errOffline

	pending, err := f.svc.RecordPending(context.Background(), "Swap", "1 SOL to BITTY", "")
	require.NoError(t, err)

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, portfolio.SourceLive, ov.Snapshot.Source)
	require.Len(t, ov.Alerts, 1)
	assert.Contains(t, ov.Alerts[0].ID, "history-")
	require.Len(t, ov.Activity, 1)
	assert.Equal(t, pending.ID, ov.Activity[0].ID)
	assert.Equal(t, activity.StatusPending, ov.Activity[0].Status)
}

func TestRefreshConfirmsPendingEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.clock.Now()

	bySig, err := f.svc.RecordPending(ctx, "Send", "", "sigA")
	require.NoError(t, err)
	byTime, err := f.svc.RecordPending(ctx, "Swap", "", "")
	require.NoError(t, err)
	stale, err := f.svc.RecordPending(ctx, "Stake", "", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkFailed(ctx, stale.ID, "rejected by wallet"))

	f.chain.history = []activity.TxHistoryEntry{
		{Signature: "sigA", Slot: 1, BlockTime: blockTime(t0.Add(10 * time.Second)), Memo: "Send"},
		{Signature: "sigB", Slot: 2, BlockTime: blockTime(t0.Add(30 * time.Second)), Memo: "Swap"},
	}

	ov, err := f.svc.Refresh(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(ov.Activity))
	for _, e := range ov.Activity {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"sigA", "sigB", stale.ID}, ids)
	assert.NotContains(t, ids, bySig.ID)
	assert.NotContains(t, ids, byTime.ID)

	for _, e := range ov.Activity {
		if e.ID == stale.ID {
			assert.Equal(t, activity.StatusError, e.Status)
			assert.Equal(t, "rejected by wallet", e.Detail)
		}
	}
}

func TestRefreshConfirmsPendingByMemolessTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.clock.Now()

	pending, err := f.svc.RecordPending(ctx, "Swap", "", "")
	require.NoError(t, err)

	f.chain.history = []activity.TxHistoryEntry{
		{Signature: "sigB", Slot: 2, BlockTime: blockTime(t0.Add(10 * time.Second))},
	}

	ov, err := f.svc.Refresh(ctx)
	require.NoError(t, err)

	require.Len(t, ov.Activity, 1)
	assert.Equal(t, "sigB", ov.Activity[0].ID)
	assert.Equal(t, activity.SourceOnchain, ov.Activity[0].Source)
	assert.Equal(t, activity.StatusSuccess, ov.Activity[0].Status)
	assert.NotEqual(t, pending.ID, ov.Activity[0].ID)
}

func TestRefreshPrunesStalePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.clock.Now()

	_, err := f.svc.RecordPending(ctx, "Swap", "", "")
	require.NoError(t, err)

	f.clock.Set(t0.Add(25 * time.Hour))
	ov, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, ov.Activity)

	left, err := f.store.ListActivity(ctx, testOwner.String(), 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRefreshCanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshPriceFeedDown(t *testing.T) {
	f := newFixture(t)
	f.feed.err = pricefeed.ErrPriceUnavailable

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, ov.ValueUSD.Valid)
	assert.False(t, ov.SOLPriceUSD.Valid)
	assert.Empty(t, ov.Alerts)
}

func TestRetryRequestsCoalesce(t *testing.T) {
	f := newFixture(t)
	f.chain.setOffline(errOffline)

	ov, err := f.svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.Alerts, 1)
	require.NotNil(t, ov.Alerts[0].OnRetry)

	ov.Alerts[0].OnRetry()
	ov.Alerts[0].OnRetry()

	select {
	case <-f.svc.RetryRequests():
	default:
		t.Fatal("expected a retry request")
	}
	select {
	case <-f.svc.RetryRequests():
		t.Fatal("retry requests should coalesce")
	default:
	}
}

func TestCheckQuoteWithGivenOutput(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 8)
	defer bus.Shutdown(context.Background())

	got := make(chan events.QuoteReconciledEvent, 1)
	bus.SubscribeFunc(events.QuoteReconciled, func(_ context.Context, e events.Event) error {
		got <- e.(events.QuoteReconciledEvent)
		return nil
	})

	f := newFixture(t, WithBus(bus))
	check, err := f.svc.CheckQuote(context.Background(), 1, 98.5)
	require.NoError(t, err)

	in := check.Insights
	assert.InDelta(t, 100, in.BenchmarkOutput, 1e-9)
	assert.InDelta(t, -1.5, in.Difference, 1e-9)
	require.True(t, in.PercentDiff.Valid)
	assert.InDelta(t, -1.5, in.PercentDiff.Value, 1e-9)
	assert.InDelta(t, 98.5, in.ImpliedPriceNative.Value, 1e-9)
	assert.InDelta(t, 14775, in.USDValue.Value, 1e-6)
	assert.True(t, check.Alert)

	select {
	case ev := <-got:
		assert.True(t, ev.Alert)
		assert.Equal(t, 1.0, ev.InputSOL)
	case <-time.After(2 * time.Second):
		t.Fatal("quote event not published")
	}
}

func TestCheckQuoteFetchesAggregatorQuote(t *testing.T) {
	f := newFixture(t)
	f.feed.quoteOut = 100.5

	check, err := f.svc.CheckQuote(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, f.feed.gotDec)
	assert.InDelta(t, 0.5, check.Insights.PercentDiff.Value, 1e-9)
	assert.False(t, check.Alert)

	_, err = f.svc.CheckQuote(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.chain.decCalls)
}

func TestCheckQuoteWithoutBenchmark(t *testing.T) {
	f := newFixture(t)
	f.feed.prices.TokenPriceNative = 0

	_, err := f.svc.CheckQuote(context.Background(), 1, 98.5)
	assert.ErrorIs(t, err, ErrNoBenchmark)

	f.feed.err = pricefeed.ErrPriceUnavailable
	_, err = f.svc.CheckQuote(context.Background(), 1, 98.5)
	assert.ErrorIs(t, err, ErrNoBenchmark)

	_, err = f.svc.CheckQuote(context.Background(), 0, 98.5)
	assert.Error(t, err)
}
