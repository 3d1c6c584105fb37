// internal/tracker/service.go
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
	"github.com/rovshanmuradov/solana-portfolio/internal/events"
	"github.com/rovshanmuradov/solana-portfolio/internal/metrics"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
	"github.com/rovshanmuradov/solana-portfolio/internal/pricefeed"
	"github.com/rovshanmuradov/solana-portfolio/internal/quote"
	"github.com/rovshanmuradov/solana-portfolio/internal/storage"
)

// ErrNoBenchmark is returned when no spot price is available to check a quote against.
var ErrNoBenchmark = errors.New("no benchmark price available")

// Chain reads wallet state from the network.
type Chain interface {
	FetchBalances(ctx context.Context, owner, mint solana.PublicKey) (portfolio.Balances, error)
	History(ctx context.Context, owner solana.PublicKey, limit int) ([]activity.TxHistoryEntry, error)
	TokenDecimals(ctx context.Context, mint solana.PublicKey) (int, error)
}

// PriceFeed supplies spot prices and swap quotes.
type PriceFeed interface {
	Prices(ctx context.Context, mint string) (pricefeed.Prices, error)
	Quote(ctx context.Context, mint string, tokenDecimals int, inputSOL float64, slippageBps int) (pricefeed.Quote, error)
}

// Config holds the tracked wallet and tuning parameters.
type Config struct {
	Owner            solana.PublicKey
	Mint             solana.PublicKey
	RPCTimeout       time.Duration
	HistoryLimit     int
	MatchWindow      time.Duration
	PendingRetention time.Duration
	QuoteTolerance   float64 // percent
	SlippageBps      int
	ExplorerURL      string
}

// Overview is the result of one refresh.
type Overview struct {
	Wallet   string
	Snapshot portfolio.Snapshot
	Activity []activity.Entry
	Alerts   []portfolio.NetworkAlert

	// Prices are absent when the price feed could not be reached.
	SOLPriceUSD   amount.Optional
	TokenPriceSOL amount.Optional
	ValueUSD      amount.Optional
}

// QuoteCheck is the outcome of CheckQuote.
type QuoteCheck struct {
	InputSOL float64
	Insights quote.Insights
	Alert    bool
}

// Service resolves balances, merges activity and checks quotes for one wallet.
type Service struct {
	cfg     Config
	wallet  string
	chain   Chain
	prices  PriceFeed
	store   storage.Storage
	bus     *events.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time

	retry chan struct{}

	mu            sync.Mutex
	tokenDecimals *int
}

// Option customizes a Service.
type Option func(*Service)

// WithBus publishes tracker events to bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records tracker metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

func NewService(cfg Config, chain Chain, prices PriceFeed, store storage.Storage, logger *zap.Logger, opts ...Option) *Service {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 8 * time.Second
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = activity.DefaultExplorerURL
	}

	s := &Service{
		cfg:    cfg,
		wallet: cfg.Owner.String(),
		chain:  chain,
		prices: prices,
		store:  store,
		logger: logger.Named("tracker"),
		now:    time.Now,
		retry:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics, _ = metrics.NewCollector(nil)
	}
	return s
}

// RetryRequests delivers a signal each time the user asks to retry from an
// alert. Requests coalesce while one is pending.
func (s *Service) RetryRequests() <-chan struct{} {
	return s.retry
}

func (s *Service) requestRetry() {
	select {
	case s.retry <- struct{}{}:
	default:
	}
}

// Refresh resolves balances and rebuilds the activity feed. Network failures
// degrade the overview and attach alerts; only context cancellation fails it.
func (s *Service) Refresh(ctx context.Context) (*Overview, error) {
	now := s.now()
	cached := s.loadCached(ctx)

	var (
		res      portfolio.Resolution
		onchain  []activity.TxHistoryEntry
		histErr  error
		prices   pricefeed.Prices
		priceErr error
		g        errgroup.Group
	)

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
		defer cancel()
		fetch := func(ctx context.Context) (portfolio.Balances, error) {
			return s.chain.FetchBalances(ctx, s.cfg.Owner, s.cfg.Mint)
		}
		res = portfolio.ResolveBalances(fetchCtx, fetch, cached, now)
		return nil
	})
	g.Go(func() error {
		onchain, histErr = s.chain.History(ctx, s.cfg.Owner, s.cfg.HistoryLimit)
		return nil
	})
	if s.prices != nil {
		g.Go(func() error {
			prices, priceErr = s.prices.Prices(ctx, s.cfg.Mint.String())
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	overview := &Overview{Wallet: s.wallet, Snapshot: res.Snapshot}
	s.metrics.RecordResolution(string(res.Snapshot.Source))

	if res.Degraded() {
		s.logger.Warn("Live balance unavailable",
			zap.String("wallet", s.wallet),
			zap.Bool("cached", res.Snapshot.LastUpdated != nil),
			zap.Error(res.FetchErr))
		if alert := portfolio.NewBalanceAlert(res, now, s.requestRetry); alert != nil {
			overview.Alerts = append(overview.Alerts, *alert)
			s.publish(events.NewNetworkDegraded(s.wallet, *alert, res.FetchErr, now))
		}
	}
	// The zero-state of a first run without network is not a portfolio.
	if res.Snapshot.LastUpdated != nil {
		if err := s.store.SavePortfolio(ctx, s.wallet, res.Snapshot.Track()); err != nil {
			s.logger.Error("Failed to persist portfolio", zap.String("wallet", s.wallet), zap.Error(err))
		}
	}
	s.publish(events.NewBalanceResolved(s.wallet, res.Snapshot, now))

	if histErr != nil {
		s.logger.Warn("Transaction history unavailable", zap.String("wallet", s.wallet), zap.Error(histErr))
		onchain = nil
		alert := portfolio.NetworkAlert{
			ID:      "history-" + uuid.NewString(),
			Title:   "Network issue",
			Message: "Recent on-chain activity unavailable, showing local entries only.",
			OnRetry: s.requestRetry,
		}
		overview.Alerts = append(overview.Alerts, alert)
		s.publish(events.NewNetworkDegraded(s.wallet, alert, histErr, now))
	}

	overview.Activity = activity.MergeWith(onchain, s.localActivity(ctx, now), activity.Options{
		MatchWindow: s.cfg.MatchWindow,
		ExplorerURL: s.cfg.ExplorerURL,
	})
	s.metrics.SetActivityCounts(countBySource(overview.Activity))

	if priceErr != nil {
		s.logger.Warn("Prices unavailable", zap.Error(priceErr))
	} else if s.prices != nil {
		overview.SOLPriceUSD = prices.NativeUSD
		overview.TokenPriceSOL = amount.Some(prices.TokenPriceNative)
		overview.ValueUSD = valueUSD(res.Snapshot, prices)
	}

	return overview, nil
}

func (s *Service) loadCached(ctx context.Context) *portfolio.TrackedPortfolio {
	cached, err := s.store.LoadPortfolio(ctx, s.wallet)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to load cached portfolio", zap.String("wallet", s.wallet), zap.Error(err))
		}
		return nil
	}
	return cached
}

// localActivity loads local entries and drops stale pending ones.
func (s *Service) localActivity(ctx context.Context, now time.Time) []activity.Entry {
	if s.cfg.PendingRetention > 0 {
		if _, err := s.store.DeleteActivityBefore(ctx, s.wallet, now.Add(-s.cfg.PendingRetention), activity.StatusPending); err != nil {
			s.logger.Warn("Failed to prune pending activity", zap.Error(err))
		}
	}

	local, err := s.store.ListActivity(ctx, s.wallet, 0)
	if err != nil {
		s.logger.Warn("Failed to load local activity", zap.Error(err))
		return nil
	}
	return activity.Prune(local, now, s.cfg.PendingRetention)
}

func valueUSD(snap portfolio.Snapshot, prices pricefeed.Prices) amount.Optional {
	if !prices.NativeUSD.Valid {
		return amount.None
	}
	native := snap.SOLBalance + snap.BittyBalance*prices.TokenPriceNative
	return amount.Some(native * prices.NativeUSD.Value)
}

func countBySource(entries []activity.Entry) map[string]int {
	counts := map[string]int{
		string(activity.SourceOnchain): 0,
		string(activity.SourceLocal):   0,
	}
	for _, e := range entries {
		counts[string(e.Source)]++
	}
	return counts
}

// CheckQuote reconciles a swap of inputSOL against the aggregator's spot
// price. A non-positive quotedOutput asks the aggregator for a quote.
func (s *Service) CheckQuote(ctx context.Context, inputSOL, quotedOutput float64) (*QuoteCheck, error) {
	if s.prices == nil {
		return nil, ErrNoBenchmark
	}
	if inputSOL <= 0 {
		return nil, fmt.Errorf("invalid swap input %v SOL", inputSOL)
	}

	prices, err := s.prices.Prices(ctx, s.cfg.Mint.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBenchmark, err)
	}
	benchmark := quote.Benchmark(inputSOL, prices.TokenPriceNative)
	if !benchmark.Valid {
		return nil, ErrNoBenchmark
	}

	if quotedOutput <= 0 {
		decimals, err := s.mintDecimals(ctx)
		if err != nil {
			return nil, fmt.Errorf("token decimals: %w", err)
		}
		q, err := s.prices.Quote(ctx, s.cfg.Mint.String(), decimals, inputSOL, s.cfg.SlippageBps)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		quotedOutput = q.Output
	}

	insights := quote.Reconcile(quote.Input{
		QuotedOutput:      quotedOutput,
		BenchmarkOutput:   benchmark.Value,
		DexPriceNative:    prices.TokenPriceNative,
		InputAmountNative: inputSOL,
		NativeUSDPrice:    prices.NativeUSD,
	})
	check := &QuoteCheck{
		InputSOL: inputSOL,
		Insights: insights,
		Alert:    insights.Exceeds(s.cfg.QuoteTolerance),
	}

	s.metrics.RecordQuote(insights.PercentDiff.Value, insights.PercentDiff.Valid, check.Alert)
	if check.Alert {
		s.logger.Warn("Quote worse than benchmark",
			zap.Float64("input_sol", inputSOL),
			zap.Float64("quoted", insights.QuotedOutput),
			zap.Float64("benchmark", insights.BenchmarkOutput),
			zap.Float64("percent_diff", insights.PercentDiff.Value))
	}
	s.publish(events.NewQuoteReconciled(inputSOL, insights, check.Alert, s.now()))
	return check, nil
}

// mintDecimals caches the first successful lookup.
func (s *Service) mintDecimals(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokenDecimals != nil {
		return *s.tokenDecimals, nil
	}
	d, err := s.chain.TokenDecimals(ctx, s.cfg.Mint)
	if err != nil {
		return 0, err
	}
	s.tokenDecimals = &d
	return d, nil
}

// RecordPending stores an optimistic local entry for an action the user just
// submitted. signature may be empty when it is not known yet.
func (s *Service) RecordPending(ctx context.Context, label, detail, signature string) (activity.Entry, error) {
	if label == "" {
		label = activity.DefaultLabel
	}
	e := activity.Entry{
		ID:        "local-" + uuid.NewString(),
		Timestamp: s.now().UTC(),
		Label:     label,
		Detail:    detail,
		Status:    activity.StatusPending,
		Source:    activity.SourceLocal,
		Signature: signature,
	}
	if signature != "" {
		e.Link = s.cfg.ExplorerURL + signature
	}
	if err := s.store.SaveActivity(ctx, s.wallet, e); err != nil {
		return activity.Entry{}, fmt.Errorf("record pending: %w", err)
	}

	s.logger.Info("Recorded pending activity", zap.String("id", e.ID), zap.String("label", label))
	s.publish(events.NewActivityRecorded(s.wallet, e, s.now()))
	return e, nil
}

// MarkFailed flags a local entry as failed with reason as its detail.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) error {
	if err := s.store.UpdateActivityStatus(ctx, s.wallet, id, activity.StatusError, reason); err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	s.logger.Info("Marked activity failed", zap.String("id", id), zap.String("reason", reason))
	s.publish(events.NewActivityRecorded(s.wallet, activity.Entry{
		ID:     id,
		Detail: reason,
		Status: activity.StatusError,
		Source: activity.SourceLocal,
	}, s.now()))
	return nil
}

func (s *Service) publish(e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.logger.Debug("Event dropped", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}
