// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-portfolio/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-portfolio/internal/config"
	"github.com/rovshanmuradov/solana-portfolio/internal/events"
	"github.com/rovshanmuradov/solana-portfolio/internal/export"
	"github.com/rovshanmuradov/solana-portfolio/internal/metrics"
	"github.com/rovshanmuradov/solana-portfolio/internal/pricefeed"
	"github.com/rovshanmuradov/solana-portfolio/internal/report"
	"github.com/rovshanmuradov/solana-portfolio/internal/storage/gormstore"
	"github.com/rovshanmuradov/solana-portfolio/internal/tracker"
)

// Options are the command line choices for one run.
type Options struct {
	TokenSymbol string
	Export      export.Format
	ExportDir   string
	Quote       *QuoteRequest
	Watch       time.Duration // zero runs once
	MetricsAddr string
}

// QuoteRequest is a swap of InputSOL, optionally with a known output.
type QuoteRequest struct {
	InputSOL     float64
	QuotedOutput float64
}

// ParseQuote parses "SOL" or "SOL:OUT".
func ParseQuote(s string) (*QuoteRequest, error) {
	if s == "" {
		return nil, nil
	}
	in, out, hasOut := strings.Cut(s, ":")
	inputSOL, err := strconv.ParseFloat(strings.TrimSpace(in), 64)
	if err != nil || inputSOL <= 0 {
		return nil, fmt.Errorf("invalid quote input %q", in)
	}
	req := &QuoteRequest{InputSOL: inputSOL}
	if hasOut {
		req.QuotedOutput, err = strconv.ParseFloat(strings.TrimSpace(out), 64)
		if err != nil || req.QuotedOutput <= 0 {
			return nil, fmt.Errorf("invalid quoted output %q", out)
		}
	}
	return req, nil
}

// Runner wires the tracker to its collaborators.
type Runner struct {
	logger   *zap.Logger
	cfg      *config.Config
	out      io.Writer
	registry *prometheus.Registry
	store    *gormstore.Store
	bus      *events.Bus
	service  *tracker.Service
	exporter *export.ActivityExporter
	shutdown *ShutdownHandler
}

func NewRunner(cfg *config.Config, logger *zap.Logger, out io.Writer) *Runner {
	return &Runner{
		logger:   logger,
		cfg:      cfg,
		out:      out,
		registry: prometheus.NewRegistry(),
		exporter: export.NewActivityExporter(logger),
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}
}

// Initialize opens storage and builds the network clients. On failure the
// resources opened so far are released.
func (r *Runner) Initialize() (err error) {
	defer func() {
		if err != nil {
			_ = r.shutdown.Shutdown()
		}
	}()

	owner, err := solana.PublicKeyFromBase58(r.cfg.Wallet)
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(r.cfg.BittyMint)
	if err != nil {
		return fmt.Errorf("bitty_mint: %w", err)
	}

	collector, err := metrics.NewCollector(r.registry)
	if err != nil {
		return err
	}

	pool, err := rpc.NewClient(r.cfg.RPCList, r.logger,
		rpc.WithRetries(r.cfg.Retries),
		rpc.WithObserver(collector))
	if err != nil {
		return fmt.Errorf("rpc pool: %w", err)
	}

	r.store, err = gormstore.Open(gormstore.Config{
		Type:     r.cfg.Database.Type,
		DSN:      r.cfg.Database.DSN,
		LogLevel: r.cfg.Database.LogLevel,
	}, r.logger)
	if err != nil {
		return err
	}
	r.shutdown.Register("storage", r.store)
	if err = r.store.RunMigrations(); err != nil {
		return err
	}

	r.bus = events.NewBus(r.logger, 64)
	r.shutdown.Register("event_bus", CloseFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.bus.Shutdown(ctx)
	}))
	r.subscribe()

	feed := pricefeed.NewClient(pricefeed.Config{
		BaseURL:   r.cfg.PriceAPIURL,
		APIKey:    r.cfg.PriceAPIKey,
		RateLimit: r.cfg.PriceRateLimit,
		Retries:   r.cfg.Retries,
	}, r.logger)

	r.service = tracker.NewService(tracker.Config{
		Owner:            owner,
		Mint:             mint,
		RPCTimeout:       r.cfg.RPCTimeout(),
		HistoryLimit:     r.cfg.HistoryLimit,
		MatchWindow:      r.cfg.MatchWindow(),
		PendingRetention: r.cfg.PendingRetention(),
		QuoteTolerance:   r.cfg.QuoteTolerancePercent,
		SlippageBps:      r.cfg.SlippageBps,
		ExplorerURL:      r.cfg.ExplorerURL,
	}, solbc.NewClient(pool, r.logger), feed, r.store, r.logger,
		tracker.WithBus(r.bus),
		tracker.WithMetrics(collector))

	r.logger.Info("Portfolio tracker initialized",
		zap.String("wallet", owner.String()),
		zap.Strings("rpc", pool.Endpoints()),
		zap.String("database", r.cfg.Database.Type))
	return nil
}

func (r *Runner) subscribe() {
	r.bus.SubscribeFunc(events.NetworkDegraded, func(_ context.Context, e events.Event) error {
		ev, ok := e.(events.NetworkDegradedEvent)
		if !ok {
			return nil
		}
		r.logger.Warn("Network degraded",
			zap.String("alert_id", ev.Alert.ID),
			zap.String("message", ev.Alert.Message),
			zap.Error(ev.Err))
		return nil
	})
	r.bus.SubscribeFunc(events.QuoteReconciled, func(_ context.Context, e events.Event) error {
		ev, ok := e.(events.QuoteReconciledEvent)
		if ok && ev.Alert {
			r.logger.Warn("Quote alert",
				zap.Float64("input_sol", ev.InputSOL),
				zap.Float64("percent_diff", ev.Insights.PercentDiff.Value))
		}
		return nil
	})
}

// Run refreshes once, or repeatedly while watching, until ctx is done.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	defer func() { _ = r.shutdown.Shutdown() }()

	if opts.MetricsAddr != "" {
		r.serveMetrics(opts.MetricsAddr)
	}

	if err := r.refresh(ctx, opts); err != nil {
		return err
	}
	if opts.Quote != nil {
		if err := r.checkQuote(ctx, opts); err != nil {
			return err
		}
	}
	if opts.Watch <= 0 {
		return nil
	}

	ticker := time.NewTicker(opts.Watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping watch")
			return nil
		case <-ticker.C:
		case <-r.service.RetryRequests():
			r.logger.Info("Retry requested")
		}
		if err := r.refresh(ctx, opts); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (r *Runner) refresh(ctx context.Context, opts Options) error {
	ov, err := r.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	symbol := opts.TokenSymbol
	if symbol == "" {
		symbol = "BITTY"
	}
	fmt.Fprint(r.out, report.Overview(ov, symbol, time.Now()))

	if opts.Export != "" {
		path, err := r.exporter.Export(ov.Wallet, ov.Activity, export.Options{
			Format:    opts.Export,
			OutputDir: opts.ExportDir,
		})
		if err != nil {
			r.logger.Warn("Export skipped", zap.Error(err))
		} else {
			fmt.Fprintf(r.out, "Exported activity to %s\n", path)
		}
	}
	return nil
}

func (r *Runner) checkQuote(ctx context.Context, opts Options) error {
	check, err := r.service.CheckQuote(ctx, opts.Quote.InputSOL, opts.Quote.QuotedOutput)
	if err != nil {
		return fmt.Errorf("quote check: %w", err)
	}
	symbol := opts.TokenSymbol
	if symbol == "" {
		symbol = "BITTY"
	}
	fmt.Fprint(r.out, report.Quote(check, symbol))
	return nil
}

func (r *Runner) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.shutdown.Register("metrics", CloseFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}))
	r.logger.Info("Serving metrics", zap.String("addr", addr))
}
