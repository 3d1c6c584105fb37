package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/app"
	"github.com/rovshanmuradov/solana-portfolio/internal/config"
	"github.com/rovshanmuradov/solana-portfolio/internal/export"
	"github.com/rovshanmuradov/solana-portfolio/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	exportFormat := flag.String("export", "", "export the activity feed as csv or json")
	exportDir := flag.String("export-dir", "exports", "directory for exported files")
	quoteArg := flag.String("quote", "", "check a swap quote: SOL or SOL:OUT")
	watch := flag.Duration("watch", 0, "refresh interval; zero refreshes once")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address")
	symbol := flag.String("symbol", "BITTY", "display symbol of the tracked token")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	opts := app.Options{
		TokenSymbol: *symbol,
		ExportDir:   *exportDir,
		Watch:       *watch,
		MetricsAddr: *metricsAddr,
	}
	switch export.Format(*exportFormat) {
	case "":
	case export.FormatCSV, export.FormatJSON:
		opts.Export = export.Format(*exportFormat)
	default:
		log.Fatal("Unsupported export format", zap.String("format", *exportFormat))
	}
	if opts.Quote, err = app.ParseQuote(*quoteArg); err != nil {
		log.Fatal("Invalid -quote", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner(cfg, log, os.Stdout)
	if err := runner.Initialize(); err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		os.Exit(1)
	}

	start := time.Now()
	if err := runner.Run(ctx, opts); err != nil {
		log.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
	log.Debug("Done", zap.Duration("elapsed", time.Since(start)))
}
