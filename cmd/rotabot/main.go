package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/rotabot/config"
	"github.com/alejandrodnm/rotabot/internal/adapters/binance"
	"github.com/alejandrodnm/rotabot/internal/adapters/notify"
	"github.com/alejandrodnm/rotabot/internal/adapters/paper"
	"github.com/alejandrodnm/rotabot/internal/adapters/storage"
	"github.com/alejandrodnm/rotabot/internal/application/engine/live"
	"github.com/alejandrodnm/rotabot/internal/application/ranker"
	"github.com/alejandrodnm/rotabot/internal/metrics"
	"github.com/alejandrodnm/rotabot/internal/ports"
)

const positionsWindow = 30 * 24 * time.Hour

type options struct {
	configPath string
	once       bool
	paper      bool
	table      bool
	report     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config/config.yaml", "path to config file")
	flag.BoolVar(&opts.once, "once", false, "run one cycle and exit (cron mode)")
	flag.BoolVar(&opts.paper, "paper", false, "simulate the account in memory on live market data")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.BoolVar(&opts.table, "table", false, "print the full order table after each cycle (default: compact 1-line)")
	flag.BoolVar(&opts.report, "report", false, "print recorded cycles and positions and exit")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", opts.configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := run(cfg, opts); err != nil {
		slog.Error("rotabot exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notify.NewConsole(cfg.Trading.BaseAsset, opts.table)
	if opts.report {
		return printReport(ctx, store, notifier, cfg.Storage.ReportCycles)
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	rankCfg, err := rankerConfig(cfg)
	if err != nil {
		return err
	}

	client := binance.NewClient(binance.Config{
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		BaseURL:    cfg.Exchange.BaseURL,
		RatePerSec: cfg.Exchange.RatePerSec,
		Burst:      cfg.Exchange.Burst,
	})

	var ex ports.Exchange = client
	var beforeCycle func(context.Context)
	if opts.paper {
		pex, err := newPaperExchange(client, cfg)
		if err != nil {
			return err
		}
		ex = pex
		beforeCycle = func(ctx context.Context) {
			n, err := pex.Match(ctx)
			if err != nil {
				slog.Warn("paper: matching failed", "err", err)
				return
			}
			if n > 0 {
				slog.Info("paper: resting orders filled", "count", n)
			}
		}
	} else if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		return errors.New("BINANCE_API_KEY and BINANCE_API_SECRET are required outside -paper")
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr)
	}

	eng := live.New(ex, ranker.New(rankCfg, client), store, notifier, engineCfg)

	slog.Info("rotabot starting",
		"config", opts.configPath,
		"base", engineCfg.BaseAsset,
		"interval", cfg.CycleInterval(),
		"paper", opts.paper,
		"once", opts.once,
	)

	if opts.once {
		if beforeCycle != nil {
			beforeCycle(ctx)
		}
		if _, err := eng.RunOnce(ctx); err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}
		return nil
	}

	if err := eng.Run(ctx, cfg.CycleInterval(), beforeCycle); err != nil {
		return err
	}
	slog.Info("rotabot stopped cleanly")
	return nil
}

// newPaperExchange simulates the account on top of live market data.
func newPaperExchange(md ports.MarketData, cfg *config.Config) (*paper.Exchange, error) {
	fee, balances, err := paperBalances(cfg.Paper)
	if err != nil {
		return nil, err
	}
	pex := paper.NewExchange(md, paper.Config{FeeRate: fee})
	for asset, amount := range balances {
		pex.Deposit(asset, amount)
	}
	slog.Info("=== PAPER MODE: simulated account, live market data ===", "balances", cfg.Paper.Balances, "fee_rate", fee)
	return pex, nil
}

func printReport(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console, limit int) error {
	cycles, err := store.RecentCycles(ctx, limit)
	if err != nil {
		return err
	}
	positions, err := store.Positions(ctx, time.Now().Add(-positionsWindow))
	if err != nil {
		return err
	}
	notifier.PrintHistory(cycles)
	notifier.PrintPositions(positions)
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: serving", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics: server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
