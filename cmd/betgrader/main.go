package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oddsgrid/betgrader/internal/config"
	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/parlay"
	"github.com/oddsgrid/betgrader/internal/pipeline"
	"github.com/oddsgrid/betgrader/internal/scoring"
	"github.com/oddsgrid/betgrader/internal/selector"
	"github.com/oddsgrid/betgrader/internal/store"
	"github.com/oddsgrid/betgrader/internal/store/postgres"
	"github.com/oddsgrid/betgrader/internal/store/sqlite"
	"github.com/oddsgrid/betgrader/internal/store/supabase"
	"github.com/oddsgrid/betgrader/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	parlayBets = flag.String("parlay", "", "Compute a parlay from comma-separated bet strings and exit")
)

func main() {
	flag.Parse()

	if *parlayBets != "" {
		if err := runParlay(*parlayBets); err != nil {
			log.Fatalf("Parlay calculation failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	lg.Info("Configuration loaded from %s", *configPath)

	st, err := newStore(cfg, lg)
	if err != nil {
		lg.Error("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			lg.Error("Failed to close store: %v", err)
		}
	}()
	lg.Info("Store initialized (backend: %s)", cfg.Store.Backend)

	policy := scoring.TimingLinear
	if cfg.Scoring.TimingPolicy == "stepped" {
		policy = scoring.TimingStepped
	}
	engine := scoring.NewEngine(policy)

	var notifier pipeline.Notifier
	if cfg.Telegram.Enabled {
		tgClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			lg.Error("Failed to initialize Telegram client: %v", err)
			os.Exit(1)
		}
		notifier = tgClient
		lg.Info("Telegram client initialized successfully")
	} else {
		lg.Debug("Telegram notifications disabled")
	}

	mode := selector.ModeRestricted
	if cfg.Pipeline.Mode == "full" {
		mode = selector.ModeFull
	}
	driver := pipeline.New(st, engine, pipeline.Config{
		Mode:             mode,
		StalenessHorizon: cfg.Pipeline.StalenessHorizon,
	}, lg, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		lg.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	if _, err := driver.Run(ctx); err != nil {
		lg.Error("Grading run failed: %v", err)
		os.Exit(1)
	}
}

// newStore constructs the persistence backend selected by configuration.
// Pipeline parameters (page size, chunk size, pause) are shared across
// backends so they stay interchangeable.
func newStore(cfg *config.Config, lg *logger.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSupabase:
		return supabase.New(supabase.Config{
			BaseURL:        cfg.Store.Supabase.URL,
			APIKey:         cfg.Store.Supabase.Key,
			Timeout:        cfg.Store.Supabase.Timeout,
			MaxRetries:     cfg.Store.Supabase.MaxRetries,
			RetryDelayBase: cfg.Store.Supabase.RetryDelayBase,
			PageSize:       cfg.Pipeline.PageSize,
			ChunkSize:      cfg.Pipeline.ChunkSize,
			ChunkPause:     cfg.Pipeline.RateLimitPause,
		}, lg)
	case config.BackendSQLite:
		return sqlite.New(sqlite.Config{
			Path:       cfg.Store.SQLite.Path,
			PageSize:   cfg.Pipeline.PageSize,
			ChunkSize:  cfg.Pipeline.ChunkSize,
			ChunkPause: cfg.Pipeline.RateLimitPause,
		}, lg)
	case config.BackendPostgres:
		return postgres.New(postgres.Config{
			DSN:        cfg.Store.Postgres.DSN,
			PageSize:   cfg.Pipeline.PageSize,
			ChunkSize:  cfg.Pipeline.ChunkSize,
			ChunkPause: cfg.Pipeline.RateLimitPause,
		}, lg)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// runParlay parses comma-separated bet strings, computes the combined
// parlay metrics, and prints them to stdout.
func runParlay(input string) error {
	var legs []parlay.Leg
	var descs []string
	for _, raw := range strings.Split(input, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		leg, desc := parlay.ParseBet(raw)
		legs = append(legs, leg)
		descs = append(descs, desc)
	}
	if len(legs) < 2 {
		return fmt.Errorf("a parlay needs at least 2 legs, got %d", len(legs))
	}

	result, err := parlay.Compute(legs)
	if err != nil {
		return err
	}
	if !result.Viable {
		fmt.Println("Parlay is not viable: true win probability is zero")
		return nil
	}

	fmt.Printf("Parlay (%d legs):\n", len(legs))
	for i, d := range descs {
		fmt.Printf("  %d. %s\n", i+1, d)
	}
	fmt.Printf("Decimal odds:       %.2f\n", result.DecimalOdds)
	fmt.Printf("American odds:      %+d\n", result.AmericanOdds)
	fmt.Printf("Market implied:     %.1f%%\n", result.MarketImpliedProb*100)
	fmt.Printf("True win prob:      %.1f%%\n", result.TrueWinProb*100)
	fmt.Printf("Expected value:     %.2f%%\n", result.EV)
	fmt.Printf("Total edge:         %.2f%%\n", result.TotalEdge)
	fmt.Printf("Kelly fraction:     %.4f\n", result.KellyFraction)
	if result.CorrelatedWarning {
		fmt.Println("Warning: legs appear correlated (shared game or player)")
	}
	return nil
}
