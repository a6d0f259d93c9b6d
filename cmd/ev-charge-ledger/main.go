package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ghodgson/ev-charge-ledger/internal/api"
	"github.com/ghodgson/ev-charge-ledger/internal/config"
	"github.com/ghodgson/ev-charge-ledger/internal/evcc"
	"github.com/ghodgson/ev-charge-ledger/internal/maintenance"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/pipeline"
	"github.com/ghodgson/ev-charge-ledger/internal/providers"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("ev-charge-ledger")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "ev-charge-ledger.db", "Database file path")
		configPath  = fs.StringLong("config", "", "YAML config file path (optional)")
		emailDir    = fs.StringLong("email-dir", "", "Directory of saved .eml files (overrides config)")
		pdfDir      = fs.StringLong("pdf-dir", "", "Directory of standalone PDF receipts (overrides config)")
		evccURL     = fs.StringLong("evcc-url", "", "evcc API base URL (overrides config)")
		evccEnabled = fs.BoolLong("evcc-enabled", "Enable home charging session import from evcc")
		homeRate    = fs.Float64Long("home-rate", 0, "Home electricity rate per kWh (overrides config)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		fixDates    = fs.BoolLong("fix-dates", "Re-resolve receipts whose session date defaulted to the ingestion date, then exit")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EV_CHARGE_LEDGER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override file values when set.
	if *emailDir != "" {
		cfg.EmailDir = *emailDir
	}
	if *pdfDir != "" {
		cfg.PDFDir = *pdfDir
	}
	if *evccURL != "" {
		cfg.EVCCURL = *evccURL
	}
	if *evccEnabled {
		cfg.EVCCEnabled = true
	}
	if *homeRate > 0 {
		cfg.HomeElectricityRate = *homeRate
	}

	slog.Info("Initializing database...")
	store, err := receipt.NewStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *fixDates {
		result := maintenance.CorrectDefaultedDates(store)
		slog.Info("Date correction complete",
			"examined", result.Examined,
			"corrected", result.Corrected,
			"errors", len(result.Errors))
		for _, msg := range result.Errors {
			slog.Error("Date correction error", "detail", msg)
		}
		return
	}

	extractor := normalize.FitzExtractor{}
	var fetcher pipeline.SessionFetcher
	if cfg.EVCCEnabled {
		slog.Info("Home charging import enabled", "url", cfg.EVCCURL)
		fetcher = evcc.NewClient(cfg.EVCCURL)
	}

	p := pipeline.New(pipeline.Config{
		Store:        store,
		Normalizer:   normalize.NewNormalizer(extractor),
		Registry:     providers.NewRegistry(cfg.DefaultCurrency, extractor),
		Source:       pipeline.NewDirSource(cfg.EmailDir, cfg.PDFDir),
		EVCC:         fetcher,
		Adapter:      evcc.NewAdapter(cfg.HomeElectricityRate, cfg.DefaultCurrency),
		MinimumCost:  cfg.MinimumCostThreshold,
		LookbackDays: cfg.LookbackDays,
	})

	basicAuth := api.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := api.NewServer(p, store, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
