/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the referral & rewards engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Open the backing store (memory, sqlite or postgres)
  3. Build domain services and the API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config file (optional, defaults apply)
  -port    HTTP server port (overrides config when set)
  -db      SQLite database path (overrides config when set)
  -seed    Load the demo dataset on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the notification queue
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with file database
  ./rewards-server -db="./data/rewards.db"

  # Run with a config file and demo data
  ./rewards-server -config=rewards.yaml -seed

SEE ALSO:
  - config/config.go: Config file format and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Backing stores
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glasslink/rewards-engine/api"
	"github.com/glasslink/rewards-engine/config"
	"github.com/glasslink/rewards-engine/rewards"
	memstore "github.com/glasslink/rewards-engine/rewards/store"
	"github.com/glasslink/rewards-engine/store/postgres"
	"github.com/glasslink/rewards-engine/store/sqlite"
)

// engineStore is what every backing store must provide.
type engineStore interface {
	rewards.TxStore
	rewards.JobCounter
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.Bool("seed", false, "load demo data on startup")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Driver = "sqlite"
		cfg.Store.Path = *dbPath
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Notifications go out on a background queue; Close drains it on shutdown.
	notifier := rewards.NewAsyncNotifier(rewards.NewLogNotifier(log), log, 64)
	defer notifier.Close()

	assigner := rewards.NewAssigner(store, store, notifier, log)
	handler := api.NewHandler(
		store,
		rewards.NewCustomers(store),
		rewards.NewCodeRegistry(store, cfg.Referral.CodeLength, cfg.Referral.MaxAttempts),
		rewards.NewReferralService(store, cfg.Referral.ReferrerAward, cfg.Referral.WelcomeBonus),
		rewards.NewLedger(store),
		rewards.NewCatalog(store),
		rewards.NewWorkflow(store, assigner, notifier, discountLogger{log}, cfg.WorkflowPolicy(), log),
	)

	if *seed {
		if err := api.SeedDemo(context.Background(), handler); err != nil {
			log.Fatal("failed to seed demo data", zap.Error(err))
		}
		log.Info("demo data loaded")
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func openStore(cfg *config.Config) (engineStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := postgres.New(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// discountLogger records fulfilled discounts until the repair-job system
// grows a real intake endpoint.
type discountLogger struct {
	log *zap.Logger
}

func (d discountLogger) ApplyDiscount(ctx context.Context, customerID rewards.CustomerID, redemptionID rewards.RedemptionID, rt rewards.RewardType) error {
	d.log.Info("discount ready for next repair",
		zap.String("customer_id", string(customerID)),
		zap.String("redemption_id", string(redemptionID)),
		zap.String("discount_kind", string(rt.DiscountKind)),
		zap.String("discount_value", rt.DiscountValue.String()),
	)
	return nil
}
