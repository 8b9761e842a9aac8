/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the brokerage back-office server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Open the store (SQLite or MySQL) and apply the schema
  3. Wire services, importer, metrics and handlers
  4. Start the HTTP server and the expiry sweeper
  5. Wait for a signal, then shut both down

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -driver  sqlite or mysql
  -dsn     Database path (sqlite) or DSN (mysql)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper
  4. Close database connection

EXAMPLES:
  # Local development
  JWT_SECRET=dev ENABLE_SCENARIOS=true ./server -dsn=":memory:"

  # Production
  ./server -driver=mysql -dsn="broker:pw@tcp(db:3306)/brokerage"

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/warp/brokerdesk/api"
	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/config"
	"github.com/warp/brokerdesk/importer"
	"github.com/warp/brokerdesk/metrics"
	"github.com/warp/brokerdesk/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "Database driver (sqlite|mysql)")
	flag.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "Database path or DSN")
	flag.Parse()

	logger := config.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Initialize store
	store, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		config.LogError(logger, "main", "sqlstore.Open", cfg.DBDriver, err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()
	services := brokerage.NewServices(store, logger, m)
	handler := api.NewHandler(services, importer.New(services.Policies, logger, m), store, logger)
	handler.ExpiryWindowDays = cfg.ExpiryWindowDays

	router := api.NewRouter(handler, api.RouterOptions{
		Auth:            api.NewAuthenticator(cfg.JWTSecret, logger),
		CORSOrigins:     cfg.CORSOrigins,
		EnableScenarios: cfg.EnableScenarios,
		Metrics:         promhttp.Handler(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweeper := api.NewExpirySweeper(services.Policies, logger, m)
	sweeper.CheckInterval = cfg.ExpirySweepInterval
	sweeper.WindowDays = cfg.ExpiryWindowDays

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"driver": store.Dialect().Name(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx)
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		store.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
