/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the project ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration, apply flag overrides
  2. Build the field codec from LEDGER_KEY (or an ephemeral dev key)
  3. Initialize SQLite store
  4. Wire tracker, requirement service, and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and persistent key
  LEDGER_KEY=$(openssl rand -hex 32) ./server -db="./data/ledger.db"

  # Run with in-memory database (dev)
  ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumencrm/ledger-engine/api"
	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/config"
	"github.com/lumencrm/ledger-engine/ledger"
	"github.com/lumencrm/ledger-engine/store/sqlite"
	"github.com/lumencrm/ledger-engine/worktime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flag overrides
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Field codec
	var c *codec.Codec
	if cfg.LedgerKey != "" {
		c, err = codec.NewFromHex(cfg.LedgerKey)
		if err != nil {
			log.Fatalf("Invalid LEDGER_KEY: %v", err)
		}
	} else {
		log.Println("WARNING: LEDGER_KEY not set, using an ephemeral key; encrypted amounts will not survive a restart")
		c = codec.NewRandom()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath, c)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services and handler
	tracker := worktime.NewTracker(store)
	requirements := ledger.NewRequirementService(store, c)

	handler := api.NewHandler(tracker, store, store, requirements)
	handler.Loc = loc

	router := api.NewRouter(handler, cfg.Origins())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, *port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
