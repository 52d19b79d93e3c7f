/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tardiness discipline engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Load and validate configuration
  3. Initialize SQLite store and seed the rule tables
  4. Wire the pipeline (service + evaluators)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: none, built-in defaults apply)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  DISCIPLINE_CONFIG  config path, used when -config is not set.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and built-in rules
  ./server -db="./data/discipline.db"

  # Run with a config file
  ./server -config="./discipline.yaml"

SEE ALSO:
  - config/config.go: File format and defaults
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

	"github.com/joho/godotenv"

	"github.com/atlashr/discipline-engine/api"
	"github.com/atlashr/discipline-engine/config"
	"github.com/atlashr/discipline-engine/discipline"
	"github.com/atlashr/discipline-engine/metrics"
	"github.com/atlashr/discipline-engine/store/sqlite"
	"github.com/atlashr/discipline-engine/tardiness"
)

func main() {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", os.Getenv("DISCIPLINE_CONFIG"), "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the rule reference tables
	ctx := context.Background()
	if err := store.SeedTardinessRules(ctx, cfg.TardinessRules()); err != nil {
		log.Fatalf("Failed to seed tardiness rules: %v", err)
	}
	if err := store.SeedDisciplinaryRules(ctx, cfg.DisciplinaryRules()); err != nil {
		log.Fatalf("Failed to seed disciplinary rules: %v", err)
	}

	// Wire the pipeline
	evaluator := &discipline.Evaluator{
		Rules:   store,
		Records: store,
		Acts:    store,
	}
	service := &tardiness.Service{
		Accumulations: store,
		Rules:         store,
		Events:        store,
		Discipline:    evaluator,
	}

	handler := api.NewHandler(store, service, metrics.New())
	handler.GraceMinutes = cfg.Attendance.GraceMinutes

	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
