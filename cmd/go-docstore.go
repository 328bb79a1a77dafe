package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/adfharrison1/go-docstore/pkg/config"
	"github.com/adfharrison1/go-docstore/pkg/server"
	"github.com/adfharrison1/go-docstore/pkg/storage"
)

var errHelp = errors.New("help requested")

func usage(out io.Writer, flagSet *flag.FlagSet) {
	fmt.Fprintf(out, "Usage: go-docstore [options]\n")
	fmt.Fprintf(out, "\ngo-docstore is an embedded, file-backed document database with an HTTP API.\n\n")
	fmt.Fprintf(out, "Options:\n")
	fmt.Fprint(out, flagSet.FlagUsages())
	fmt.Fprintf(out, "\nExamples:\n")
	fmt.Fprintf(out, "  go-docstore                                   # Start with defaults\n")
	fmt.Fprintf(out, "  go-docstore --config docstore.jsonc           # Load settings from a JSONC file\n")
	fmt.Fprintf(out, "  go-docstore -p 9090 --data-dir /tmp/docstore  # Custom port and data directory\n")
	fmt.Fprintf(out, "  go-docstore --format binary --backend bolt    # Compressed snapshots in one bolt file\n")
	fmt.Fprintf(out, "\nFlags given on the command line override values from the config file.\n")
}

// loadConfig parses args, loads the config file they name and applies
// explicitly set flags on top
func loadConfig(args []string, out io.Writer) (config.Config, error) {
	flagSet := flag.NewFlagSet("go-docstore", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard) // We handle errors ourselves

	configPath := flagSet.StringP("config", "c", "", "Path to a JSONC config file")
	port := flagSet.StringP("port", "p", "", "Server port [default: 8080]")
	dataDir := flagSet.StringP("data-dir", "d", "", "Data directory for storage [default: ./data]")
	format := flagSet.String("format", "", "Snapshot format: json|binary [default: json]")
	backend := flagSet.String("backend", "", "Snapshot backend: file|bolt [default: file]")
	atomicWrites := flagSet.Bool("atomic-writes", false, "Write snapshot files through a temp file and rename")
	eventBuffer := flagSet.Int("event-buffer", 0, "Buffer size for change event subscribers [default: 64]")
	matcherCache := flagSet.Int("matcher-cache", 0, "Compiled queries kept in the LRU cache, 0 disables [default: 128]")
	showHelp := flagSet.BoolP("help", "h", false, "Show help message")

	if err := flagSet.Parse(args); err != nil {
		return config.Config{}, err
	}
	if *showHelp {
		usage(out, flagSet)
		return config.Config{}, errHelp
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}

	if flagSet.Changed("port") {
		cfg.Port = *port
	}
	if flagSet.Changed("data-dir") {
		cfg.DataDir = *dataDir
	}
	if flagSet.Changed("format") {
		cfg.Format = storage.Format(*format)
	}
	if flagSet.Changed("backend") {
		cfg.Backend = storage.BackendKind(*backend)
	}
	if flagSet.Changed("atomic-writes") {
		cfg.AtomicWrites = *atomicWrites
	}
	if flagSet.Changed("event-buffer") {
		cfg.EventBuffer = *eventBuffer
	}
	if flagSet.Changed("matcher-cache") {
		cfg.MatcherCache = *matcherCache
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stdout)
	if errors.Is(err, errHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	log.Printf("INFO: Using data directory: %s (%s backend, %s format)", cfg.DataDir, cfg.Backend, cfg.Format)
	if cfg.AtomicWrites {
		log.Printf("INFO: Atomic snapshot writes enabled")
	}

	// Create a new server with storage options
	srv := server.NewServer(cfg.StorageOptions()...)
	if err := srv.Start(); err != nil {
		log.Fatalf("ERROR: Could not start: %v", err)
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting go-docstore server on :%s", cfg.Port)
		log.Printf("API endpoints available at http://localhost:%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	// Drain pending snapshot writes before exiting
	if err := srv.Stop(); err != nil {
		log.Printf("ERROR: Some writes were not persisted: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited")
}
