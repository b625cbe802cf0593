// cmd/recollect-mcp is the entry point for the Recollect MCP (Model
// Context Protocol) server: a durable, queryable memory store that AI
// agents talk to over JSON-RPC 2.0.
//
// Startup sequence:
//  1. Load configuration from environment variables (plus an optional
//     YAML config file).
//  2. Connect to Postgres and apply the schema, full-text, and
//     (capability permitting) pgvector migrations.
//  3. Start the expired-entry sweeper as a background goroutine.
//  4. Optionally start the HTTP JSON-RPC listener.
//  5. Serve JSON-RPC 2.0 requests from stdin, writing responses to
//     stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout
// that are not valid JSON-RPC 2.0 response frames will corrupt the
// protocol.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/recollect/internal/api/mcp"
	"github.com/scrypster/recollect/internal/config"
	"github.com/scrypster/recollect/internal/policy"
	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/internal/storage/postgres"
)

func main() {
	// Redirect the default logger to stderr so that any incidental log
	// calls never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("recollect-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := postgres.New(cfg.Storage.DSN, postgres.Options{
		VectorEnabled:   cfg.Storage.VectorEnabled,
		CompressRawText: cfg.Storage.CompressRawText,
		MaxContentChars: cfg.Storage.MaxContentChars,
		MaxRawTextChars: cfg.Storage.MaxRawTextChars,
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	// Root context cancelled on SIGINT / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	go runSweeper(ctx, store, cfg.Sweep.Interval)

	srv := mcp.NewServer(
		store,
		policy.NewEngine(cfg),
		mcp.WithConfig(cfg),
		mcp.WithVectorCapability(store.VectorEnabled()),
	)

	if cfg.Server.Port > 0 {
		go serveHTTP(ctx, srv, cfg)
	}

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	log.Printf("ready — serving JSON-RPC 2.0 on stdin/stdout (vector=%v)", store.VectorEnabled())

	if err := transport.Serve(ctx); err != nil {
		// Normal on context cancellation; fatal stdin problems land
		// here too. Either way the process is done.
		log.Printf("transport stopped: %v", err)
	}
}

// runSweeper purges expired entries on a fixed interval. A sweep that
// overruns its interval never overlaps the next one.
func runSweeper(ctx context.Context, store storage.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	inFlight := false
	done := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			inFlight = false
		case <-ticker.C:
			if inFlight {
				continue
			}
			inFlight = true
			go func() {
				defer func() { done <- struct{}{} }()
				removed, err := store.CleanupExpiredEntries(ctx)
				if err != nil {
					log.Printf("expired-entry sweep failed: %v", err)
					return
				}
				if removed > 0 {
					log.Printf("swept %d expired entries", removed)
				}
			}()
		}
	}
}

// serveHTTP runs the optional HTTP JSON-RPC listener until ctx is
// cancelled.
func serveHTTP(ctx context.Context, srv *mcp.Server, cfg *config.Config) {
	handler := mcp.NewHTTPHandler(
		srv,
		cfg.Server.APIToken,
		cfg.Server.RatePerSec,
		cfg.Server.RateBurst,
		cfg.Server.MaxBodyBytes,
		log.Default(),
	)

	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
	}()

	log.Printf("http listener on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("http listener stopped: %v", err)
	}
}
