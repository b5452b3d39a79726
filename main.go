// Package main runs the telemetry search service: the query API, saved
// searches, the live websocket channel and notifications.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telemetry_search/auth"
	"telemetry_search/config"
	"telemetry_search/events"
	"telemetry_search/handlers"
	"telemetry_search/metrics"
	"telemetry_search/notifiers"
	"telemetry_search/notifiers/gotify"
	"telemetry_search/savedsearch"
	"telemetry_search/server"
	"telemetry_search/websocket"
)

func main() {
	configPath := flag.String("config", "search.json", "Path to the configuration file")
	testNotification := flag.Bool("test-notification", false, "Send a test Gotify notification and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *testNotification {
		n := gotify.New(cfg.Gotify)
		if n == nil {
			log.Fatal("Gotify is not configured")
		}
		if err := n.SendTest(); err != nil {
			log.Fatalf("Test notification failed: %v", err)
		}
		fmt.Println("Test notification sent")
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads path, falling back to the defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Printf("No configuration at %s, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

// run wires the service together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	// Event handlers run asynchronously
	bus := events.NewBus(true)

	store, err := savedsearch.Open(cfg.Store, bus)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, sub := range metrics.Subscribe(bus) {
		defer sub.Unsubscribe()
	}

	notifierManager := notifiers.NewManager(bus)
	defer notifierManager.Close()
	if n := gotify.New(cfg.Gotify); n != nil {
		notifierManager.Register(n)
		log.Printf("Gotify notifications enabled")
	}

	hub := websocket.NewHub(bus, cfg.Search.GetMaxQueryLength())
	hub.Start()
	defer hub.Stop()

	var provider *auth.Provider
	if cfg.IsOIDCEnabled() {
		provider, err = auth.NewProvider(ctx, cfg.OIDC, cfg.Local)
		if err != nil {
			return fmt.Errorf("failed to initialize authentication: %w", err)
		}
		defer provider.Close()
		log.Printf("OIDC authentication enabled for %s", cfg.OIDC.ServiceURL)
	} else {
		log.Printf("Authentication disabled; every caller can edit saved searches")
	}

	docsFS, err := getDocsFS()
	if err != nil {
		return fmt.Errorf("failed to open embedded docs: %w", err)
	}

	srv := server.New(&server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.GetPort()),
		DocsFS:          docsFS,
		AuthProvider:    provider,
		WebSocketHub:    hub,
		Searches:        handlers.NewSearchesHandler(store),
		ShutdownTimeout: server.DefaultShutdownTimeout,
	})
	return srv.Serve(ctx)
}
