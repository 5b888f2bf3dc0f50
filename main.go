package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"fundaswipe/api"
	"fundaswipe/config"
	"fundaswipe/familysync"
	"fundaswipe/httputil"
	"fundaswipe/logging"
	"fundaswipe/models"
	"fundaswipe/scheduler"
	"fundaswipe/scraper"
	"fundaswipe/services"
	"fundaswipe/storage"
)

var (
	searchNow = flag.Bool("search", false, "Run the configured search once and exit")
	addr      = flag.String("addr", ":8080", "HTTP listen address")
	joinCode  = flag.String("join", "", "Join a family group and follow matches from the terminal")
	name      = flag.String("name", "", "Display name for -join")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting fundaswipe...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded %d relays", len(cfg.Relays))
	for _, relay := range cfg.Relays {
		log.Printf("  - %s (%s)", relay.Name, relay.URL)
	}

	ctx := context.Background()

	cache, err := storage.NewPageCacheStore(cfg.CachePath)
	if err != nil {
		log.Fatalf("Failed to open page cache: %v", err)
	}
	defer cache.Close()
	if pruned, err := cache.Prune(24 * time.Hour); err != nil {
		log.Printf("Warning: cache prune failed: %v", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d stale cache entries", pruned)
	}
	log.Printf("Page cache: %s", cfg.CachePath)

	fetcher := httputil.NewFetchClient(cfg.Fetch, cfg.Relays, cache)
	if cfg.Fetch.BrowserFallback {
		browser := httputil.NewBrowserFetcher()
		defer browser.Close()
		fetcher.SetFallback(browser)
		log.Println("Browser fallback enabled")
	}

	registry := services.NewRegistryClient(cfg.Registry)
	enricher := services.NewEnricher(fetcher, registry)
	orchestrator := scraper.NewOrchestrator(fetcher, enricher)

	if *searchNow {
		params := models.SearchParams{
			Area:     cfg.Search.Area,
			DaysOld:  cfg.Search.DaysOld,
			MaxPages: cfg.Search.MaxPages,
		}
		listings, run, err := orchestrator.Search(ctx, params)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		log.Printf("Search %s: %d listings via %s", run.ID, len(listings), run.Strategy)
		for _, l := range listings {
			price := "n/a"
			if l.Price != nil {
				price = "€" + formatInt(*l.Price)
			}
			log.Printf("  - %s (%s) %s", l.Address, l.Neighborhood, price)
		}
		return
	}

	roster := newRosterStore(ctx, cfg)

	if *joinCode != "" {
		runFollower(ctx, roster, cfg, *joinCode, *name)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, orchestrator, func(listings []models.Listing, run *models.SearchRun) {
		log.Printf("Scheduled search %s: %d listings via %s", run.ID, len(listings), run.Strategy)
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := &http.Server{Addr: *addr, Handler: api.NewServer(orchestrator, roster).Handler()}
	go func() {
		log.Printf("HTTP API listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}
	log.Println("Goodbye!")
}

// newRosterStore picks the roster backend: Postgres when a connection
// string is configured, Firebase when a database URL is, otherwise an
// in-process store.
func newRosterStore(ctx context.Context, cfg *config.Config) familysync.RosterStore {
	if cfg.Sync.PostgresURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.Sync.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Println("Roster store: postgres")
		return store
	}
	if cfg.Sync.FirebaseURL != "" {
		log.Printf("Roster store: firebase (%s)", cfg.Sync.FirebaseURL)
		return storage.NewFirebaseStore(cfg.Sync)
	}
	log.Println("Roster store: in-memory (favorites are not shared across processes)")
	return storage.NewMemoryStore()
}

// runFollower joins a group from the terminal and prints the match
// list every time the shared roster changes.
func runFollower(ctx context.Context, roster familysync.RosterStore, cfg *config.Config, code, displayName string) {
	if displayName == "" {
		log.Fatal("-join requires -name")
	}

	source := familysync.NewPollingSource(roster, cfg.Sync.PollInterval)
	engine := familysync.NewEngine(roster, source)
	engine.OnUpdate(func(update familysync.Update) {
		log.Printf("Roster: %d members, %d matches", len(update.Members), len(update.Matches))
		ids := make([]string, 0, len(update.Matches))
		for id := range update.Matches {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			log.Printf("  match %s: %v", id, update.Matches[id])
		}
	})

	if err := engine.JoinGroup(ctx, code, displayName, nil); err != nil {
		log.Fatalf("Failed to join group %s: %v", code, err)
	}
	log.Printf("Joined group %s as %s. Press Ctrl+C to stop.", code, displayName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	source.Stop()
}

// formatInt renders n with dots as thousand separators, the way the
// portal prints prices.
func formatInt(n int) string {
	s := []byte{}
	digits := 0
	for n > 0 || digits == 0 {
		if digits > 0 && digits%3 == 0 {
			s = append([]byte{'.'}, s...)
		}
		s = append([]byte{byte('0' + n%10)}, s...)
		n /= 10
		digits++
	}
	return string(s)
}
