package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"fundaswipe/config"
	"fundaswipe/models"
	"fundaswipe/scraper"
)

// ResultSink receives the listings from a scheduled search refresh.
type ResultSink func(listings []models.Listing, run *models.SearchRun)

// Scheduler refreshes the configured search on a cron expression or a
// fixed interval.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	sink         ResultSink
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, sink ResultSink) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		sink:         sink,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" || s.cfg.Scheduler.Interval > 0 {
		// warm start: new-today results are available before the first tick
		go s.refresh(ctx)
	}

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.refresh(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.refresh(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	log.Println("No schedule configured, searches run on demand only")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs the configured search immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.refresh(ctx)
}

func (s *Scheduler) refresh(ctx context.Context) {
	params := models.SearchParams{
		Area:     s.cfg.Search.Area,
		DaysOld:  s.cfg.Search.DaysOld,
		MaxPages: s.cfg.Search.MaxPages,
	}

	listings, run, err := s.orchestrator.Search(ctx, params)
	if err != nil {
		log.Printf("Scheduled search error: %v", err)
		return
	}

	log.Printf("Scheduled search: %d listings via %s (%d before dedup)",
		len(listings), run.Strategy, run.ListingsFound)

	if s.sink != nil {
		s.sink(listings, run)
	}
}
