package familysync

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"fundaswipe/models"
)

// PollingSource watches a roster by polling the store at a fixed
// interval and invoking the callback whenever the snapshot differs
// from the previous one. The first successful poll always fires.
type PollingSource struct {
	store    RosterStore
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPollingSource(store RosterStore, interval time.Duration) *PollingSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollingSource{store: store, interval: interval}
}

func (p *PollingSource) Start(ctx context.Context, code string, onChange func(*models.FamilyGroup)) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.poll(ctx, code, onChange)
}

func (p *PollingSource) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *PollingSource) poll(ctx context.Context, code string, onChange func(*models.FamilyGroup)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastSnapshot string
	check := func() {
		group, err := p.store.GetGroup(ctx, code)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Warning: roster poll failed for %s: %v", code, err)
			}
			return
		}
		if group == nil {
			return
		}

		snapshot, err := json.Marshal(group)
		if err != nil {
			return
		}
		if string(snapshot) == lastSnapshot {
			return
		}
		lastSnapshot = string(snapshot)
		onChange(group)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
