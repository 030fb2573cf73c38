package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Purger is anything that can drop its expired entries. Cart stores
// and the flow registry both implement it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// CleanupInterval is how often the sweep runs. Default: 1 minute.
	CleanupInterval time.Duration
}

// CleanupScheduler periodically sweeps expired carts and finished
// confirmation flows so abandoned sessions do not accumulate.
type CleanupScheduler struct {
	targets   map[string]Purger
	config    CleanupConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(config CleanupConfig) *CleanupScheduler {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 1 * time.Minute
	}

	return &CleanupScheduler{
		targets: make(map[string]Purger),
		config:  config,
		stopCh:  make(chan struct{}),
	}
}

// Register adds a named sweep target. Must be called before Start.
func (s *CleanupScheduler) Register(name string, p Purger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[name] = p
}

// Start begins the cleanup scheduler.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.CleanupInterval)
	s.mu.Unlock()

	log.Printf("[CleanupScheduler] Started - Interval: %v, Targets: %d",
		s.config.CleanupInterval, len(s.targets))

	go s.run()
}

// run is the main cleanup loop.
func (s *CleanupScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			log.Printf("[CleanupScheduler] Stopped")
			return
		}
	}
}

// runCleanup sweeps every registered target once.
func (s *CleanupScheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.mu.Lock()
	targets := make(map[string]Purger, len(s.targets))
	for name, p := range s.targets {
		targets[name] = p
	}
	s.mu.Unlock()

	for name, p := range targets {
		removed, err := p.PurgeExpired(ctx)
		if err != nil {
			log.Printf("[CleanupScheduler] Error sweeping %s: %v", name, err)
			continue
		}
		if removed > 0 {
			log.Printf("[CleanupScheduler] Swept %d expired entries from %s", removed, name)
		}
	}
}

// Stop stops the cleanup scheduler.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate sweep of all targets.
func (s *CleanupScheduler) RunNow() {
	s.runCleanup()
}
