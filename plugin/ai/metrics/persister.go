package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finpilot/advisor/store"
)

// Persister periodically flushes completed hourly generation snapshots
// to the database and prunes old rows.
type Persister struct {
	store     *store.Store
	collector *Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushInterval   time.Duration
	retentionPeriod time.Duration
	cleanupInterval time.Duration
}

// PersisterConfig configures the metrics persister.
type PersisterConfig struct {
	FlushInterval   time.Duration // How often to flush metrics to DB (default: 1 hour)
	RetentionPeriod time.Duration // How long to keep metrics (default: 30 days)
	CleanupInterval time.Duration // How often to run cleanup (default: 24 hours)
}

// NewPersister creates a metrics persister.
func NewPersister(s *store.Store, collector *Collector, cfg PersisterConfig) *Persister {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = 30 * 24 * time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Persister{
		store:           s,
		collector:       collector,
		ctx:             ctx,
		cancel:          cancel,
		flushInterval:   cfg.FlushInterval,
		retentionPeriod: cfg.RetentionPeriod,
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Start begins the background flush and cleanup tasks.
func (p *Persister) Start() {
	p.wg.Add(2)
	go p.flushLoop()
	go p.cleanupLoop()
}

// Close flushes one last time, stops the loops and waits for them.
func (p *Persister) Close() {
	if err := p.Flush(context.Background()); err != nil {
		slog.Error("final metrics flush failed", "error", err)
	}
	p.cancel()
	p.wg.Wait()
}

// Flush persists all completed hour buckets.
func (p *Persister) Flush(ctx context.Context) error {
	currentHour := time.Now().Truncate(time.Hour)

	for _, snapshot := range p.collector.DrainCompletedSnapshots(currentHour) {
		if _, err := p.store.UpsertMetricSnapshot(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

func (p *Persister) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.Flush(p.ctx); err != nil {
				slog.Error("metrics flush failed", "error", err)
			}
		}
	}
}

func (p *Persister) cleanupLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.retentionPeriod)
			err := p.store.DeleteMetricSnapshots(p.ctx, &store.DeleteMetricSnapshot{BeforeTime: &cutoff})
			if err != nil {
				slog.Error("metrics cleanup failed", "error", err)
			}
		}
	}
}
