package refdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Provider holds the current reference table snapshot and refreshes it from a
// Source. Chart requests read whatever snapshot is loaded; a failed refresh
// keeps the previous snapshot in place.
type Provider struct {
	source Source
	logger *zap.Logger

	mu     sync.RWMutex
	table  Table
	loaded bool
}

// NewProvider creates a Provider around source. logger may not be nil.
func NewProvider(source Source, logger *zap.Logger) *Provider {
	return &Provider{source: source, logger: logger}
}

// Current returns the loaded snapshot and whether one has ever loaded.
// When false, cleaning proceeds with an empty reference and states fall back
// to their repair rules.
func (p *Provider) Current() (Table, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table, p.loaded
}

// Refresh fetches a new snapshot and swaps it in. On failure the previous
// snapshot stays current.
func (p *Provider) Refresh(ctx context.Context) error {
	table, err := p.source.FetchCityReference(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	changed := !p.loaded || table.Digest != p.table.Digest
	p.table = table
	p.loaded = true
	p.mu.Unlock()

	if changed {
		p.logger.Info("city reference loaded",
			zap.Int("cities", len(table.Cities)),
			zap.String("digest", table.Digest[:12]))
	}
	return nil
}

// RefreshPeriodic refreshes on a fixed interval until ctx is cancelled.
// Failures are logged and retried at the next tick.
func (p *Provider) RefreshPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn("city reference refresh failed", zap.Error(err))
			}
		}
	}
}
