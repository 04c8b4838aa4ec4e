// Package pacer inserts the politeness delay between item fetches.
package pacer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer draws a delay uniformly from its window on every call to Pace.
type Pacer struct {
	window  types.DelayWindow
	sleep   Sleeper
	log     logger.Interface
	metrics *metrics.Metrics

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Pacer. A nil sleeper means Sleep.
func New(window types.DelayWindow, sleep Sleeper, log logger.Interface, m *metrics.Metrics) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{
		window:  window,
		sleep:   sleep,
		log:     log,
		metrics: m,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next draws the next delay. It is zero when pacing is disabled.
func (p *Pacer) Next() time.Duration {
	if p.window.Disabled {
		return 0
	}
	span := p.window.Max - p.window.Min
	if span <= 0 {
		return p.window.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window.Min + time.Duration(p.rnd.Int63n(int64(span)+1))
}

// Pace blocks for one drawn delay.
func (p *Pacer) Pace(ctx context.Context) error {
	if p.window.Disabled {
		return nil
	}
	d := p.Next()
	p.log.Debug("MAKE DELAY", zap.Float64("seconds", d.Seconds()))
	p.metrics.AddDelay(d.Seconds())
	return p.sleep(ctx, d)
}
