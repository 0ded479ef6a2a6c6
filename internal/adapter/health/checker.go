// Package health runs the periodic backend probe loop.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/ollagate/ollagate/internal/adapter/registry"
	"github.com/ollagate/ollagate/internal/logger"
)

// Checker re-probes every credential on a fixed interval so quarantined
// backends recover without operator action. An interval of zero disables
// the loop entirely.
type Checker struct {
	keys     *registry.KeyRegistry
	logger   *logger.StyledLogger
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewChecker(keys *registry.KeyRegistry, interval time.Duration, styledLogger *logger.StyledLogger) *Checker {
	return &Checker{
		keys:     keys,
		logger:   styledLogger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (c *Checker) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Info("Health checks disabled")
		return
	}

	c.logger.Info("Health checker started", "interval", c.interval.String())
	c.wg.Add(1)
	go c.run(ctx)
}

func (c *Checker) run(ctx context.Context) {
	defer c.wg.Done()

	// first sweep right away so startup does not wait a full interval
	c.keys.CheckAllHealth(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.keys.CheckAllHealth(ctx)
		}
	}
}

func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}
