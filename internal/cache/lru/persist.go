package lru

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// persistLoop flushes the cache to disk every persistInterval. The wait is
// cancellable so shutdown wakes it immediately instead of waiting out the
// tick.
func (c *Cache) persistLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.Len() == 0 {
				continue
			}
			if err := c.PersistAll(context.Background()); err != nil {
				c.logger.Warn("periodic persist failed", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Shutdown stops the flush loop and performs one final flush. The wait for
// the loop is bounded; on timeout the flush still proceeds from the
// calling goroutine so teardown never hangs.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.shutdownTimeout):
		c.logger.Warn("persist loop did not stop before timeout, flushing anyway",
			zap.Duration("timeout", c.shutdownTimeout))
	}

	return c.PersistAll(ctx)
}
