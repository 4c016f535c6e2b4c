package tokengate

import (
	"context"
	"log"
	"sync"
	"time"
)

// Janitor runs [Engine.Cleanup] on a fixed interval. It exists because
// terminal refresh records are retained for reuse detection and would
// otherwise accumulate forever.
type Janitor struct {
	engine   *Engine
	interval time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewJanitor creates a Janitor for the engine. A non-positive interval
// falls back to the engine's Cleanup.Interval, then to one hour.
func NewJanitor(engine *Engine, interval time.Duration) *Janitor {
	if interval <= 0 && engine != nil {
		interval = engine.config.Cleanup.Interval
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		engine:   engine,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background loop. The first pass runs after one
// full interval, not immediately.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := j.engine.Cleanup(ctx); err != nil {
					log.Print("tokengate: cleanup pass failed")
				}
			case <-ctx.Done():
				return
			case <-j.done:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight pass to finish.
// Safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
}
