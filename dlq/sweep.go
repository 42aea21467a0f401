package dlq

import (
	"context"
	"log/slog"
	"time"
)

// Start launches the background sweeper goroutine.
func (q *Queue) Start(_ context.Context) error {
	q.wg.Add(1)
	go q.sweepLoop()
	q.logger.Info("dlq sweeper started",
		slog.Duration("sweep_interval", q.cfg.SweepInterval),
		slog.Int("capacity", q.cfg.Capacity),
	)
	return nil
}

// Stop signals the sweeper to stop and waits for it to finish.
func (q *Queue) Stop(_ context.Context) error {
	close(q.stopCh)
	q.wg.Wait()
	q.logger.Info("dlq sweeper stopped")
	return nil
}

// sweepLoop fires on each sweep interval until stopped.
func (q *Queue) sweepLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.Sweep(context.Background())
		}
	}
}

// Sweep runs one sweeper pass: drop expired messages, then requeue a
// bounded batch of eligible ones in priority order. Overlapping passes
// never run; a pass that finds one already in flight returns
// immediately with zero counts.
func (q *Queue) Sweep(ctx context.Context) (expired, requeued int) {
	if !q.sweeping.CompareAndSwap(false, true) {
		return 0, 0
	}
	defer q.sweeping.Store(false)

	expired = q.PurgeExpired(ctx)

	q.mu.RLock()
	fn := q.requeue
	maxRetries := q.cfg.MaxRetries
	batch := q.cfg.RequeueBatch
	q.mu.RUnlock()
	if fn == nil {
		return expired, 0
	}

	attempts := 0
	for _, msg := range q.Messages(Filter{}) {
		if attempts >= batch {
			break
		}
		if msg.RetryCount >= maxRetries {
			continue
		}
		attempts++
		if err := q.Retry(ctx, msg.ID); err != nil {
			q.logger.Warn("dlq sweep requeue failed",
				slog.String("message_id", msg.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		requeued++
	}

	if expired > 0 || requeued > 0 {
		q.logger.Info("dlq sweep completed",
			slog.Int("expired", expired),
			slog.Int("requeued", requeued),
		)
	}
	return expired, requeued
}
