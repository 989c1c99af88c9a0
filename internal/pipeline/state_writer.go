package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

// StateMirror is the live-state slice of the Redis store.
type StateMirror interface {
	PipelineStateUpdate(ctx context.Context, s *domain.TelemetrySample) error
}

// StateWriter drains the state channel into the Redis mirror. Failures are
// logged and skipped; the mirror is best-effort by design.
type StateWriter struct {
	ch    <-chan *domain.TelemetrySample
	redis StateMirror
	log   *zap.Logger
}

func NewStateWriter(ch <-chan *domain.TelemetrySample, redis StateMirror, log *zap.Logger) *StateWriter {
	return &StateWriter{ch: ch, redis: redis, log: log}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]*domain.TelemetrySample, 0, 100)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				w.flushBatch(ctx, batch)
				return
			}
			batch = append(batch, s)
			if len(batch) >= 100 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(context.WithoutCancel(ctx), batch)
			return
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []*domain.TelemetrySample) {
	for _, s := range batch {
		if err := w.redis.PipelineStateUpdate(ctx, s); err != nil {
			w.log.Warn("redis state update failed",
				zap.String("vehicle_id", s.VehicleID), zap.Error(err))
		}
	}
}
