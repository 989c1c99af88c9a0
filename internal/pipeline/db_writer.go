package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// SampleStore is the raw-telemetry append slice of the persistent store.
type SampleStore interface {
	BatchInsert(ctx context.Context, samples []*domain.TelemetrySample) error
}

// DBWriter drains the db channel into batched store appends: flush on batch
// size or on the ticker, whichever comes first.
type DBWriter struct {
	ch        <-chan *domain.TelemetrySample
	db        SampleStore
	batchSize int
	flushMS   int
	log       *zap.Logger
}

func NewDBWriter(ch <-chan *domain.TelemetrySample, db SampleStore, batchSize, flushMS int, log *zap.Logger) *DBWriter {
	return &DBWriter{ch: ch, db: db, batchSize: batchSize, flushMS: flushMS, log: log}
}

func (w *DBWriter) Run(ctx context.Context) {
	batch := make([]*domain.TelemetrySample, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(ctx, batch)
				}
				return
			}
			batch = append(batch, s)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.WithoutCancel(ctx), batch)
			}
			return
		}
	}
}

func (w *DBWriter) flush(ctx context.Context, batch []*domain.TelemetrySample) {
	err := w.db.BatchInsert(ctx, batch)
	if err != nil {
		w.log.Warn("db write failed, retrying once",
			zap.Int("batch", len(batch)), zap.Error(err))
		time.Sleep(500 * time.Millisecond)
		if err = w.db.BatchInsert(ctx, batch); err != nil {
			w.log.Error("db write permanently failed",
				zap.Int("batch", len(batch)), zap.Error(err))
			metrics.DBWriteFailures.Add(int64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.Add(int64(len(batch)))
}
