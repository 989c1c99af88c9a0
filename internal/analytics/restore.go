package analytics

import (
	"context"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

// LatestStore is the slice of the persistent store the restorer needs: the
// single most recent sample per distinct vehicle.
type LatestStore interface {
	LatestSamples(ctx context.Context) ([]domain.TelemetrySample, error)
}

// Restorer rebuilds the aggregator from persisted telemetry at startup. It
// runs once, single-threaded, before any live ingestion begins.
type Restorer struct {
	store LatestStore
	agg   *Aggregator
	log   *zap.Logger
}

func NewRestorer(store LatestStore, agg *Aggregator, log *zap.Logger) *Restorer {
	return &Restorer{store: store, agg: agg, log: log}
}

// Restore seeds one vehicle per latest persisted sample. Failures are
// non-fatal: the process continues with an empty aggregator and rebuilds
// state from live traffic.
func (r *Restorer) Restore(ctx context.Context) {
	latest, err := r.store.LatestSamples(ctx)
	if err != nil {
		r.log.Error("state restore failed, starting with empty metrics", zap.Error(err))
		return
	}
	if len(latest) == 0 {
		r.log.Warn("no persisted telemetry found, waiting for live samples")
		return
	}

	for i := range latest {
		r.agg.Seed(&latest[i])
	}
	r.log.Info("restored vehicle state from store",
		zap.Int("vehicles", r.agg.TrackedVehicleCount()))
}
