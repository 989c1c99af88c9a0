// Package rollup computes the idempotent daily aggregates from raw telemetry:
// one fleet rollup and one per-(vehicle, status) rollup set per date.
package rollup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// Store is the slice of the persistent store the job reads and writes.
// FleetRollup returns (nil, nil) when no rollup exists for the date.
type Store interface {
	FleetRollup(ctx context.Context, date time.Time) (*domain.DailyFleetRollup, error)
	SaveFleetRollup(ctx context.Context, r *domain.DailyFleetRollup) error
	SaveVehicleRollup(ctx context.Context, r *domain.DailyVehicleRollup) error

	DistinctVehicleCount(ctx context.Context, date time.Time) (int, error)
	AverageSpeedForDate(ctx context.Context, date time.Time) (float64, error)
	AverageSpeedByStatus(ctx context.Context, date time.Time) (map[domain.VehicleStatus]float64, error)
	AverageSpeedByType(ctx context.Context, date time.Time) (map[domain.VehicleType]float64, error)
	VehicleDayGroups(ctx context.Context, date time.Time) ([]domain.VehicleDayGroup, error)

	// SamplesInRange returns samples with from <= timestamp < to, ordered by
	// vehicle id then timestamp.
	SamplesInRange(ctx context.Context, from, to time.Time) ([]domain.TelemetrySample, error)
}

// Job computes daily rollups. Safe to re-run for a date: the existing fleet
// rollup is the idempotence marker and short-circuits the whole call.
type Job struct {
	store      Store
	log        *zap.Logger
	bufferDays int
}

// NewJob builds a rollup job. bufferDays widens the differencing window
// backwards so the first sample on the target date has a previous reading
// to diff against.
func NewJob(store Store, log *zap.Logger, bufferDays int) *Job {
	return &Job{store: store, log: log, bufferDays: bufferDays}
}

// Aggregate computes and persists the rollups for one date. Per-vehicle row
// saves are best-effort (logged, counted, job continues); the fleet rollup
// save is fatal and aborts the call.
func (j *Job) Aggregate(ctx context.Context, date time.Time) error {
	date = domain.Day(date)
	j.log.Info("starting metrics aggregation", zap.Time("date", date))

	existing, err := j.store.FleetRollup(ctx, date)
	if err != nil {
		return fmt.Errorf("rollup idempotence check for %s: %w", date.Format("2006-01-02"), err)
	}
	if existing != nil {
		j.log.Info("rollup already exists, skipping", zap.Time("date", date))
		return nil
	}

	fuelByVehicle, err := j.fuelConsumption(ctx, date)
	if err != nil {
		return fmt.Errorf("fuel consumption for %s: %w", date.Format("2006-01-02"), err)
	}

	groups, err := j.store.VehicleDayGroups(ctx, date)
	if err != nil {
		return fmt.Errorf("vehicle day groups for %s: %w", date.Format("2006-01-02"), err)
	}

	// A vehicle spanning several status groups gets its whole daily fuel
	// figure on the first group only; the rest carry 0 so range sums don't
	// double count.
	assigned := make(map[string]bool, len(groups))
	var rowFailures int
	for _, g := range groups {
		fuel := 0.0
		if !assigned[g.VehicleID] {
			fuel = fuelByVehicle[g.VehicleID]
			assigned[g.VehicleID] = true
		}

		row := &domain.DailyVehicleRollup{
			VehicleID:        g.VehicleID,
			Date:             date,
			VehicleStatus:    g.VehicleStatus,
			VehicleType:      g.VehicleType,
			AverageSpeed:     g.AverageSpeed,
			MaxSpeed:         g.MaxSpeed,
			MinSpeed:         g.MinSpeed,
			AverageFuelLevel: g.AverageFuelLevel,
			MinFuelLevel:     g.MinFuelLevel,
			FuelConsumed:     fuel,
			SampleCount:      g.SampleCount,
		}
		if err := j.store.SaveVehicleRollup(ctx, row); err != nil {
			rowFailures++
			metrics.RollupRowFailures.Add(1)
			j.log.Error("vehicle rollup save failed",
				zap.String("vehicle_id", g.VehicleID),
				zap.String("status", string(g.VehicleStatus)),
				zap.Error(err))
		}
	}

	totalVehicles, err := j.store.DistinctVehicleCount(ctx, date)
	if err != nil {
		return fmt.Errorf("distinct vehicle count for %s: %w", date.Format("2006-01-02"), err)
	}
	avgSpeed, err := j.store.AverageSpeedForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("average speed for %s: %w", date.Format("2006-01-02"), err)
	}
	speedByStatus, err := j.store.AverageSpeedByStatus(ctx, date)
	if err != nil {
		return fmt.Errorf("average speed by status for %s: %w", date.Format("2006-01-02"), err)
	}
	speedByType, err := j.store.AverageSpeedByType(ctx, date)
	if err != nil {
		return fmt.Errorf("average speed by type for %s: %w", date.Format("2006-01-02"), err)
	}

	var totalFuel float64
	for _, v := range fuelByVehicle {
		totalFuel += v
	}

	fleet := &domain.DailyFleetRollup{
		Date:              date,
		TotalVehicles:     totalVehicles,
		FleetAverageSpeed: avgSpeed,
		TotalFuelConsumed: totalFuel,
		SpeedByStatus:     speedByStatus,
		SpeedByType:       speedByType,
	}
	if err := j.store.SaveFleetRollup(ctx, fleet); err != nil {
		return fmt.Errorf("save fleet rollup for %s: %w", date.Format("2006-01-02"), err)
	}

	j.log.Info("completed metrics aggregation",
		zap.Time("date", date),
		zap.Int("vehicles", totalVehicles),
		zap.Int("vehicle_rows", len(groups)),
		zap.Int("row_failures", rowFailures),
		zap.Float64("total_fuel", totalFuel))
	return nil
}

// fuelConsumption derives each vehicle's type-weighted fuel use for the date
// by differencing consecutive time-ordered fuel readings. The window starts
// bufferDays before the date so the first on-date sample has a baseline;
// only drops whose current sample lands on the date are summed, and
// increases (refuels) are discarded.
func (j *Job) fuelConsumption(ctx context.Context, date time.Time) (map[string]float64, error) {
	from := date.AddDate(0, 0, -j.bufferDays)
	to := date.AddDate(0, 0, 1)

	samples, err := j.store.SamplesInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("samples in differencing window: %w", err)
	}

	raw := make(map[string]float64)
	types := make(map[string]domain.VehicleType)
	prev := make(map[string]*float64)
	seen := make(map[string]bool)

	for i := range samples {
		s := &samples[i]
		types[s.VehicleID] = s.VehicleType

		if seen[s.VehicleID] {
			p := prev[s.VehicleID]
			if p != nil && s.FuelLevel != nil {
				if delta := *p - *s.FuelLevel; delta > 0 && domain.SameDay(s.Timestamp, date) {
					raw[s.VehicleID] += delta
				}
			}
		}
		prev[s.VehicleID] = s.FuelLevel
		seen[s.VehicleID] = true
	}

	weighted := make(map[string]float64, len(raw))
	for id, r := range raw {
		weighted[id] = r * domain.FuelMultiplier(types[id])
	}
	return weighted, nil
}
