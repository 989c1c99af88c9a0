package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetwatch/internal/domain"
)

// HistoryStore is the rollup read slice used by the historical query.
type HistoryStore interface {
	FleetRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyFleetRollup, error)
	VehicleRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyVehicleRollup, error)
}

// VehicleFuelTotal is one vehicle's fuel consumption summed over a range of
// daily rollups.
type VehicleFuelTotal struct {
	VehicleID         string             `json:"vehicleId"`
	VehicleType       domain.VehicleType `json:"vehicleType"`
	TotalFuelConsumed float64            `json:"totalFuelConsumed"`
}

// HistoricalMetrics is the precomputed-rollup view over a date range plus
// summary statistics derived from it.
type HistoricalMetrics struct {
	From              time.Time                   `json:"fromDate"`
	To                time.Time                   `json:"toDate"`
	TotalDays         int                         `json:"totalDays"`
	AverageFleetSpeed float64                     `json:"averageFleetSpeed"`
	TotalFuelConsumed float64                     `json:"totalFuelConsumed"`
	TotalDataPoints   int                         `json:"totalDataPoints"`
	DailyFleet        []domain.DailyFleetRollup   `json:"dailyFleetMetrics"`
	DailyVehicles     []domain.DailyVehicleRollup `json:"dailyVehicleMetrics"`
	VehicleFuel       []VehicleFuelTotal          `json:"vehicleFuelConsumption"`
}

// History reads the persisted rollups for [from, to] and derives the range
// summary: mean of daily fleet speeds, fuel and sample totals, and
// per-vehicle fuel across the range.
func History(ctx context.Context, store HistoryStore, from, to time.Time) (*HistoricalMetrics, error) {
	from, to = domain.Day(from), domain.Day(to)

	fleet, err := store.FleetRollupsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fleet rollups %s..%s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	vehicles, err := store.VehicleRollupsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("vehicle rollups %s..%s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}

	var speedSum, fuelSum float64
	for _, r := range fleet {
		speedSum += r.FleetAverageSpeed
		fuelSum += r.TotalFuelConsumed
	}
	avgSpeed := 0.0
	if len(fleet) > 0 {
		avgSpeed = speedSum / float64(len(fleet))
	}

	totalPoints := 0
	fuelByVehicle := make(map[string]float64)
	typeByVehicle := make(map[string]domain.VehicleType)
	for _, r := range vehicles {
		totalPoints += r.SampleCount
		fuelByVehicle[r.VehicleID] += r.FuelConsumed
		if _, ok := typeByVehicle[r.VehicleID]; !ok {
			typeByVehicle[r.VehicleID] = r.VehicleType
		}
	}

	fuel := make([]VehicleFuelTotal, 0, len(fuelByVehicle))
	for id, total := range fuelByVehicle {
		fuel = append(fuel, VehicleFuelTotal{
			VehicleID:         id,
			VehicleType:       typeByVehicle[id],
			TotalFuelConsumed: total,
		})
	}
	sort.Slice(fuel, func(i, j int) bool { return fuel[i].VehicleID < fuel[j].VehicleID })

	return &HistoricalMetrics{
		From:              from,
		To:                to,
		TotalDays:         len(fleet),
		AverageFleetSpeed: avgSpeed,
		TotalFuelConsumed: fuelSum,
		TotalDataPoints:   totalPoints,
		DailyFleet:        fleet,
		DailyVehicles:     vehicles,
		VehicleFuel:       fuel,
	}, nil
}
