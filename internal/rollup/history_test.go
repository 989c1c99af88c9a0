package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/domain"
)

type fakeHistoryStore struct {
	fleet    []domain.DailyFleetRollup
	vehicles []domain.DailyVehicleRollup
}

func (f *fakeHistoryStore) FleetRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyFleetRollup, error) {
	return f.fleet, nil
}

func (f *fakeHistoryStore) VehicleRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyVehicleRollup, error) {
	return f.vehicles, nil
}

func TestHistoryDerivesRangeSummary(t *testing.T) {
	day1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	store := &fakeHistoryStore{
		fleet: []domain.DailyFleetRollup{
			{Date: day1, FleetAverageSpeed: 40, TotalFuelConsumed: 10},
			{Date: day2, FleetAverageSpeed: 60, TotalFuelConsumed: 14},
		},
		vehicles: []domain.DailyVehicleRollup{
			{VehicleID: "A-1", VehicleType: domain.TypeAmbulance, Date: day1, FuelConsumed: 6, SampleCount: 100},
			{VehicleID: "A-1", VehicleType: domain.TypeAmbulance, Date: day2, FuelConsumed: 8, SampleCount: 120},
			{VehicleID: "P-1", VehicleType: domain.TypePolice, Date: day1, FuelConsumed: 4, SampleCount: 80},
		},
	}

	h, err := History(context.Background(), store, day1, day2)
	require.NoError(t, err)

	assert.Equal(t, 2, h.TotalDays)
	assert.InDelta(t, 50.0, h.AverageFleetSpeed, 1e-9)
	assert.InDelta(t, 24.0, h.TotalFuelConsumed, 1e-9)
	assert.Equal(t, 300, h.TotalDataPoints)

	require.Len(t, h.VehicleFuel, 2)
	assert.Equal(t, "A-1", h.VehicleFuel[0].VehicleID)
	assert.InDelta(t, 14.0, h.VehicleFuel[0].TotalFuelConsumed, 1e-9)
	assert.Equal(t, "P-1", h.VehicleFuel[1].VehicleID)
	assert.InDelta(t, 4.0, h.VehicleFuel[1].TotalFuelConsumed, 1e-9)
}

func TestHistoryEmptyRange(t *testing.T) {
	h, err := History(context.Background(), &fakeHistoryStore{},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Zero(t, h.TotalDays)
	assert.Zero(t, h.AverageFleetSpeed)
	assert.Zero(t, h.TotalFuelConsumed)
	assert.Empty(t, h.VehicleFuel)
}
