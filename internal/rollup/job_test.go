package rollup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

func fptr(v float64) *float64 { return &v }

var testDate = time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

// fakeRollupStore returns canned query results and records every save.
type fakeRollupStore struct {
	samples []domain.TelemetrySample
	groups  []domain.VehicleDayGroup

	vehicleCount  int
	avgSpeed      float64
	speedByStatus map[domain.VehicleStatus]float64
	speedByType   map[domain.VehicleType]float64

	existingFleet *domain.DailyFleetRollup

	savedFleet    []*domain.DailyFleetRollup
	savedVehicles []*domain.DailyVehicleRollup

	fleetSaveErr    error
	vehicleSaveErrs map[string]error
}

func newFakeRollupStore() *fakeRollupStore {
	return &fakeRollupStore{
		speedByStatus: map[domain.VehicleStatus]float64{},
		speedByType:   map[domain.VehicleType]float64{},
	}
}

func (f *fakeRollupStore) FleetRollup(ctx context.Context, date time.Time) (*domain.DailyFleetRollup, error) {
	if f.existingFleet != nil && domain.SameDay(f.existingFleet.Date, date) {
		return f.existingFleet, nil
	}
	return nil, nil
}

func (f *fakeRollupStore) SaveFleetRollup(ctx context.Context, r *domain.DailyFleetRollup) error {
	if f.fleetSaveErr != nil {
		return f.fleetSaveErr
	}
	f.savedFleet = append(f.savedFleet, r)
	f.existingFleet = r
	return nil
}

func (f *fakeRollupStore) SaveVehicleRollup(ctx context.Context, r *domain.DailyVehicleRollup) error {
	if err := f.vehicleSaveErrs[r.VehicleID]; err != nil {
		return err
	}
	f.savedVehicles = append(f.savedVehicles, r)
	return nil
}

func (f *fakeRollupStore) DistinctVehicleCount(ctx context.Context, date time.Time) (int, error) {
	return f.vehicleCount, nil
}

func (f *fakeRollupStore) AverageSpeedForDate(ctx context.Context, date time.Time) (float64, error) {
	return f.avgSpeed, nil
}

func (f *fakeRollupStore) AverageSpeedByStatus(ctx context.Context, date time.Time) (map[domain.VehicleStatus]float64, error) {
	return f.speedByStatus, nil
}

func (f *fakeRollupStore) AverageSpeedByType(ctx context.Context, date time.Time) (map[domain.VehicleType]float64, error) {
	return f.speedByType, nil
}

func (f *fakeRollupStore) VehicleDayGroups(ctx context.Context, date time.Time) ([]domain.VehicleDayGroup, error) {
	return f.groups, nil
}

func (f *fakeRollupStore) SamplesInRange(ctx context.Context, from, to time.Time) ([]domain.TelemetrySample, error) {
	var out []domain.TelemetrySample
	for _, s := range f.samples {
		if !s.Timestamp.Before(from) && s.Timestamp.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func fuelSample(id string, t domain.VehicleType, ts time.Time, fuel float64) domain.TelemetrySample {
	return domain.TelemetrySample{
		VehicleID:   id,
		VehicleType: t,
		Timestamp:   ts,
		FuelLevel:   fptr(fuel),
	}
}

func TestFuelConsumptionDifferencing(t *testing.T) {
	store := newFakeRollupStore()
	dayBefore := testDate.AddDate(0, 0, -1)

	store.samples = []domain.TelemetrySample{
		// Baseline from the buffer window; the drop landing on the target
		// date counts, the drop inside the buffer does not.
		fuelSample("P-1", domain.TypePolice, dayBefore.Add(10*time.Hour), 90),
		fuelSample("P-1", domain.TypePolice, dayBefore.Add(20*time.Hour), 80),
		fuelSample("P-1", domain.TypePolice, testDate.Add(8*time.Hour), 70),
		fuelSample("P-1", domain.TypePolice, testDate.Add(16*time.Hour), 60),
	}

	job := NewJob(store, zap.NewNop(), 2)
	fuel, err := job.fuelConsumption(context.Background(), testDate)
	require.NoError(t, err)

	// Raw on-date drop is (80-70)+(70-60)=20, weighted by the police
	// multiplier 0.6.
	assert.InDelta(t, 12.0, fuel["P-1"], 1e-9)
}

func TestFuelConsumptionIgnoresRefuels(t *testing.T) {
	store := newFakeRollupStore()
	store.samples = []domain.TelemetrySample{
		fuelSample("F-1", domain.TypeFireTruck, testDate.Add(1*time.Hour), 40),
		fuelSample("F-1", domain.TypeFireTruck, testDate.Add(2*time.Hour), 100),
		fuelSample("F-1", domain.TypeFireTruck, testDate.Add(3*time.Hour), 95),
	}

	job := NewJob(store, zap.NewNop(), 2)
	fuel, err := job.fuelConsumption(context.Background(), testDate)
	require.NoError(t, err)

	// Only the 100 -> 95 drop counts, weighted by the fire truck
	// multiplier 2.0.
	assert.InDelta(t, 10.0, fuel["F-1"], 1e-9)
}

func TestFuelConsumptionFirstSampleHasNoBaseline(t *testing.T) {
	store := newFakeRollupStore()
	store.samples = []domain.TelemetrySample{
		fuelSample("A-1", domain.TypeAmbulance, testDate.Add(1*time.Hour), 50),
	}

	job := NewJob(store, zap.NewNop(), 2)
	fuel, err := job.fuelConsumption(context.Background(), testDate)
	require.NoError(t, err)

	assert.Empty(t, fuel)
}

func TestAggregateAssignsFuelToFirstGroupOnly(t *testing.T) {
	store := newFakeRollupStore()
	store.samples = []domain.TelemetrySample{
		fuelSample("A-1", domain.TypeAmbulance, testDate.Add(1*time.Hour), 80),
		fuelSample("A-1", domain.TypeAmbulance, testDate.Add(5*time.Hour), 70),
	}
	store.groups = []domain.VehicleDayGroup{
		{VehicleID: "A-1", VehicleStatus: domain.StatusEnRoute, VehicleType: domain.TypeAmbulance, AverageSpeed: 55, SampleCount: 10},
		{VehicleID: "A-1", VehicleStatus: domain.StatusReturning, VehicleType: domain.TypeAmbulance, AverageSpeed: 45, SampleCount: 6},
	}
	store.vehicleCount = 1

	job := NewJob(store, zap.NewNop(), 2)
	require.NoError(t, job.Aggregate(context.Background(), testDate))

	require.Len(t, store.savedVehicles, 2)
	// Raw drop 10 weighted by 0.8; the second status group carries 0 so
	// range sums over the rows don't double count.
	assert.InDelta(t, 8.0, store.savedVehicles[0].FuelConsumed, 1e-9)
	assert.Zero(t, store.savedVehicles[1].FuelConsumed)

	require.Len(t, store.savedFleet, 1)
	assert.InDelta(t, 8.0, store.savedFleet[0].TotalFuelConsumed, 1e-9)
}

func TestAggregatePersistsFleetStatistics(t *testing.T) {
	store := newFakeRollupStore()
	store.vehicleCount = 7
	store.avgSpeed = 52.5
	store.speedByStatus = map[domain.VehicleStatus]float64{
		domain.StatusIdle:    1.2,
		domain.StatusEnRoute: 61.0,
	}
	store.speedByType = map[domain.VehicleType]float64{
		domain.TypePolice: 58.0,
	}

	job := NewJob(store, zap.NewNop(), 2)
	require.NoError(t, job.Aggregate(context.Background(), testDate.Add(13*time.Hour)))

	require.Len(t, store.savedFleet, 1)
	fleet := store.savedFleet[0]
	// The date key is truncated to midnight UTC regardless of the input.
	assert.Equal(t, testDate, fleet.Date)
	assert.Equal(t, 7, fleet.TotalVehicles)
	assert.InDelta(t, 52.5, fleet.FleetAverageSpeed, 1e-9)
	assert.Equal(t, store.speedByStatus, fleet.SpeedByStatus)
	assert.Equal(t, store.speedByType, fleet.SpeedByType)
}

func TestAggregateIsIdempotent(t *testing.T) {
	store := newFakeRollupStore()
	store.groups = []domain.VehicleDayGroup{
		{VehicleID: "P-1", VehicleStatus: domain.StatusEnRoute, VehicleType: domain.TypePolice, SampleCount: 3},
	}
	store.vehicleCount = 1

	job := NewJob(store, zap.NewNop(), 2)
	require.NoError(t, job.Aggregate(context.Background(), testDate))
	require.NoError(t, job.Aggregate(context.Background(), testDate))

	assert.Len(t, store.savedFleet, 1)
	assert.Len(t, store.savedVehicles, 1)
}

func TestAggregateContinuesPastVehicleRowFailure(t *testing.T) {
	store := newFakeRollupStore()
	store.groups = []domain.VehicleDayGroup{
		{VehicleID: "P-1", VehicleStatus: domain.StatusEnRoute, VehicleType: domain.TypePolice},
		{VehicleID: "P-2", VehicleStatus: domain.StatusEnRoute, VehicleType: domain.TypePolice},
	}
	store.vehicleSaveErrs = map[string]error{"P-1": errors.New("constraint violation")}
	store.vehicleCount = 2

	job := NewJob(store, zap.NewNop(), 2)
	require.NoError(t, job.Aggregate(context.Background(), testDate))

	require.Len(t, store.savedVehicles, 1)
	assert.Equal(t, "P-2", store.savedVehicles[0].VehicleID)
	assert.Len(t, store.savedFleet, 1)
}

func TestAggregateFleetSaveFailureIsFatal(t *testing.T) {
	store := newFakeRollupStore()
	store.fleetSaveErr = errors.New("db down")

	job := NewJob(store, zap.NewNop(), 2)
	err := job.Aggregate(context.Background(), testDate)
	assert.Error(t, err)
}
