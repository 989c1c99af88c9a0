package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func sample(id string, t domain.VehicleType, status domain.VehicleStatus) *domain.TelemetrySample {
	return &domain.TelemetrySample{
		VehicleID:     id,
		VehicleType:   t,
		VehicleStatus: status,
		Timestamp:     time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Latitude:      ptr(40.7),
		Longitude:     ptr(-74.0),
	}
}

func TestFuelConsumedCountsOnlyDrops(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	for _, level := range []float64{100, 90, 85} {
		s := sample("V-1", domain.TypePolice, domain.StatusEnRoute)
		s.FuelLevel = ptr(level)
		agg.Ingest(s)
	}

	snap, err := agg.Vehicle("V-1")
	require.NoError(t, err)
	assert.InDelta(t, 15.0, snap.TotalFuelConsumed, 1e-9)
}

func TestFuelConsumedIgnoresRefuel(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	// 50 -> 100 is a refuel and must not subtract; 100 -> 95 counts.
	for _, level := range []float64{50, 100, 95} {
		s := sample("V-1", domain.TypePolice, domain.StatusEnRoute)
		s.FuelLevel = ptr(level)
		agg.Ingest(s)
	}

	snap, err := agg.Vehicle("V-1")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, snap.TotalFuelConsumed, 1e-9)
}

func TestFuelBaselineSurvivesMissingReading(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	s1 := sample("V-1", domain.TypePolice, domain.StatusEnRoute)
	s1.FuelLevel = ptr(80)
	agg.Ingest(s1)

	// No fuel reading clears the baseline; the next drop has nothing to
	// diff against.
	agg.Ingest(sample("V-1", domain.TypePolice, domain.StatusEnRoute))

	s3 := sample("V-1", domain.TypePolice, domain.StatusEnRoute)
	s3.FuelLevel = ptr(70)
	agg.Ingest(s3)

	snap, err := agg.Vehicle("V-1")
	require.NoError(t, err)
	assert.Zero(t, snap.TotalFuelConsumed)
}

func TestAverageSpeed(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	for _, sp := range []float64{50, 60, 70} {
		s := sample("V-1", domain.TypeAmbulance, domain.StatusEnRoute)
		s.Speed = ptr(sp)
		agg.Ingest(s)
	}
	// Samples without a speed reading don't dilute the mean.
	agg.Ingest(sample("V-1", domain.TypeAmbulance, domain.StatusEnRoute))

	snap, err := agg.Vehicle("V-1")
	require.NoError(t, err)
	assert.InDelta(t, 60.0, snap.AverageSpeed, 1e-9)
}

func TestStatusDistributionPercentages(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	for _, st := range []domain.VehicleStatus{
		domain.StatusIdle, domain.StatusIdle,
		domain.StatusEnRoute, domain.StatusEnRoute,
	} {
		agg.Ingest(sample("V-1", domain.TypePolice, st))
	}

	snap, err := agg.Vehicle("V-1")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, snap.StatusDistribution[domain.StatusIdle], 1e-9)
	assert.InDelta(t, 50.0, snap.StatusDistribution[domain.StatusEnRoute], 1e-9)
	assert.Zero(t, snap.StatusDistribution[domain.StatusOnScene])
	assert.Zero(t, snap.StatusDistribution[domain.StatusReturning])
}

func TestFleetAverageSpeedIsUnweighted(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	// V-1 averages 60 over three samples, V-2 averages 40 over one. The
	// fleet mean weighs the vehicles equally.
	for _, sp := range []float64{50, 60, 70} {
		s := sample("V-1", domain.TypePolice, domain.StatusEnRoute)
		s.Speed = ptr(sp)
		agg.Ingest(s)
	}
	s := sample("V-2", domain.TypePolice, domain.StatusEnRoute)
	s.Speed = ptr(40)
	agg.Ingest(s)

	assert.InDelta(t, 50.0, agg.FleetAverageSpeed(), 1e-9)
}

func TestAverageSpeedByTypeReportsEmptyTypes(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	s := sample("V-1", domain.TypeFireTruck, domain.StatusEnRoute)
	s.Speed = ptr(30)
	agg.Ingest(s)

	byType := agg.AverageSpeedByType()
	assert.InDelta(t, 30.0, byType[domain.TypeFireTruck], 1e-9)
	assert.Zero(t, byType[domain.TypePolice])
	assert.Zero(t, byType[domain.TypeAmbulance])
}

func TestConcurrentFirstArrivalRegistersOnce(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	const vehicles = 50
	const perVehicle = 20

	var wg sync.WaitGroup
	for i := 0; i < vehicles; i++ {
		id := string(rune('A' + i%26))
		if i >= 26 {
			id += "2"
		}
		for j := 0; j < perVehicle; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				agg.Ingest(sample(id, domain.TypePolice, domain.StatusIdle))
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, vehicles, agg.TrackedVehicleCount())
	fleet := agg.Fleet()
	assert.Equal(t, int64(vehicles), fleet.TotalVehicles)
	assert.Equal(t, int64(vehicles*perVehicle), fleet.TotalTelemetry)
}

func TestSeedDoesNotCountFleetTelemetry(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	agg.Seed(sample("V-1", domain.TypeAmbulance, domain.StatusIdle))

	fleet := agg.Fleet()
	assert.Equal(t, int64(0), fleet.TotalTelemetry)
	assert.Equal(t, int64(1), fleet.TotalVehicles)
	assert.Equal(t, int64(1), fleet.CurrentStatus[domain.StatusIdle])

	// A live sample afterwards counts normally.
	agg.Ingest(sample("V-1", domain.TypeAmbulance, domain.StatusEnRoute))
	fleet = agg.Fleet()
	assert.Equal(t, int64(1), fleet.TotalTelemetry)
	assert.Equal(t, int64(1), fleet.CurrentStatus[domain.StatusEnRoute])
	assert.Equal(t, int64(0), fleet.CurrentStatus[domain.StatusIdle])
}

func TestVehicleNotTracked(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	_, err := agg.Vehicle("ghost")
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestVehiclesByType(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	agg.Ingest(sample("P-1", domain.TypePolice, domain.StatusIdle))
	agg.Ingest(sample("A-1", domain.TypeAmbulance, domain.StatusIdle))
	agg.Ingest(sample("P-2", domain.TypePolice, domain.StatusIdle))

	police := agg.VehiclesByType(domain.TypePolice)
	require.Len(t, police, 2)
	assert.Equal(t, "P-1", police[0].VehicleID)
	assert.Equal(t, "P-2", police[1].VehicleID)

	assert.Empty(t, agg.VehiclesByType(domain.TypeFireTruck))
}
