package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client), mr
}

func TestPipelineStateUpdateWritesHashAndGeo(t *testing.T) {
	store, mr := newTestRedis(t)

	s := &domain.TelemetrySample{
		VehicleID:             "P-7",
		VehicleType:           domain.TypePolice,
		VehicleStatus:         domain.StatusEnRoute,
		Timestamp:             time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		ReceivedAt:            time.Date(2026, 8, 27, 12, 0, 1, 0, time.UTC),
		Latitude:              fptr(40.73),
		Longitude:             fptr(-73.99),
		Speed:                 fptr(62.5),
		FuelLevel:             fptr(48.0),
		EmergencyLightsActive: bptr(true),
	}

	require.NoError(t, store.PipelineStateUpdate(context.Background(), s))

	key := "vehicle:P-7:state"
	assert.Equal(t, "P-7", mr.HGet(key, "vehicle_id"))
	assert.Equal(t, "POLICE", mr.HGet(key, "vehicle_type"))
	assert.Equal(t, "EN_ROUTE", mr.HGet(key, "vehicle_status"))
	assert.Equal(t, "62.5", mr.HGet(key, "speed"))
	assert.Equal(t, "48", mr.HGet(key, "fuel_level"))

	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, vehicleStateTTL)

	assert.True(t, mr.Exists("fleet:geo"))
}

func TestPipelineStateUpdateSkipsMissingReadings(t *testing.T) {
	store, mr := newTestRedis(t)

	s := &domain.TelemetrySample{
		VehicleID:     "A-3",
		VehicleType:   domain.TypeAmbulance,
		VehicleStatus: domain.StatusIdle,
		Timestamp:     time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		ReceivedAt:    time.Date(2026, 8, 27, 12, 0, 1, 0, time.UTC),
	}

	require.NoError(t, store.PipelineStateUpdate(context.Background(), s))

	key := "vehicle:A-3:state"
	assert.Equal(t, "A-3", mr.HGet(key, "vehicle_id"))
	assert.Empty(t, mr.HGet(key, "speed"))
	assert.Empty(t, mr.HGet(key, "fuel_level"))
	assert.Empty(t, mr.HGet(key, "lat"))

	// No coordinates means no geo index entry.
	assert.False(t, mr.Exists("fleet:geo"))
}

func TestPipelineStateUpdateOverwritesPreviousState(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	s := &domain.TelemetrySample{
		VehicleID:     "F-1",
		VehicleType:   domain.TypeFireTruck,
		VehicleStatus: domain.StatusIdle,
		Timestamp:     time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		ReceivedAt:    time.Date(2026, 8, 27, 12, 0, 1, 0, time.UTC),
		Speed:         fptr(0),
	}
	require.NoError(t, store.PipelineStateUpdate(ctx, s))

	s.VehicleStatus = domain.StatusEnRoute
	s.Speed = fptr(45)
	require.NoError(t, store.PipelineStateUpdate(ctx, s))

	key := "vehicle:F-1:state"
	assert.Equal(t, "EN_ROUTE", mr.HGet(key, "vehicle_status"))
	assert.Equal(t, "45", mr.HGet(key, "speed"))
}
