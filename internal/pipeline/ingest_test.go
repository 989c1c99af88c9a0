package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetwatch/internal/analytics"
	"fleetwatch/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func payload(t *testing.T, s *domain.TelemetrySample) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

func validSample() *domain.TelemetrySample {
	return &domain.TelemetrySample{
		VehicleID:     "V-1",
		VehicleType:   domain.TypePolice,
		VehicleStatus: domain.StatusEnRoute,
		Timestamp:     time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Latitude:      fptr(40.7),
		Longitude:     fptr(-74.0),
		Speed:         fptr(50),
	}
}

func TestHandleFansOutToAllChannels(t *testing.T) {
	agg := analytics.NewAggregator(zap.NewNop())
	d := NewDispatcher(4, 4, 4)
	ing := NewIngestor(agg, d, zap.NewNop())

	require.NoError(t, ing.Handle(payload(t, validSample())))

	assert.Len(t, d.DBChan, 1)
	assert.Len(t, d.StateChan, 1)
	assert.Len(t, d.AlertChan, 1)

	got := <-d.DBChan
	assert.Equal(t, "V-1", got.VehicleID)
	assert.False(t, got.ReceivedAt.IsZero())

	assert.Equal(t, 1, agg.TrackedVehicleCount())
}

func TestHandleRejectsUndecodablePayload(t *testing.T) {
	agg := analytics.NewAggregator(zap.NewNop())
	d := NewDispatcher(4, 4, 4)
	ing := NewIngestor(agg, d, zap.NewNop())

	err := ing.Handle([]byte("{not json"))
	assert.Error(t, err)
	assert.Empty(t, d.DBChan)
	assert.Zero(t, agg.TrackedVehicleCount())
}

func TestHandleDropsInvalidSampleSilently(t *testing.T) {
	agg := analytics.NewAggregator(zap.NewNop())
	d := NewDispatcher(4, 4, 4)
	ing := NewIngestor(agg, d, zap.NewNop())

	s := validSample()
	s.Latitude = nil

	// Dropped samples are not handler errors: the consumer must commit past
	// them without retrying.
	require.NoError(t, ing.Handle(payload(t, s)))
	assert.Empty(t, d.DBChan)
	assert.Zero(t, agg.TrackedVehicleCount())
}

func TestDispatchDropsOnFullChannel(t *testing.T) {
	d := NewDispatcher(1, 1, 1)
	s1 := validSample()
	s2 := validSample()

	d.Dispatch(s1)
	d.Dispatch(s2)

	// Capacity one: the second sample is dropped on every path, never
	// blocked on.
	assert.Len(t, d.DBChan, 1)
	assert.Len(t, d.StateChan, 1)
	assert.Len(t, d.AlertChan, 1)
	assert.Same(t, s1, <-d.DBChan)
}
