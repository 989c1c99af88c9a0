package analytics

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"fleetwatch/internal/domain"
)

// VehicleState carries the running aggregates for one vehicle. Counters are
// lock-free; the differencing fields (last fuel, last status, timestamps)
// share a small per-vehicle mutex so unrelated vehicles never contend.
type VehicleState struct {
	vehicleID   string
	vehicleType domain.VehicleType

	speedSum   atomic.Float64
	speedCount atomic.Int64

	// fuelConsumed only ever grows: refuels are ignored, not subtracted.
	fuelConsumed atomic.Float64

	statusCounts   map[domain.VehicleStatus]*atomic.Int64
	telemetryCount atomic.Int64

	mu         sync.Mutex
	lastFuel   *float64
	lastStatus domain.VehicleStatus
	firstSeen  time.Time
	lastSeen   time.Time
}

func newVehicleState(id string, t domain.VehicleType) *VehicleState {
	counts := make(map[domain.VehicleStatus]*atomic.Int64, 4)
	for _, st := range domain.VehicleStatuses() {
		counts[st] = atomic.NewInt64(0)
	}
	return &VehicleState{
		vehicleID:    id,
		vehicleType:  t,
		statusCounts: counts,
	}
}

// update folds one sample into the state and returns the previously observed
// status, so the caller can move the fleet histogram bucket on a change.
func (v *VehicleState) update(s *domain.TelemetrySample) domain.VehicleStatus {
	v.telemetryCount.Inc()

	if s.Speed != nil {
		v.speedSum.Add(*s.Speed)
		v.speedCount.Inc()
	}

	v.mu.Lock()
	if s.FuelLevel != nil && v.lastFuel != nil {
		if used := *v.lastFuel - *s.FuelLevel; used > 0 {
			v.fuelConsumed.Add(used)
		}
	}
	// Last observed level is recorded regardless of direction.
	v.lastFuel = s.FuelLevel

	prev := v.lastStatus
	v.lastStatus = s.VehicleStatus

	if v.firstSeen.IsZero() {
		v.firstSeen = s.Timestamp
	}
	v.lastSeen = s.Timestamp
	v.mu.Unlock()

	if c, ok := v.statusCounts[s.VehicleStatus]; ok {
		c.Inc()
	}
	return prev
}

// AverageSpeed is sum/count over the samples that carried a speed reading,
// 0 when none did.
func (v *VehicleState) AverageSpeed() float64 {
	count := v.speedCount.Load()
	if count == 0 {
		return 0.0
	}
	return v.speedSum.Load() / float64(count)
}

func (v *VehicleState) TotalFuelConsumed() float64 {
	return v.fuelConsumed.Load()
}

// StatusDistribution returns each status bucket as a percentage of the
// vehicle's total telemetry count. This is a historical distribution, not
// the current status.
func (v *VehicleState) StatusDistribution() map[domain.VehicleStatus]float64 {
	dist := make(map[domain.VehicleStatus]float64, len(v.statusCounts))
	total := v.telemetryCount.Load()
	for _, st := range domain.VehicleStatuses() {
		if total == 0 {
			dist[st] = 0.0
			continue
		}
		dist[st] = float64(v.statusCounts[st].Load()) * 100.0 / float64(total)
	}
	return dist
}

// VehicleSnapshot is a point-in-time read of one vehicle's aggregates.
type VehicleSnapshot struct {
	VehicleID          string                           `json:"vehicleId"`
	VehicleType        domain.VehicleType               `json:"vehicleType"`
	CurrentStatus      domain.VehicleStatus             `json:"currentStatus"`
	AverageSpeed       float64                          `json:"averageSpeed"`
	TotalFuelConsumed  float64                          `json:"totalFuelConsumed"`
	StatusDistribution map[domain.VehicleStatus]float64 `json:"statusDistribution"`
	TelemetryCount     int64                            `json:"telemetryCount"`
	FirstSeen          time.Time                        `json:"firstSeen"`
	LastSeen           time.Time                        `json:"lastSeen"`
}

func (v *VehicleState) snapshot() VehicleSnapshot {
	v.mu.Lock()
	status := v.lastStatus
	firstSeen := v.firstSeen
	lastSeen := v.lastSeen
	v.mu.Unlock()

	return VehicleSnapshot{
		VehicleID:          v.vehicleID,
		VehicleType:        v.vehicleType,
		CurrentStatus:      status,
		AverageSpeed:       v.AverageSpeed(),
		TotalFuelConsumed:  v.TotalFuelConsumed(),
		StatusDistribution: v.StatusDistribution(),
		TelemetryCount:     v.telemetryCount.Load(),
		FirstSeen:          firstSeen,
		LastSeen:           lastSeen,
	}
}
