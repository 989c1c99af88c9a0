package analytics

import (
	"go.uber.org/atomic"

	"fleetwatch/internal/domain"
)

// FleetState holds the fleet-wide counters. Every bucket is an independent
// atomic so ingestion workers for different vehicles never serialize here.
type FleetState struct {
	totalTelemetry atomic.Int64
	totalVehicles  atomic.Int64

	byType       map[domain.VehicleType]*atomic.Int64
	statusCounts map[domain.VehicleStatus]*atomic.Int64
}

func newFleetState() *FleetState {
	byType := make(map[domain.VehicleType]*atomic.Int64, 3)
	for _, t := range domain.VehicleTypes() {
		byType[t] = atomic.NewInt64(0)
	}
	statusCounts := make(map[domain.VehicleStatus]*atomic.Int64, 4)
	for _, st := range domain.VehicleStatuses() {
		statusCounts[st] = atomic.NewInt64(0)
	}
	return &FleetState{byType: byType, statusCounts: statusCounts}
}

func (f *FleetState) registerVehicle(t domain.VehicleType) {
	f.totalVehicles.Inc()
	if c, ok := f.byType[t]; ok {
		c.Inc()
	}
}

// swapStatus moves a vehicle between current-status buckets. The decrement
// and increment are two independent atomics; the window between them is an
// accepted eventual-consistency gap.
func (f *FleetState) swapStatus(old, new domain.VehicleStatus) {
	if c, ok := f.statusCounts[old]; ok {
		c.Dec()
	}
	if c, ok := f.statusCounts[new]; ok {
		c.Inc()
	}
}

func (f *FleetState) incrementTelemetry() {
	f.totalTelemetry.Inc()
}

// FleetSnapshot is a point-in-time read of the fleet-wide aggregates.
type FleetSnapshot struct {
	TotalTelemetry     int64                          `json:"totalTelemetryReceived"`
	TotalVehicles      int64                          `json:"totalVehicles"`
	VehiclesByType     map[domain.VehicleType]int64   `json:"vehiclesByType"`
	CurrentStatus      map[domain.VehicleStatus]int64 `json:"currentStatusOverview"`
	FleetAverageSpeed  float64                        `json:"fleetAverageSpeed"`
	AverageSpeedByType map[domain.VehicleType]float64 `json:"averageSpeedByType"`
	TotalFuelConsumed  float64                        `json:"totalFuelConsumed"`
}

func (f *FleetState) counters() (byType map[domain.VehicleType]int64, status map[domain.VehicleStatus]int64) {
	byType = make(map[domain.VehicleType]int64, len(f.byType))
	for t, c := range f.byType {
		byType[t] = c.Load()
	}
	status = make(map[domain.VehicleStatus]int64, len(f.statusCounts))
	for st, c := range f.statusCounts {
		status[st] = c.Load()
	}
	return byType, status
}
