// Package analytics maintains the live in-process metrics: running per-vehicle
// aggregates and fleet-wide counters, mutated concurrently by ingestion
// workers and read as on-demand snapshots by the query surface.
package analytics

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"fleetwatch/internal/domain"
)

// ErrVehicleNotFound is returned by read accessors for a vehicle the
// aggregator has never seen.
var ErrVehicleNotFound = errors.New("vehicle not tracked")

// Aggregator owns all live metrics state. Construct one per process and hand
// it to the ingestion workers; nothing here is package-global so tests can
// build isolated instances.
type Aggregator struct {
	mu       sync.RWMutex
	vehicles map[string]*VehicleState

	fleet *FleetState
	log   *zap.Logger
}

func NewAggregator(log *zap.Logger) *Aggregator {
	return &Aggregator{
		vehicles: make(map[string]*VehicleState),
		fleet:    newFleetState(),
		log:      log,
	}
}

// Ingest folds one validated sample into the live state. Not idempotent:
// redelivery of the same sample double-counts.
func (a *Aggregator) Ingest(s *domain.TelemetrySample) {
	a.ingest(s, true)
}

// Seed is Ingest for startup restoration: it populates the vehicle exactly
// like a first live sample would, but does not count toward the fleet
// telemetry total.
func (a *Aggregator) Seed(s *domain.TelemetrySample) {
	a.ingest(s, false)
}

func (a *Aggregator) ingest(s *domain.TelemetrySample, countFleet bool) {
	v := a.vehicle(s)

	prev := v.update(s)
	if prev != s.VehicleStatus {
		a.fleet.swapStatus(prev, s.VehicleStatus)
	}
	if countFleet {
		a.fleet.incrementTelemetry()
	}
}

// vehicle returns the state for the sample's vehicle, creating and
// registering it exactly once under concurrent first arrival.
func (a *Aggregator) vehicle(s *domain.TelemetrySample) *VehicleState {
	a.mu.RLock()
	v, ok := a.vehicles[s.VehicleID]
	a.mu.RUnlock()
	if ok {
		return v
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok = a.vehicles[s.VehicleID]; ok {
		return v
	}
	v = newVehicleState(s.VehicleID, s.VehicleType)
	a.vehicles[s.VehicleID] = v
	a.fleet.registerVehicle(s.VehicleType)
	a.log.Info("new vehicle registered",
		zap.String("vehicle_id", s.VehicleID),
		zap.String("vehicle_type", string(s.VehicleType)))
	return v
}

// Vehicle returns a snapshot for one vehicle.
func (a *Aggregator) Vehicle(vehicleID string) (VehicleSnapshot, error) {
	a.mu.RLock()
	v, ok := a.vehicles[vehicleID]
	a.mu.RUnlock()
	if !ok {
		return VehicleSnapshot{}, ErrVehicleNotFound
	}
	return v.snapshot(), nil
}

// AllVehicles returns snapshots for every tracked vehicle, ordered by id.
func (a *Aggregator) AllVehicles() []VehicleSnapshot {
	states := a.states()
	out := make([]VehicleSnapshot, 0, len(states))
	for _, v := range states {
		out = append(out, v.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// VehiclesByType returns snapshots for tracked vehicles of one type.
func (a *Aggregator) VehiclesByType(t domain.VehicleType) []VehicleSnapshot {
	out := make([]VehicleSnapshot, 0)
	for _, v := range a.states() {
		if v.vehicleType == t {
			out = append(out, v.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// TrackedVehicleCount is the number of vehicles with live state.
func (a *Aggregator) TrackedVehicleCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.vehicles)
}

// FleetAverageSpeed is the unweighted mean of each tracked vehicle's own
// average speed: two vehicles contribute equally no matter how many samples
// each produced.
func (a *Aggregator) FleetAverageSpeed() float64 {
	states := a.states()
	if len(states) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range states {
		sum += v.AverageSpeed()
	}
	return sum / float64(len(states))
}

// AverageSpeedByType computes, per type, the unweighted mean of per-vehicle
// average speeds. Types with no tracked vehicles report 0.
func (a *Aggregator) AverageSpeedByType() map[domain.VehicleType]float64 {
	sums := make(map[domain.VehicleType]float64, 3)
	counts := make(map[domain.VehicleType]int, 3)
	for _, v := range a.states() {
		sums[v.vehicleType] += v.AverageSpeed()
		counts[v.vehicleType]++
	}

	out := make(map[domain.VehicleType]float64, 3)
	for _, t := range domain.VehicleTypes() {
		if counts[t] == 0 {
			out[t] = 0.0
			continue
		}
		out[t] = sums[t] / float64(counts[t])
	}
	return out
}

// TotalFuelConsumed sums every vehicle's live fuel accumulator. This is the
// type-blind live figure; the daily rollups report a separate type-weighted
// statistic.
func (a *Aggregator) TotalFuelConsumed() float64 {
	var sum float64
	for _, v := range a.states() {
		sum += v.TotalFuelConsumed()
	}
	return sum
}

// Fleet returns the fleet-wide snapshot.
func (a *Aggregator) Fleet() FleetSnapshot {
	byType, status := a.fleet.counters()
	return FleetSnapshot{
		TotalTelemetry:     a.fleet.totalTelemetry.Load(),
		TotalVehicles:      a.fleet.totalVehicles.Load(),
		VehiclesByType:     byType,
		CurrentStatus:      status,
		FleetAverageSpeed:  a.FleetAverageSpeed(),
		AverageSpeedByType: a.AverageSpeedByType(),
		TotalFuelConsumed:  a.TotalFuelConsumed(),
	}
}

func (a *Aggregator) states() []*VehicleState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*VehicleState, 0, len(a.vehicles))
	for _, v := range a.vehicles {
		out = append(out, v)
	}
	return out
}
