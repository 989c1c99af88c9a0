package domain

import "time"

// Day truncates a timestamp to its UTC calendar date. All rollup date keys
// go through this so "same day" means the same thing everywhere.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether ts falls on the UTC calendar date day.
func SameDay(ts, day time.Time) bool {
	return Day(ts).Equal(Day(day))
}

// DailyFleetRollup is the fleet-wide precomputed aggregate for one date.
// Its existence for a date marks that date's aggregation as done.
type DailyFleetRollup struct {
	Date              time.Time                 `json:"date"`
	TotalVehicles     int                       `json:"totalVehicles"`
	FleetAverageSpeed float64                   `json:"fleetAverageSpeed"`
	TotalFuelConsumed float64                   `json:"totalFuelConsumed"`
	SpeedByStatus     map[VehicleStatus]float64 `json:"averageSpeedByStatus"`
	SpeedByType       map[VehicleType]float64   `json:"averageSpeedByType"`
}

// DailyVehicleRollup is one (vehicle, status) group's aggregate for a date.
// FuelConsumed carries the vehicle's whole type-weighted daily consumption on
// the first group persisted for that vehicle and 0 on the rest.
type DailyVehicleRollup struct {
	VehicleID        string        `json:"vehicleId"`
	Date             time.Time     `json:"date"`
	VehicleStatus    VehicleStatus `json:"vehicleStatus"`
	VehicleType      VehicleType   `json:"vehicleType"`
	AverageSpeed     float64       `json:"averageSpeed"`
	MaxSpeed         float64       `json:"maxSpeed"`
	MinSpeed         float64       `json:"minSpeed"`
	AverageFuelLevel float64       `json:"averageFuelLevel"`
	MinFuelLevel     float64       `json:"minFuelLevel"`
	FuelConsumed     float64       `json:"fuelConsumed"`
	SampleCount      int           `json:"totalTelemetryPoints"`
}

// VehicleDayGroup is the raw grouped statistics row the store returns for
// per-vehicle rollup computation: samples for one date grouped by
// (vehicle, status, type), restricted to moving states.
type VehicleDayGroup struct {
	VehicleID        string
	VehicleStatus    VehicleStatus
	VehicleType      VehicleType
	AverageSpeed     float64
	MaxSpeed         float64
	MinSpeed         float64
	AverageFuelLevel float64
	MinFuelLevel     float64
	SampleCount      int
}
