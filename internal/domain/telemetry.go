package domain

import "time"

type VehicleType string

const (
	TypePolice    VehicleType = "POLICE"
	TypeAmbulance VehicleType = "AMBULANCE"
	TypeFireTruck VehicleType = "FIRE_TRUCK"
)

// VehicleTypes returns all known types in a stable order, for histogram
// bucketing and by-type reports.
func VehicleTypes() []VehicleType {
	return []VehicleType{TypePolice, TypeAmbulance, TypeFireTruck}
}

func (t VehicleType) Valid() bool {
	switch t {
	case TypePolice, TypeAmbulance, TypeFireTruck:
		return true
	}
	return false
}

type VehicleStatus string

const (
	StatusIdle      VehicleStatus = "IDLE"
	StatusEnRoute   VehicleStatus = "EN_ROUTE"
	StatusOnScene   VehicleStatus = "ON_SCENE"
	StatusReturning VehicleStatus = "RETURNING"
)

func VehicleStatuses() []VehicleStatus {
	return []VehicleStatus{StatusIdle, StatusEnRoute, StatusOnScene, StatusReturning}
}

// TelemetrySample is one reading from a vehicle at a point in time. Built by
// the transport boundary, never mutated afterwards. Optional sensor readings
// are pointers; nil means the vehicle did not report them.
type TelemetrySample struct {
	ReceivedAt time.Time `json:"-"`

	VehicleID     string        `json:"vehicleId"`
	VehicleType   VehicleType   `json:"vehicleType"`
	VehicleStatus VehicleStatus `json:"vehicleStatus"`
	Timestamp     time.Time     `json:"timeStamp"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	Speed                 *float64 `json:"speed"`
	FuelLevel             *float64 `json:"fuelLevel"`
	EngineTemp            *float64 `json:"engineTemp"`
	BatteryVoltage        *float64 `json:"batteryVoltage"`
	EmergencyLightsActive *bool    `json:"emergencyLightsActive"`
}

// Validate reports whether the sample carries the fields every consumer
// depends on. Samples failing this are dropped at the boundary.
func (s *TelemetrySample) Validate() bool {
	if s.VehicleID == "" {
		return false
	}
	if s.Timestamp.IsZero() {
		return false
	}
	if s.Latitude == nil || s.Longitude == nil {
		return false
	}
	return true
}

// batteryThresholds maps vehicle type to the minimum healthy voltage. Fire
// trucks run 24V electrics, everything else 12V.
var batteryThresholds = map[VehicleType]float64{
	TypeFireTruck: 23.0,
	TypeAmbulance: 11.5,
	TypePolice:    11.5,
}

// BatteryThreshold returns the low-voltage alert threshold for a type.
func BatteryThreshold(t VehicleType) float64 {
	if v, ok := batteryThresholds[t]; ok {
		return v
	}
	return 11.5
}

// fuelMultipliers weight raw fuel-level drops into per-type consumption
// figures for the daily rollups. Raw drops are tank percentage points; the
// weights reflect tank size per type.
var fuelMultipliers = map[VehicleType]float64{
	TypeFireTruck: 2.0,
	TypeAmbulance: 0.8,
	TypePolice:    0.6,
}

// FuelMultiplier returns the consumption weight for a type, 0 for unknown
// types.
func FuelMultiplier(t VehicleType) float64 {
	return fuelMultipliers[t]
}
