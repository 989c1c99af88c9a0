package domain

import "time"

type AlertType string

const (
	AlertLowFuel               AlertType = "LOW_FUEL"
	AlertHighEngineTemp        AlertType = "HIGH_ENGINE_TEMP"
	AlertLowBattery            AlertType = "LOW_BATTERY"
	AlertEmergencyStatusChange AlertType = "EMERGENCY_STATUS_CHANGE"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

// AlertCandidate is a threshold violation observed on a single sample. It is
// handed to the alert lifecycle and emitted on the outbound topic; it is
// never stored itself.
type AlertCandidate struct {
	VehicleID   string      `json:"vehicleId"`
	VehicleType VehicleType `json:"vehicleType"`
	AlertType   AlertType   `json:"alertType"`
	Message     string      `json:"message"`
	Threshold   *float64    `json:"thresholdValue"`
	ActualValue *float64    `json:"actualValue"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Alert is the persisted, lifecycle-tracked form of a candidate. At most one
// ACTIVE alert exists per (vehicle, type) pair; resolved alerts are kept
// forever and never transition again.
type Alert struct {
	ID          string      `json:"id"`
	VehicleID   string      `json:"vehicleId"`
	VehicleType VehicleType `json:"vehicleType"`
	AlertType   AlertType   `json:"alertType"`
	Status      AlertStatus `json:"status"`
	Message     string      `json:"message"`
	Threshold   *float64    `json:"thresholdValue"`
	ActualValue *float64    `json:"actualValue"`

	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}
