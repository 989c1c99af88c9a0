// Package alerts turns telemetry samples into deduplicated, lifecycle-tracked
// alerts: a pure rule evaluator and a persist-side state machine.
package alerts

import (
	"fmt"
	"time"

	"fleetwatch/internal/domain"
)

// Rule thresholds. Battery thresholds are per vehicle type, see
// domain.BatteryThreshold.
const (
	LowFuelThreshold        = 20.0
	HighEngineTempThreshold = 95.0
)

// Evaluate applies the fixed rule table to one sample and returns zero to
// four candidates. Pure function, no side effects.
//
// The emergency-lights rule fires on every sample with the flag set, not
// only on the activation edge; downstream dedup absorbs the repeats.
func Evaluate(s *domain.TelemetrySample) []domain.AlertCandidate {
	var out []domain.AlertCandidate

	if s.FuelLevel != nil && *s.FuelLevel < LowFuelThreshold {
		out = append(out, candidate(s, domain.AlertLowFuel,
			fmt.Sprintf("Low fuel: %.1f%%", *s.FuelLevel),
			ptr(LowFuelThreshold), s.FuelLevel))
	}

	if s.EngineTemp != nil && *s.EngineTemp > HighEngineTempThreshold {
		out = append(out, candidate(s, domain.AlertHighEngineTemp,
			fmt.Sprintf("High engine temp: %.1f°C", *s.EngineTemp),
			ptr(HighEngineTempThreshold), s.EngineTemp))
	}

	if s.BatteryVoltage != nil && s.VehicleType.Valid() {
		threshold := domain.BatteryThreshold(s.VehicleType)
		if *s.BatteryVoltage < threshold {
			out = append(out, candidate(s, domain.AlertLowBattery,
				fmt.Sprintf("Low battery: %.1fV (threshold: %.1fV)", *s.BatteryVoltage, threshold),
				ptr(threshold), s.BatteryVoltage))
		}
	}

	if s.EmergencyLightsActive != nil && *s.EmergencyLightsActive {
		out = append(out, candidate(s, domain.AlertEmergencyStatusChange,
			"Emergency lights activated", nil, nil))
	}

	return out
}

func candidate(s *domain.TelemetrySample, t domain.AlertType, msg string, threshold, actual *float64) domain.AlertCandidate {
	return domain.AlertCandidate{
		VehicleID:   s.VehicleID,
		VehicleType: s.VehicleType,
		AlertType:   t,
		Message:     msg,
		Threshold:   threshold,
		ActualValue: actual,
		Timestamp:   time.Now().UTC(),
	}
}

func ptr(v float64) *float64 { return &v }
