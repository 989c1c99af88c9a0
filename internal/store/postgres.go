// Package store implements the persistent collaborators: the Postgres store
// for raw telemetry, rollups and alerts, and the Redis live-state mirror.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetwatch/internal/config"
	"fleetwatch/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var telemetryColumns = []string{
	"time_stamp",
	"received_at",
	"vehicle_id",
	"vehicle_type",
	"vehicle_status",
	"latitude",
	"longitude",
	"speed",
	"fuel_level",
	"engine_temp",
	"battery_voltage",
	"emergency_lights_active",
}

// BatchInsert appends a batch of raw samples via COPY.
func (s *PostgresStore) BatchInsert(ctx context.Context, samples []*domain.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(samples))
	for i, m := range samples {
		rows[i] = []interface{}{
			m.Timestamp,
			m.ReceivedAt,
			m.VehicleID,
			string(m.VehicleType),
			string(m.VehicleStatus),
			m.Latitude,
			m.Longitude,
			m.Speed,
			m.FuelLevel,
			m.EngineTemp,
			m.BatteryVoltage,
			m.EmergencyLightsActive,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"vehicle_telemetry"},
		telemetryColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(samples), err)
	}
	return nil
}

const sampleSelect = `
	SELECT time_stamp, vehicle_id, vehicle_type, vehicle_status,
	       latitude, longitude, speed, fuel_level, engine_temp,
	       battery_voltage, emergency_lights_active
	FROM vehicle_telemetry`

func scanSamples(rows pgx.Rows) ([]domain.TelemetrySample, error) {
	defer rows.Close()

	var out []domain.TelemetrySample
	for rows.Next() {
		var m domain.TelemetrySample
		var vType, vStatus string
		err := rows.Scan(
			&m.Timestamp, &m.VehicleID, &vType, &vStatus,
			&m.Latitude, &m.Longitude, &m.Speed, &m.FuelLevel, &m.EngineTemp,
			&m.BatteryVoltage, &m.EmergencyLightsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("scan telemetry row: %w", err)
		}
		m.VehicleType = domain.VehicleType(vType)
		m.VehicleStatus = domain.VehicleStatus(vStatus)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestSamples returns the single most recent sample per distinct vehicle.
func (s *PostgresStore) LatestSamples(ctx context.Context) ([]domain.TelemetrySample, error) {
	rows, err := s.pool.Query(ctx, sampleSelect+`
		WHERE (vehicle_id, time_stamp) IN (
			SELECT vehicle_id, MAX(time_stamp)
			FROM vehicle_telemetry
			GROUP BY vehicle_id
		)
		ORDER BY vehicle_id`)
	if err != nil {
		return nil, fmt.Errorf("query latest samples: %w", err)
	}
	return scanSamples(rows)
}

// SamplesInRange returns samples with from <= time_stamp < to for all
// vehicles, ordered by vehicle then time.
func (s *PostgresStore) SamplesInRange(ctx context.Context, from, to time.Time) ([]domain.TelemetrySample, error) {
	rows, err := s.pool.Query(ctx, sampleSelect+`
		WHERE time_stamp >= $1 AND time_stamp < $2
		ORDER BY vehicle_id, time_stamp`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query samples in range: %w", err)
	}
	return scanSamples(rows)
}

// SamplesForVehicle is SamplesInRange restricted to one vehicle.
func (s *PostgresStore) SamplesForVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]domain.TelemetrySample, error) {
	rows, err := s.pool.Query(ctx, sampleSelect+`
		WHERE vehicle_id = $1 AND time_stamp >= $2 AND time_stamp < $3
		ORDER BY time_stamp`, vehicleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query samples for vehicle %s: %w", vehicleID, err)
	}
	return scanSamples(rows)
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	start := domain.Day(date)
	return start, start.AddDate(0, 0, 1)
}

func (s *PostgresStore) DistinctVehicleCount(ctx context.Context, date time.Time) (int, error) {
	start, end := dayBounds(date)
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT vehicle_id)
		FROM vehicle_telemetry
		WHERE time_stamp >= $1 AND time_stamp < $2`, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct vehicles: %w", err)
	}
	return count, nil
}

// AverageSpeedForDate averages speed over the date's samples, restricted to
// moving states so stationary idling doesn't drag the figure down.
func (s *PostgresStore) AverageSpeedForDate(ctx context.Context, date time.Time) (float64, error) {
	start, end := dayBounds(date)
	var avg float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(speed), 0)
		FROM vehicle_telemetry
		WHERE time_stamp >= $1 AND time_stamp < $2
		  AND vehicle_status IN ('EN_ROUTE', 'RETURNING')`, start, end).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average speed for date: %w", err)
	}
	return avg, nil
}

// AverageSpeedByStatus averages speed per status over the date's samples,
// all states included.
func (s *PostgresStore) AverageSpeedByStatus(ctx context.Context, date time.Time) (map[domain.VehicleStatus]float64, error) {
	start, end := dayBounds(date)
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_status, COALESCE(AVG(speed), 0)
		FROM vehicle_telemetry
		WHERE time_stamp >= $1 AND time_stamp < $2
		GROUP BY vehicle_status`, start, end)
	if err != nil {
		return nil, fmt.Errorf("average speed by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.VehicleStatus]float64)
	for rows.Next() {
		var status string
		var avg float64
		if err := rows.Scan(&status, &avg); err != nil {
			return nil, fmt.Errorf("scan speed by status: %w", err)
		}
		out[domain.VehicleStatus(status)] = avg
	}
	return out, rows.Err()
}

// AverageSpeedByType averages speed per vehicle type over the date's moving
// samples.
func (s *PostgresStore) AverageSpeedByType(ctx context.Context, date time.Time) (map[domain.VehicleType]float64, error) {
	start, end := dayBounds(date)
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_type, COALESCE(AVG(speed), 0)
		FROM vehicle_telemetry
		WHERE time_stamp >= $1 AND time_stamp < $2
		  AND vehicle_status IN ('EN_ROUTE', 'RETURNING')
		GROUP BY vehicle_type`, start, end)
	if err != nil {
		return nil, fmt.Errorf("average speed by type: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.VehicleType]float64)
	for rows.Next() {
		var vType string
		var avg float64
		if err := rows.Scan(&vType, &avg); err != nil {
			return nil, fmt.Errorf("scan speed by type: %w", err)
		}
		out[domain.VehicleType(vType)] = avg
	}
	return out, rows.Err()
}

// VehicleDayGroups returns the date's moving samples grouped by
// (vehicle, status, type) with speed and fuel statistics per group.
func (s *PostgresStore) VehicleDayGroups(ctx context.Context, date time.Time) ([]domain.VehicleDayGroup, error) {
	start, end := dayBounds(date)
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_id, vehicle_status, vehicle_type,
		       COALESCE(AVG(speed), 0), COALESCE(MAX(speed), 0), COALESCE(MIN(speed), 0),
		       COALESCE(AVG(fuel_level), 0), COALESCE(MIN(fuel_level), 0),
		       COUNT(*)
		FROM vehicle_telemetry
		WHERE time_stamp >= $1 AND time_stamp < $2
		  AND vehicle_status IN ('EN_ROUTE', 'RETURNING')
		GROUP BY vehicle_id, vehicle_status, vehicle_type
		ORDER BY vehicle_id, vehicle_status`, start, end)
	if err != nil {
		return nil, fmt.Errorf("vehicle day groups: %w", err)
	}
	defer rows.Close()

	var out []domain.VehicleDayGroup
	for rows.Next() {
		var g domain.VehicleDayGroup
		var status, vType string
		err := rows.Scan(&g.VehicleID, &status, &vType,
			&g.AverageSpeed, &g.MaxSpeed, &g.MinSpeed,
			&g.AverageFuelLevel, &g.MinFuelLevel, &g.SampleCount)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle day group: %w", err)
		}
		g.VehicleStatus = domain.VehicleStatus(status)
		g.VehicleType = domain.VehicleType(vType)
		out = append(out, g)
	}
	return out, rows.Err()
}

// FleetRollup returns the fleet rollup for a date, (nil, nil) if none.
func (s *PostgresStore) FleetRollup(ctx context.Context, date time.Time) (*domain.DailyFleetRollup, error) {
	var r domain.DailyFleetRollup
	var byStatus, byType []byte
	err := s.pool.QueryRow(ctx, `
		SELECT date, total_vehicles, fleet_average_speed, total_fuel_consumed,
		       avg_speed_by_status, avg_speed_by_type
		FROM daily_fleet_metrics
		WHERE date = $1`, domain.Day(date)).Scan(
		&r.Date, &r.TotalVehicles, &r.FleetAverageSpeed, &r.TotalFuelConsumed,
		&byStatus, &byType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fleet rollup: %w", err)
	}

	if err := json.Unmarshal(byStatus, &r.SpeedByStatus); err != nil {
		return nil, fmt.Errorf("decode speed by status: %w", err)
	}
	if err := json.Unmarshal(byType, &r.SpeedByType); err != nil {
		return nil, fmt.Errorf("decode speed by type: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) SaveFleetRollup(ctx context.Context, r *domain.DailyFleetRollup) error {
	byStatus, err := json.Marshal(r.SpeedByStatus)
	if err != nil {
		return fmt.Errorf("encode speed by status: %w", err)
	}
	byType, err := json.Marshal(r.SpeedByType)
	if err != nil {
		return fmt.Errorf("encode speed by type: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_fleet_metrics
			(date, total_vehicles, fleet_average_speed, total_fuel_consumed,
			 avg_speed_by_status, avg_speed_by_type)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		domain.Day(r.Date), r.TotalVehicles, r.FleetAverageSpeed, r.TotalFuelConsumed,
		byStatus, byType)
	if err != nil {
		return fmt.Errorf("insert fleet rollup: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveVehicleRollup(ctx context.Context, r *domain.DailyVehicleRollup) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_vehicle_metrics
			(vehicle_id, date, vehicle_status, vehicle_type,
			 average_speed, max_speed, min_speed,
			 average_fuel_level, min_fuel_level, fuel_consumed,
			 total_telemetry_points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.VehicleID, domain.Day(r.Date), string(r.VehicleStatus), string(r.VehicleType),
		r.AverageSpeed, r.MaxSpeed, r.MinSpeed,
		r.AverageFuelLevel, r.MinFuelLevel, r.FuelConsumed,
		r.SampleCount)
	if err != nil {
		return fmt.Errorf("insert vehicle rollup: %w", err)
	}
	return nil
}

// VehicleRollup returns one vehicle's rollup rows for a date, empty if none.
func (s *PostgresStore) VehicleRollup(ctx context.Context, vehicleID string, date time.Time) ([]domain.DailyVehicleRollup, error) {
	start := domain.Day(date)
	return s.queryVehicleRollups(ctx, `
		SELECT vehicle_id, date, vehicle_status, vehicle_type,
		       average_speed, max_speed, min_speed,
		       average_fuel_level, min_fuel_level, fuel_consumed,
		       total_telemetry_points
		FROM daily_vehicle_metrics
		WHERE vehicle_id = $1 AND date = $2
		ORDER BY vehicle_status`, vehicleID, start)
}

func (s *PostgresStore) FleetRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyFleetRollup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, total_vehicles, fleet_average_speed, total_fuel_consumed,
		       avg_speed_by_status, avg_speed_by_type
		FROM daily_fleet_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date`, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query fleet rollups in range: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyFleetRollup
	for rows.Next() {
		var r domain.DailyFleetRollup
		var byStatus, byType []byte
		err := rows.Scan(&r.Date, &r.TotalVehicles, &r.FleetAverageSpeed, &r.TotalFuelConsumed,
			&byStatus, &byType)
		if err != nil {
			return nil, fmt.Errorf("scan fleet rollup: %w", err)
		}
		if err := json.Unmarshal(byStatus, &r.SpeedByStatus); err != nil {
			return nil, fmt.Errorf("decode speed by status: %w", err)
		}
		if err := json.Unmarshal(byType, &r.SpeedByType); err != nil {
			return nil, fmt.Errorf("decode speed by type: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) VehicleRollupsInRange(ctx context.Context, from, to time.Time) ([]domain.DailyVehicleRollup, error) {
	return s.queryVehicleRollups(ctx, `
		SELECT vehicle_id, date, vehicle_status, vehicle_type,
		       average_speed, max_speed, min_speed,
		       average_fuel_level, min_fuel_level, fuel_consumed,
		       total_telemetry_points
		FROM daily_vehicle_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY vehicle_id, date`, domain.Day(from), domain.Day(to))
}

func (s *PostgresStore) queryVehicleRollups(ctx context.Context, query string, args ...interface{}) ([]domain.DailyVehicleRollup, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicle rollups: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyVehicleRollup
	for rows.Next() {
		var r domain.DailyVehicleRollup
		var status, vType string
		err := rows.Scan(&r.VehicleID, &r.Date, &status, &vType,
			&r.AverageSpeed, &r.MaxSpeed, &r.MinSpeed,
			&r.AverageFuelLevel, &r.MinFuelLevel, &r.FuelConsumed,
			&r.SampleCount)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle rollup: %w", err)
		}
		r.VehicleStatus = domain.VehicleStatus(status)
		r.VehicleType = domain.VehicleType(vType)
		out = append(out, r)
	}
	return out, rows.Err()
}
