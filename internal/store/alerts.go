package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleetwatch/internal/domain"
)

const alertSelect = `
	SELECT id, vehicle_id, vehicle_type, alert_type, status, message,
	       threshold_value, actual_value, created_at, acknowledged_at, resolved_at
	FROM alerts`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var vType, aType, status string
	err := row.Scan(&a.ID, &a.VehicleID, &vType, &aType, &status, &a.Message,
		&a.Threshold, &a.ActualValue, &a.CreatedAt, &a.AcknowledgedAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}
	a.VehicleType = domain.VehicleType(vType)
	a.AlertType = domain.AlertType(aType)
	a.Status = domain.AlertStatus(status)
	return &a, nil
}

func scanAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ActiveAlert returns the ACTIVE alert for a (vehicle, type) pair, (nil, nil)
// if none.
func (s *PostgresStore) ActiveAlert(ctx context.Context, vehicleID string, t domain.AlertType) (*domain.Alert, error) {
	row := s.pool.QueryRow(ctx, alertSelect+`
		WHERE vehicle_id = $1 AND alert_type = $2 AND status = $3
		LIMIT 1`, vehicleID, string(t), string(domain.AlertActive))
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active alert: %w", err)
	}
	return a, nil
}

// SaveAlert inserts a new alert or updates the lifecycle fields of an
// existing one.
func (s *PostgresStore) SaveAlert(ctx context.Context, a *domain.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts
			(id, vehicle_id, vehicle_type, alert_type, status, message,
			 threshold_value, actual_value, created_at, acknowledged_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			acknowledged_at = EXCLUDED.acknowledged_at,
			resolved_at = EXCLUDED.resolved_at`,
		a.ID, a.VehicleID, string(a.VehicleType), string(a.AlertType), string(a.Status),
		a.Message, a.Threshold, a.ActualValue, a.CreatedAt, a.AcknowledgedAt, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID, err)
	}
	return nil
}

// AlertByID returns one alert, (nil, nil) if the id is unknown.
func (s *PostgresStore) AlertByID(ctx context.Context, id string) (*domain.Alert, error) {
	row := s.pool.QueryRow(ctx, alertSelect+` WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query alert by id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) AllAlerts(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, alertSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query all alerts: %w", err)
	}
	return scanAlerts(rows)
}

func (s *PostgresStore) AlertsByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, alertSelect+`
		WHERE status = $1 ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query alerts by status: %w", err)
	}
	return scanAlerts(rows)
}

func (s *PostgresStore) AlertsByVehicle(ctx context.Context, vehicleID string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, alertSelect+`
		WHERE vehicle_id = $1 ORDER BY created_at DESC`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query alerts by vehicle: %w", err)
	}
	return scanAlerts(rows)
}

func (s *PostgresStore) AlertsByVehicleType(ctx context.Context, t domain.VehicleType) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, alertSelect+`
		WHERE vehicle_type = $1 ORDER BY created_at DESC`, string(t))
	if err != nil {
		return nil, fmt.Errorf("query alerts by vehicle type: %w", err)
	}
	return scanAlerts(rows)
}

func (s *PostgresStore) CountAlertsByStatus(ctx context.Context, status domain.AlertStatus) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts by status: %w", err)
	}
	return count, nil
}
