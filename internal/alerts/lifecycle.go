package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// ErrAlertNotFound is returned by Acknowledge and Resolve for an unknown id.
// Callers check it with errors.Is.
var ErrAlertNotFound = errors.New("alert not found")

// Store is the alert slice of the persistent store. Find methods return
// (nil, nil) when nothing matches.
type Store interface {
	ActiveAlert(ctx context.Context, vehicleID string, t domain.AlertType) (*domain.Alert, error)
	SaveAlert(ctx context.Context, a *domain.Alert) error
	AlertByID(ctx context.Context, id string) (*domain.Alert, error)
	AllAlerts(ctx context.Context) ([]domain.Alert, error)
	AlertsByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error)
	AlertsByVehicle(ctx context.Context, vehicleID string) ([]domain.Alert, error)
	AlertsByVehicleType(ctx context.Context, t domain.VehicleType) ([]domain.Alert, error)
	CountAlertsByStatus(ctx context.Context, status domain.AlertStatus) (int64, error)
}

// Lifecycle dedups candidates against ACTIVE rows and drives the
// ACTIVE -> ACKNOWLEDGED -> RESOLVED state machine.
type Lifecycle struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewLifecycle(store Store, log *zap.Logger) *Lifecycle {
	return &Lifecycle{store: store, log: log, now: time.Now}
}

// Process turns a candidate into a persisted alert. If an ACTIVE alert for
// the same (vehicle, type) exists it is returned unchanged; repeat
// candidates never refresh message or value. The check-then-insert is not
// atomic against the store: concurrent duplicates can race into two ACTIVE
// rows, which is accepted.
func (l *Lifecycle) Process(ctx context.Context, c *domain.AlertCandidate) (*domain.Alert, error) {
	existing, err := l.store.ActiveAlert(ctx, c.VehicleID, c.AlertType)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup for %s/%s: %w", c.VehicleID, c.AlertType, err)
	}
	if existing != nil {
		l.log.Debug("active alert already exists",
			zap.String("vehicle_id", c.VehicleID),
			zap.String("alert_type", string(c.AlertType)))
		return existing, nil
	}

	alert := &domain.Alert{
		ID:          uuid.NewString(),
		VehicleID:   c.VehicleID,
		VehicleType: c.VehicleType,
		AlertType:   c.AlertType,
		Status:      domain.AlertActive,
		Message:     c.Message,
		Threshold:   c.Threshold,
		ActualValue: c.ActualValue,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert for %s/%s: %w", c.VehicleID, c.AlertType, err)
	}

	metrics.AlertsCreated.Add(1)
	l.log.Info("new alert created",
		zap.String("alert_id", alert.ID),
		zap.String("vehicle_id", alert.VehicleID),
		zap.String("alert_type", string(alert.AlertType)))
	return alert, nil
}

// Acknowledge moves an alert to ACKNOWLEDGED and stamps acknowledgedAt.
func (l *Lifecycle) Acknowledge(ctx context.Context, alertID string) (*domain.Alert, error) {
	alert, err := l.load(ctx, alertID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	alert.Status = domain.AlertAcknowledged
	alert.AcknowledgedAt = &now
	if err := l.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save acknowledged alert %s: %w", alertID, err)
	}

	l.log.Info("alert acknowledged", zap.String("alert_id", alertID))
	return alert, nil
}

// Resolve moves an alert to RESOLVED and stamps resolvedAt. Resolving
// straight from ACTIVE is permitted, and nothing transitions out of
// RESOLVED: a later candidate for the same pair creates a brand-new alert
// because dedup only matches ACTIVE rows.
func (l *Lifecycle) Resolve(ctx context.Context, alertID string) (*domain.Alert, error) {
	alert, err := l.load(ctx, alertID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	alert.Status = domain.AlertResolved
	alert.ResolvedAt = &now
	if err := l.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save resolved alert %s: %w", alertID, err)
	}

	l.log.Info("alert resolved", zap.String("alert_id", alertID))
	return alert, nil
}

func (l *Lifecycle) load(ctx context.Context, alertID string) (*domain.Alert, error) {
	alert, err := l.store.AlertByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("load alert %s: %w", alertID, err)
	}
	if alert == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	return alert, nil
}

// Query passthroughs, all pure reads.

func (l *Lifecycle) AllAlerts(ctx context.Context) ([]domain.Alert, error) {
	return l.store.AllAlerts(ctx)
}

func (l *Lifecycle) ActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	return l.store.AlertsByStatus(ctx, domain.AlertActive)
}

func (l *Lifecycle) AlertsByVehicle(ctx context.Context, vehicleID string) ([]domain.Alert, error) {
	return l.store.AlertsByVehicle(ctx, vehicleID)
}

func (l *Lifecycle) AlertsByVehicleType(ctx context.Context, t domain.VehicleType) ([]domain.Alert, error) {
	return l.store.AlertsByVehicleType(ctx, t)
}

func (l *Lifecycle) ActiveAlertCount(ctx context.Context) (int64, error) {
	return l.store.CountAlertsByStatus(ctx, domain.AlertActive)
}
