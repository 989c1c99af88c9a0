package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"fleetwatch/internal/alerts"
	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// AlertPublisher emits candidate records to the outbound topic, keyed by
// vehicle id.
type AlertPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// AlertWorker drains the alert channel: evaluates each sample against the
// rule table, emits every candidate on the outbound topic (fire-and-forget,
// failures logged and never retried), and runs it through the lifecycle.
type AlertWorker struct {
	ch        <-chan *domain.TelemetrySample
	lifecycle *alerts.Lifecycle
	publisher AlertPublisher
	log       *zap.Logger
}

func NewAlertWorker(ch <-chan *domain.TelemetrySample, lifecycle *alerts.Lifecycle, publisher AlertPublisher, log *zap.Logger) *AlertWorker {
	return &AlertWorker{ch: ch, lifecycle: lifecycle, publisher: publisher, log: log}
}

func (w *AlertWorker) Run(ctx context.Context) {
	for {
		select {
		case s, ok := <-w.ch:
			if !ok {
				return
			}
			w.process(ctx, s)

		case <-ctx.Done():
			return
		}
	}
}

func (w *AlertWorker) process(ctx context.Context, s *domain.TelemetrySample) {
	for _, cand := range alerts.Evaluate(s) {
		w.publish(ctx, &cand)

		if _, err := w.lifecycle.Process(ctx, &cand); err != nil {
			w.log.Error("alert processing failed",
				zap.String("vehicle_id", cand.VehicleID),
				zap.String("alert_type", string(cand.AlertType)),
				zap.Error(err))
		}
	}
}

func (w *AlertWorker) publish(ctx context.Context, cand *domain.AlertCandidate) {
	if w.publisher == nil {
		return
	}
	payload, err := json.Marshal(cand)
	if err != nil {
		w.log.Error("alert candidate marshal failed", zap.Error(err))
		return
	}
	if err := w.publisher.Publish(ctx, cand.VehicleID, payload); err != nil {
		metrics.AlertPublishFailures.Add(1)
		w.log.Error("alert publish failed",
			zap.String("vehicle_id", cand.VehicleID),
			zap.String("alert_type", string(cand.AlertType)),
			zap.Error(err))
	}
}
