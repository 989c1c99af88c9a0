package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/analytics"
	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// Ingestor is the handler behind the telemetry consumer: decode, validate,
// fold into the live aggregator, then fan out to the async pipeline stages.
type Ingestor struct {
	agg        *analytics.Aggregator
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewIngestor(agg *analytics.Aggregator, dispatcher *Dispatcher, log *zap.Logger) *Ingestor {
	return &Ingestor{agg: agg, dispatcher: dispatcher, log: log}
}

// Handle processes one raw record. Undecodable payloads surface an error for
// the consumer boundary to log; invalid samples are dropped silently (logged
// and counted, no dead-letter path, no retry).
func (i *Ingestor) Handle(payload []byte) error {
	var s domain.TelemetrySample
	if err := json.Unmarshal(payload, &s); err != nil {
		metrics.SamplesDropped.Add(1)
		return fmt.Errorf("decode telemetry record: %w", err)
	}
	s.ReceivedAt = time.Now().UTC()

	if !s.Validate() {
		metrics.SamplesDropped.Add(1)
		i.log.Warn("invalid telemetry sample dropped",
			zap.String("vehicle_id", s.VehicleID),
			zap.Time("timestamp", s.Timestamp))
		return nil
	}

	metrics.SamplesReceived.Add(1)
	i.agg.Ingest(&s)
	i.dispatcher.Dispatch(&s)
	metrics.SamplesProcessed.Add(1)
	return nil
}
