// Package pipeline moves validated samples from the transport to their three
// consumers: the raw store, the live-state mirror, and alert evaluation.
package pipeline

import (
	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
)

// Dispatcher fans one sample out to the three processing channels. Sends
// never block: a full channel drops the sample for that path and counts it.
type Dispatcher struct {
	DBChan    chan *domain.TelemetrySample
	StateChan chan *domain.TelemetrySample
	AlertChan chan *domain.TelemetrySample
}

func NewDispatcher(dbSize, stateSize, alertSize int) *Dispatcher {
	return &Dispatcher{
		DBChan:    make(chan *domain.TelemetrySample, dbSize),
		StateChan: make(chan *domain.TelemetrySample, stateSize),
		AlertChan: make(chan *domain.TelemetrySample, alertSize),
	}
}

func (d *Dispatcher) Dispatch(s *domain.TelemetrySample) {
	select {
	case d.DBChan <- s:
	default:
		metrics.DBChannelDrops.Add(1)
	}

	select {
	case d.StateChan <- s:
	default:
		metrics.StateChannelDrops.Add(1)
	}

	select {
	case d.AlertChan <- s:
	default:
		metrics.AlertChannelDrops.Add(1)
	}
}
