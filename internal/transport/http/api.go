// Package http exposes the query surface: live analytics snapshots,
// historical rollups, raw telemetry, and the alert lifecycle operations.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/alerts"
	"fleetwatch/internal/analytics"
	"fleetwatch/internal/domain"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/rollup"
)

// RawSampleStore serves raw telemetry range reads.
type RawSampleStore interface {
	SamplesForVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]domain.TelemetrySample, error)
}

// RollupReader serves the persisted-rollup reads behind the historical
// endpoints.
type RollupReader interface {
	rollup.HistoryStore
	VehicleRollup(ctx context.Context, vehicleID string, date time.Time) ([]domain.DailyVehicleRollup, error)
}

type Server struct {
	agg       *analytics.Aggregator
	lifecycle *alerts.Lifecycle
	scheduler *rollup.Scheduler
	history   RollupReader
	samples   RawSampleStore
	log       *zap.Logger
}

func NewServer(
	agg *analytics.Aggregator,
	lifecycle *alerts.Lifecycle,
	scheduler *rollup.Scheduler,
	history RollupReader,
	samples RawSampleStore,
	log *zap.Logger,
) *Server {
	return &Server{
		agg:       agg,
		lifecycle: lifecycle,
		scheduler: scheduler,
		history:   history,
		samples:   samples,
		log:       log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/analytics/fleet", s.handleFleet)
	mux.HandleFunc("GET /api/analytics/vehicles", s.handleAllVehicles)
	mux.HandleFunc("GET /api/analytics/vehicles/{id}", s.handleVehicle)
	mux.HandleFunc("GET /api/analytics/vehicles/type/{type}", s.handleVehiclesByType)
	mux.HandleFunc("GET /api/analytics/historical", s.handleHistorical)
	mux.HandleFunc("GET /api/analytics/vehicles/{id}/daily", s.handleVehicleDaily)
	mux.HandleFunc("POST /api/analytics/aggregate", s.handleAggregate)

	mux.HandleFunc("GET /api/alerts", s.handleAllAlerts)
	mux.HandleFunc("GET /api/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("GET /api/alerts/active/count", s.handleActiveAlertCount)
	mux.HandleFunc("GET /api/alerts/vehicle/{id}", s.handleAlertsByVehicle)
	mux.HandleFunc("GET /api/alerts/type/{type}", s.handleAlertsByType)
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", s.handleAcknowledge)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", s.handleResolve)

	mux.HandleFunc("GET /api/telemetry/vehicles/{id}", s.handleRawTelemetry)

	mux.HandleFunc("GET /metrics", metrics.HandleMetrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return RequestLogger(s.log, mux)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.Fleet())
}

func (s *Server) handleAllVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.AllVehicles())
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.agg.Vehicle(r.PathValue("id"))
	if errors.Is(err, analytics.ErrVehicleNotFound) {
		writeError(w, http.StatusNotFound, "vehicle not tracked")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleVehiclesByType(w http.ResponseWriter, r *http.Request) {
	t := domain.VehicleType(r.PathValue("type"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "unknown vehicle type")
		return
	}
	writeJSON(w, http.StatusOK, s.agg.VehiclesByType(t))
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	from, ok := parseDate(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseDate(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	h, err := rollup.History(r.Context(), s.history, from, to)
	if err != nil {
		s.log.Error("historical metrics query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "historical query failed")
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleVehicleDaily(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	rows, err := s.history.VehicleRollup(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.log.Error("vehicle rollup query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "rollup query failed")
		return
	}
	if rows == nil {
		rows = []domain.DailyVehicleRollup{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	if err := s.scheduler.Trigger(r.Context(), date); err != nil {
		s.log.Error("manual aggregation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "completed",
		"date":   date.Format("2006-01-02"),
	})
}

func (s *Server) handleAllAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeAlerts(w)(s.lifecycle.AllAlerts(r.Context()))
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeAlerts(w)(s.lifecycle.ActiveAlerts(r.Context()))
}

func (s *Server) handleActiveAlertCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.lifecycle.ActiveAlertCount(r.Context())
	if err != nil {
		s.log.Error("alert count query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "alert query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"activeAlerts": count})
}

func (s *Server) handleAlertsByVehicle(w http.ResponseWriter, r *http.Request) {
	s.writeAlerts(w)(s.lifecycle.AlertsByVehicle(r.Context(), r.PathValue("id")))
}

func (s *Server) handleAlertsByType(w http.ResponseWriter, r *http.Request) {
	t := domain.VehicleType(r.PathValue("type"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "unknown vehicle type")
		return
	}
	s.writeAlerts(w)(s.lifecycle.AlertsByVehicleType(r.Context(), t))
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.lifecycle.Acknowledge)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.lifecycle.Resolve)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*domain.Alert, error)) {
	alert, err := op(r.Context(), r.PathValue("id"))
	if errors.Is(err, alerts.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		s.log.Error("alert transition failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "alert update failed")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleRawTelemetry(w http.ResponseWriter, r *http.Request) {
	from, ok := parseDate(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseDate(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	samples, err := s.samples.SamplesForVehicle(r.Context(), r.PathValue("id"), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.log.Error("raw telemetry query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "telemetry query failed")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) writeAlerts(w http.ResponseWriter) func([]domain.Alert, error) {
	return func(list []domain.Alert, err error) {
		if err != nil {
			s.log.Error("alert query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "alert query failed")
			return
		}
		if list == nil {
			list = []domain.Alert{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected date in YYYY-MM-DD form")
		return time.Time{}, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
