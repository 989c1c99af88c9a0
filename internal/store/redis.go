package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetwatch/internal/config"
	"fleetwatch/internal/domain"
)

// RedisStore mirrors the latest state of every vehicle into Redis for the
// dashboard: a short-TTL hash per vehicle, a geo index, and a pub/sub feed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

const vehicleStateTTL = 30 * time.Second

// PipelineStateUpdate writes one sample's view of the vehicle in a single
// round trip: state hash, TTL refresh, geo position, and a publish for live
// subscribers.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, s *domain.TelemetrySample) error {
	stateData := map[string]interface{}{
		"vehicle_id":     s.VehicleID,
		"vehicle_type":   string(s.VehicleType),
		"vehicle_status": string(s.VehicleStatus),
		"timestamp":      s.Timestamp.Unix(),
		"received_at":    s.ReceivedAt.Unix(),
	}
	if s.Speed != nil {
		stateData["speed"] = *s.Speed
	}
	if s.FuelLevel != nil {
		stateData["fuel_level"] = *s.FuelLevel
	}
	if s.EngineTemp != nil {
		stateData["engine_temp"] = *s.EngineTemp
	}
	if s.BatteryVoltage != nil {
		stateData["battery_voltage"] = *s.BatteryVoltage
	}
	if s.EmergencyLightsActive != nil {
		stateData["emergency_lights"] = *s.EmergencyLightsActive
	}
	if s.Latitude != nil && s.Longitude != nil {
		stateData["lat"] = *s.Latitude
		stateData["lng"] = *s.Longitude
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", s.VehicleID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, vehicleStateTTL)
	if s.Latitude != nil && s.Longitude != nil {
		pipe.GeoAdd(ctx, "fleet:geo", &redis.GeoLocation{
			Name:      s.VehicleID,
			Longitude: *s.Longitude,
			Latitude:  *s.Latitude,
		})
	}
	pipe.Publish(ctx, "fleet:telemetry", pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
