package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleetwatch"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1TelemetryTable(ctx, conn)
	step2AlertsTable(ctx, conn)
	step3RollupTables(ctx, conn)
	step4Indexes(ctx, conn)
	step5Verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

func step1TelemetryTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: vehicle_telemetry table ─────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_telemetry (

			-- Device clock vs server receipt time; device clocks drift
			time_stamp              TIMESTAMPTZ      NOT NULL,
			received_at             TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			vehicle_id              TEXT             NOT NULL,
			vehicle_type            TEXT             NOT NULL,
			vehicle_status          TEXT             NOT NULL,

			latitude                DOUBLE PRECISION NOT NULL,
			longitude               DOUBLE PRECISION NOT NULL,

			-- Sensor readings; NULL means the device omitted the field
			speed                   DOUBLE PRECISION,
			fuel_level              DOUBLE PRECISION,
			engine_temp             DOUBLE PRECISION,
			battery_voltage         DOUBLE PRECISION,
			emergency_lights_active BOOLEAN
		);
	`, "vehicle_telemetry table created")
}

func step2AlertsTable(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: alerts table ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (

			-- UUID assigned by the service, not the database
			id               TEXT             PRIMARY KEY,

			vehicle_id       TEXT             NOT NULL,
			vehicle_type     TEXT             NOT NULL,
			alert_type       TEXT             NOT NULL,
			status           TEXT             NOT NULL,
			message          TEXT             NOT NULL,

			threshold_value  DOUBLE PRECISION,
			actual_value     DOUBLE PRECISION,

			created_at       TIMESTAMPTZ      NOT NULL,
			acknowledged_at  TIMESTAMPTZ,
			resolved_at      TIMESTAMPTZ,

			CONSTRAINT chk_alert_type CHECK (
				alert_type IN ('LOW_FUEL', 'HIGH_ENGINE_TEMP', 'LOW_BATTERY', 'EMERGENCY_STATUS_CHANGE')
			),

			CONSTRAINT chk_alert_status CHECK (
				status IN ('ACTIVE', 'ACKNOWLEDGED', 'RESOLVED')
			)
		);
	`, "alerts table created")
}

func step3RollupTables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: daily rollup tables ─────────────────")

	// One row per day; the UNIQUE constraint is the job's idempotence marker
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS daily_fleet_metrics (
			id                   BIGSERIAL        PRIMARY KEY,
			date                 DATE             NOT NULL UNIQUE,
			total_vehicles       INTEGER          NOT NULL,
			fleet_average_speed  DOUBLE PRECISION NOT NULL,
			total_fuel_consumed  DOUBLE PRECISION NOT NULL,
			avg_speed_by_status  JSONB            NOT NULL,
			avg_speed_by_type    JSONB            NOT NULL,
			created_at           TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "daily_fleet_metrics table created")

	// Multiple rows per (vehicle, day): one per status group
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS daily_vehicle_metrics (
			id                      BIGSERIAL        PRIMARY KEY,
			vehicle_id              TEXT             NOT NULL,
			date                    DATE             NOT NULL,
			vehicle_status          TEXT             NOT NULL,
			vehicle_type            TEXT             NOT NULL,
			average_speed           DOUBLE PRECISION NOT NULL,
			max_speed               DOUBLE PRECISION NOT NULL,
			min_speed               DOUBLE PRECISION NOT NULL,
			average_fuel_level      DOUBLE PRECISION NOT NULL,
			min_fuel_level          DOUBLE PRECISION NOT NULL,
			fuel_consumed           DOUBLE PRECISION NOT NULL,
			total_telemetry_points  BIGINT           NOT NULL,
			created_at              TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "daily_vehicle_metrics table created")
}

func step4Indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_telemetry_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_telemetry_vehicle_time
				  ON vehicle_telemetry (vehicle_id, time_stamp DESC);`,
			why: "query: telemetry history and latest sample per vehicle",
		},
		{
			name: "idx_telemetry_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_telemetry_time
				  ON vehicle_telemetry (time_stamp);`,
			why: "query: daily rollup day windows",
		},
		{
			name: "idx_alerts_vehicle_type_status",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle_type_status
				  ON alerts (vehicle_id, alert_type, status);`,
			why: "query: active-alert dedup lookup",
		},
		{
			name: "idx_alerts_status",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_status
				  ON alerts (status, created_at DESC);`,
			why: "query: alerts by status",
		},
		{
			name: "idx_alerts_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle
				  ON alerts (vehicle_id, created_at DESC);`,
			why: "query: alerts for one vehicle",
		},
		{
			name: "idx_vehicle_metrics_vehicle_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicle_metrics_vehicle_date
				  ON daily_vehicle_metrics (vehicle_id, date);`,
			why: "query: per-vehicle history ranges",
		},
		{
			name: "idx_vehicle_metrics_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicle_metrics_date
				  ON daily_vehicle_metrics (date);`,
			why: "query: historical range scans",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

func step5Verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"vehicle_telemetry", "alerts", "daily_fleet_metrics", "daily_vehicle_metrics"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('vehicle_telemetry', 'alerts', 'daily_vehicle_metrics')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
