// Package testhelpers provides shared fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nl2db/nl2db/pkg/config"
)

// PostgresImage is the image used to stand in for Redshift in tests.
const PostgresImage = "postgres:16-alpine"

const (
	testUser     = "nl2db"
	testPassword = "test_password"
	testDatabase = "test_data"
)

// FixtureSchema mirrors a slice of the fleet telemetry warehouse.
// tmp_camera_backup and fleet_info_20240101 are non-core tables that the
// catalog must filter out.
const FixtureSchema = `
CREATE TABLE fleet_info (
	fleet_id   INTEGER PRIMARY KEY,
	fleet_name VARCHAR(256) NOT NULL,
	region     VARCHAR(64),
	createtime TIMESTAMP NOT NULL
);

CREATE TABLE ods_camera_info_f (
	camera_id   BIGINT PRIMARY KEY,
	camera_name VARCHAR(256),
	fleet_id    INTEGER,
	status      VARCHAR(32),
	createtime  TIMESTAMP,
	etl_load_ts TIMESTAMP
);

CREATE TABLE fact_data_usage_volume_daily (
	device_id   VARCHAR(64) NOT NULL,
	data_usage  NUMERIC(18, 2),
	report_date DATE NOT NULL
);

CREATE TABLE tmp_camera_backup (camera_id BIGINT);
CREATE TABLE fleet_info_20240101 (fleet_id INTEGER);

INSERT INTO fleet_info VALUES
	(1, 'Acme Logistics', 'us-east', NOW() - INTERVAL '2 days'),
	(2, 'Depot 7 Haulage', 'us-west', NOW() - INTERVAL '40 days'),
	(3, 'Northwind', 'eu-central', NOW() - INTERVAL '400 days');

INSERT INTO ods_camera_info_f VALUES
	(100, 'Depot 7 North Gate', 2, 'online', NOW() - INTERVAL '1 day', NOW()),
	(101, 'Depot 7 South Gate', 2, 'offline', NOW() - INTERVAL '3 days', NOW()),
	(102, 'Acme Dock Cam', 1, 'online', NOW() - INTERVAL '20 days', NOW()),
	(103, 'Northwind Yard', 3, 'maintenance', NOW() - INTERVAL '90 days', NOW());

INSERT INTO fact_data_usage_volume_daily VALUES
	('dev-1', 512.50, CURRENT_DATE - 1),
	('dev-2', 128.00, CURRENT_DATE - 1),
	('dev-1', 640.25, CURRENT_DATE - 2);
`

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Config    config.DatabaseConfig
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once, seeded with FixtureSchema, and reused
// across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// The server restarts once after initdb; wait for the second "ready".
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := config.DatabaseConfig{
		Driver:         "postgres",
		Host:           host,
		Port:           port.Int(),
		Database:       testDatabase,
		User:           testUser,
		Password:       testPassword,
		Schema:         "public",
		SSLMode:        "disable",
		MaxConnections: 4,
		QueryTimeout:   10 * time.Second,
	}
	connStr := cfg.ConnectionString()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	if _, err := pool.Exec(ctx, FixtureSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Config:    cfg,
	}, nil
}
