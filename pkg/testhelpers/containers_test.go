//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_FixtureSeeded(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	var tableCount int
	err := testDB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM pg_tables WHERE schemaname = 'public'").
		Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}
	if tableCount != 5 {
		t.Errorf("expected 5 tables in fixture schema, got %d", tableCount)
	}

	tests := []struct {
		table    string
		expected int
	}{
		{"fleet_info", 3},
		{"ods_camera_info_f", 4},
		{"fact_data_usage_volume_daily", 3},
	}
	for _, tt := range tests {
		var count int
		if err := testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count); err != nil {
			t.Fatalf("failed to count %s: %v", tt.table, err)
		}
		if count != tt.expected {
			t.Errorf("%s: expected %d rows, got %d", tt.table, tt.expected, count)
		}
	}
}
