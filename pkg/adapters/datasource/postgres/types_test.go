package postgres

import "testing"

func TestPgTypeNameFromOID(t *testing.T) {
	tests := []struct {
		oid  uint32
		want string
	}{
		{16, "BOOL"},
		{20, "INT8"},
		{1043, "VARCHAR"},
		{1114, "TIMESTAMP"},
		{1700, "NUMERIC"},
		{99999, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := pgTypeNameFromOID(tt.oid); got != tt.want {
			t.Errorf("pgTypeNameFromOID(%d) = %q, want %q", tt.oid, got, tt.want)
		}
	}
}
