package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/models"
)

const testAnnotations = `
restricted_tables:
  - fact_device_status_weekly
keywords:
  data usage:
    - fact_data_usage_volume_daily
defaults:
  - ods_camera_info_f
  - fleet_info
tables:
  fleet_info:
    description: Fleets
    keywords: [customer]
    columns:
      createtime: timestamp
  ods_trips_2023:
    description: Archived trips kept on purpose
`

func discovered() []models.TableDescriptor {
	return []models.TableDescriptor{
		{Name: "ods_camera_info_f", Columns: []models.ColumnDescriptor{
			{Name: "camera_id", DataType: "bigint"},
			{Name: "status", DataType: "character varying(32)"},
		}},
		{Name: "fleet_info", Columns: []models.ColumnDescriptor{
			{Name: "fleet_id", DataType: "integer"},
			{Name: "createtime", DataType: "bigint"},
		}},
		{Name: "fact_data_usage_volume_daily", Columns: []models.ColumnDescriptor{
			{Name: "data_usage", DataType: "numeric(18,2)"},
		}},
		{Name: "fact_device_status_weekly"},
		{Name: "ods_gps_f_temp"},
		{Name: "ods_trips_2023"},
	}
}

func TestParseAnnotations_RejectsUnknownRole(t *testing.T) {
	_, err := ParseAnnotations([]byte("tables:\n  t:\n    columns:\n      c: primary\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestDefaultAnnotations(t *testing.T) {
	a := DefaultAnnotations()
	assert.Contains(t, a.RestrictedTables, "fact_device_status_weekly")
	assert.Contains(t, a.Keywords["camera"], "ods_camera_info_f")
	assert.Equal(t, "ods_camera_info_f", a.Defaults[0])
}

func TestBuild(t *testing.T) {
	ann, err := ParseAnnotations([]byte(testAnnotations))
	require.NoError(t, err)

	c, err := Build(discovered(), ann)
	require.NoError(t, err)

	// temp table dropped, dated table kept because it is annotated
	_, ok := c.Table("ods_gps_f_temp")
	assert.False(t, ok)
	_, ok = c.Table("ods_trips_2023")
	assert.True(t, ok)

	_, ok = c.Table("fact_device_status_weekly")
	assert.False(t, ok)
	assert.Equal(t, []string{"fact_device_status_weekly"}, c.Restricted())

	camera, ok := c.Table("ods_camera_info_f")
	require.True(t, ok)
	assert.Equal(t, models.ColumnTypeInteger, camera.Columns[0].Type)
	assert.Equal(t, models.RoleIdentifier, camera.Columns[0].Role)
	assert.Equal(t, models.RoleStatus, camera.Columns[1].Role)
	assert.Contains(t, camera.Keywords, "camera")
	assert.Equal(t, 2, camera.Priority)

	fleet, ok := c.Table("fleet_info")
	require.True(t, ok)
	assert.Equal(t, "Fleets", fleet.Description)
	assert.Equal(t, models.RoleTimestamp, fleet.Columns[1].Role)
	assert.Contains(t, fleet.Keywords, "customer")
	assert.Contains(t, fleet.Keywords, "fleet")

	usage, ok := c.Table("fact_data_usage_volume_daily")
	require.True(t, ok)
	assert.Contains(t, usage.Keywords, "data usage")
	assert.Equal(t, models.RoleMeasure, usage.Columns[0].Role)
	assert.Equal(t, models.ColumnTypeDecimal, usage.Columns[0].Type)
}

type stubDiscoverer struct {
	tables []models.TableDescriptor
	err    error
	calls  int
}

func (s *stubDiscoverer) DiscoverTables(ctx context.Context, schema string) ([]models.TableDescriptor, error) {
	s.calls++
	return s.tables, s.err
}

const testSource = "redshift://analyst@warehouse:5439/prod"

func TestLoader_UsesCacheUntilRefresh(t *testing.T) {
	disc := &stubDiscoverer{tables: discovered()}
	cache := NewCache(filepath.Join(t.TempDir(), "cache", "schema.json"), time.Hour)
	loader := NewLoader(disc, cache, &Annotations{}, testSource, "public", zap.NewNop())

	c, err := loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, disc.calls)
	assert.Equal(t, 4, c.Len())

	_, err = loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, disc.calls, "second load should come from cache")

	_, err = loader.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, disc.calls)
}

func TestLoader_CacheIsPerDatabase(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "schema.json"), time.Hour)

	first := &stubDiscoverer{tables: discovered()}
	_, err := NewLoader(first, cache, &Annotations{}, testSource, "public", zap.NewNop()).Load(context.Background(), false)
	require.NoError(t, err)

	second := &stubDiscoverer{tables: discovered()[:1]}
	c, err := NewLoader(second, cache, &Annotations{}, "postgres://app@localhost:5432/staging", "public", zap.NewNop()).Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, second.calls, "another database must be discovered, not served from cache")
	assert.LessOrEqual(t, c.Len(), 1)
}

func TestLoader_DiscoveryError(t *testing.T) {
	disc := &stubDiscoverer{err: errors.New("connection refused")}
	loader := NewLoader(disc, nil, nil, testSource, "public", zap.NewNop())

	_, err := loader.Load(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCache_Expiry(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "schema.json"), time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Save(testSource, "public", discovered()))

	tables, ok, err := cache.Load(testSource, "public")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, tables, 6)

	_, ok, err = cache.Load(testSource, "analytics")
	require.NoError(t, err)
	assert.False(t, ok, "cache for another schema must miss")

	_, ok, err = cache.Load("redshift://analyst@other-host:5439/prod", "public")
	require.NoError(t, err)
	assert.False(t, ok, "cache for another database must miss")

	now = now.Add(2 * time.Hour)
	_, ok, err = cache.Load(testSource, "public")
	require.NoError(t, err)
	assert.False(t, ok, "expired cache must miss")
}

func TestCache_MissingFile(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "absent.json"), 0)

	tables, ok, err := cache.Load(testSource, "public")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tables)
}
