package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2db/nl2db/pkg/models"
)

func entry(question, sqlText string) models.HistoryEntry {
	return models.HistoryEntry{NaturalLanguage: question, SQL: sqlText}
}

func TestSession_EvictsOldest(t *testing.T) {
	s := NewSession(3, 0)
	for i := 1; i <= 5; i++ {
		s.Append(entry(fmt.Sprintf("q%d", i), ""))
	}

	require.Equal(t, 3, s.Len())
	history := s.History(0)
	assert.Equal(t, "q3", history[0].NaturalLanguage)
	assert.Equal(t, "q5", history[2].NaturalLanguage)
}

func TestSession_HistoryLimit(t *testing.T) {
	s := NewSession(10, 0)
	for i := 1; i <= 4; i++ {
		s.Append(entry(fmt.Sprintf("q%d", i), ""))
	}

	recent := s.History(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "q3", recent[0].NaturalLanguage)
	assert.Equal(t, "q4", recent[1].NaturalLanguage)

	assert.Len(t, s.History(50), 4)

	// Returned slices are copies.
	recent[0].NaturalLanguage = "changed"
	assert.Equal(t, "q3", s.History(2)[0].NaturalLanguage)
}

func TestSession_DefaultSize(t *testing.T) {
	s := NewSession(0, 0)
	for i := 0; i < DefaultHistorySize+5; i++ {
		s.Append(entry("q", ""))
	}
	assert.Equal(t, DefaultHistorySize, s.Len())
}

func TestSession_LastAndLastSQL(t *testing.T) {
	s := NewSession(10, 0)

	_, ok := s.Last()
	assert.False(t, ok)
	_, ok = s.LastSQL()
	assert.False(t, ok)

	s.Append(entry("count cameras", "SELECT COUNT(*) FROM ods_camera_info_f"))
	s.Append(entry("delete cameras", ""))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "delete cameras", last.NaturalLanguage)

	sqlText, ok := s.LastSQL()
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(*) FROM ods_camera_info_f", sqlText)
}

func TestSession_SQLCache(t *testing.T) {
	s := NewSession(10, 2)

	s.CacheSQL("How many cameras?", "SELECT 1")
	got, ok := s.CachedSQL("how  many CAMERAS")
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", got)

	s.CacheSQL("list fleets", "SELECT 2")
	s.CacheSQL("how many cameras", "SELECT 3") // update keeps position
	s.CacheSQL("count devices", "SELECT 4")

	_, ok = s.CachedSQL("how many cameras")
	assert.False(t, ok, "oldest entry should be evicted")
	got, ok = s.CachedSQL("list fleets.")
	require.True(t, ok)
	assert.Equal(t, "SELECT 2", got)
	_, ok = s.CachedSQL("count devices")
	assert.True(t, ok)
}

func TestSession_CacheDisabled(t *testing.T) {
	s := NewSession(10, 0)
	s.CacheSQL("how many cameras", "SELECT 1")
	_, ok := s.CachedSQL("how many cameras")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How many cameras?", "how many cameras"},
		{"  how   many\tcameras  ", "how many cameras"},
		{"List fleets!!", "list fleets"},
		{"version 1.2", "version 1.2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cacheKey(tt.in), tt.in)
	}
}
