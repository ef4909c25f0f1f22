package audit

import (
	"path/filepath"
	"testing"

	"admin-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SettingsChange{}))
	return NewRecorder(db)
}

func TestRecordAndRecent(t *testing.T) {
	r := testRecorder(t)

	require.NoError(t, r.Record("sso", "admin", []string{"max_budget", "user_role"}))
	require.NoError(t, r.Record("logging", "admin", []string{"langfuse_enabled"}))

	changes, err := r.Recent(10)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	// Newest first.
	assert.Equal(t, "logging", changes[0].Panel)
	assert.Equal(t, "sso", changes[1].Panel)
	assert.Equal(t, "max_budget,user_role", changes[1].ChangedKeys)
	assert.NotEmpty(t, changes[0].ID)
}

func TestRecentForPanel(t *testing.T) {
	r := testRecorder(t)

	require.NoError(t, r.Record("sso", "admin", []string{"max_budget"}))
	require.NoError(t, r.Record("discounts", "admin", []string{"discount"}))

	changes, err := r.RecentForPanel("discounts", 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "discounts", changes[0].Panel)
}

func TestRecentDefaultLimit(t *testing.T) {
	r := testRecorder(t)
	require.NoError(t, r.Record("sso", "admin", nil))

	changes, err := r.Recent(0)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}
