package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverCSV, cfg.Persistence.Driver)
	assert.Equal(t, 21, cfg.Policy.MaxCreditsPerSemester)
	assert.Equal(t, 1, cfg.Policy.MinCourseCredits)
	assert.Equal(t, 6, cfg.Policy.MaxCourseCredits)
	assert.Equal(t, 4.0, cfg.Policy.MaxGPA)
	assert.Equal(t, GPASemesterCalendar, cfg.Policy.GPASemesterMode)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PERSISTENCE_DRIVER", "SQLite")
	t.Setenv("MAX_CREDITS_PER_SEMESTER", "18")
	t.Setenv("GPA_SEMESTER_MODE", "latest")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("BACKUP_RETENTION_DAYS", "-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Persistence.Driver)
	assert.Equal(t, 18, cfg.Policy.MaxCreditsPerSemester)
	assert.Equal(t, GPASemesterLatest, cfg.Policy.GPASemesterMode)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
}

func TestLoadFallsBackToCalendarMode(t *testing.T) {
	t.Setenv("GPA_SEMESTER_MODE", "weekly")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GPASemesterCalendar, cfg.Policy.GPASemesterMode)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}
