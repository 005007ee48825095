package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records/pkg/config"
)

func TestNewSQLiteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.db")
	db, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Get(&one, db.Rebind("SELECT ?"), 1))
	assert.Equal(t, 1, one)
}

func TestOpenRejectsCSVDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Persistence: config.PersistenceConfig{Driver: config.DriverCSV}})
	require.Error(t, err)
}
