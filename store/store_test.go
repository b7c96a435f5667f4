package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/videostore/config"
	"github.com/warp/videostore/logger"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := config.Config{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "videostore.db"),
	}

	backend, err := Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer backend.Close()

	assert.NoError(t, backend.Ping(context.Background()))
	plans, err := backend.Plans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Driver: "mysql"}, logger.Discard())
	assert.ErrorIs(t, err, config.ErrUnknownDriver)
}

func TestOpen_PostgresWithoutURL(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Driver: config.DriverPostgres}, logger.Discard())
	assert.Error(t, err)
}
