package database

import (
	"testing"

	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, false)
	assert.Error(t, err)
}

func TestInitializeMigrateHealth(t *testing.T) {
	t.Cleanup(func() {
		_ = Close()
		DB = nil
	})

	assert.Error(t, Health())
	assert.Error(t, Migrate())

	require.NoError(t, Initialize(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, false))
	require.NoError(t, Migrate())
	require.NoError(t, Health())

	assert.True(t, DB.Migrator().HasTable(&models.Conversation{}))
	assert.True(t, DB.Migrator().HasTable(&models.Message{}))
}
