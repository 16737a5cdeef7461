package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"makequeue-backend/internal/model"
)

func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "makequeue.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := "database:\n  driver: sqlite\n  dsn: " + dbPath + "\nlogger:\n  level: error\nbooking:\n  timezone: UTC\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, dbPath
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMigrateAndSeed(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	require.NoError(t, run(t, "--config", configPath, "migrate", "up"))
	require.NoError(t, run(t, "--config", configPath, "seed", filepath.Join("..", "..", "config", "seed.example.yaml")))

	gormDB, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	var machines []model.Machine
	require.NoError(t, gormDB.Order("id").Find(&machines).Error)
	require.Len(t, machines, 2)
	assert.Equal(t, "Prusa 1", machines[0].Name)
	assert.Equal(t, "Bernina", machines[1].Name)

	var rules int64
	require.NoError(t, gormDB.Model(&model.ReservationRule{}).Count(&rules).Error)
	assert.EqualValues(t, 2, rules)
}

func TestMigrateDown_RequiresPostgres(t *testing.T) {
	configPath, _ := writeConfig(t)
	err := run(t, "--config", configPath, "migrate", "down")
	assert.ErrorContains(t, err, "postgres")
}

func TestServe_RequiresSecret(t *testing.T) {
	configPath, _ := writeConfig(t)
	err := run(t, "--config", configPath, "serve")
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestMissingConfig(t *testing.T) {
	err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate", "up")
	assert.Error(t, err)
}
