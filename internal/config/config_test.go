// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodvault/vodvault/internal/offline"
)

func TestNew_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	assert.Equal(t, 7410, cfg.Config.Port)
	assert.Equal(t, "/", cfg.Config.BaseURL)
	assert.Equal(t, "https://caioterra.com", cfg.Config.BackendURL)
	assert.Equal(t, "https://api.vimeo.com", cfg.Config.ProviderURL)
	assert.Equal(t, 30, cfg.Config.OfflineRetentionDays)
	assert.NotEmpty(t, cfg.Config.SessionSecret)
}

func TestNew_ReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
port = 9999
backendUrl = "https://backend.test"
offlineRetentionDays = 7
sessionSecret = "fixed-secret"
`), 0o644))

	cfg, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Config.Port)
	assert.Equal(t, "https://backend.test", cfg.Config.BackendURL)
	assert.Equal(t, 7, cfg.Config.OfflineRetentionDays)
	assert.Equal(t, "fixed-secret", cfg.Config.SessionSecret)
}

func TestNew_EnvOverridesFile(t *testing.T) {
	t.Setenv("VODVAULT__PORT", "8123")
	t.Setenv("VODVAULT__LOG_LEVEL", "DEBUG")

	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Config.Port)
	assert.Equal(t, "DEBUG", cfg.Config.LogLevel)
}

func TestDataDirResolution(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	// Defaults to the config file's directory
	assert.Equal(t, dir, cfg.DataDir())
	assert.Equal(t, filepath.Join(dir, "vodvault.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(dir, "offline"), cfg.DownloadDir())
}

func TestDataDirExplicit(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("VODVAULT__DATA_DIR", dataDir)

	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir())
	assert.Equal(t, filepath.Join(dataDir, "offline"), cfg.DownloadDir())
}

func TestDownloadDirExplicit(t *testing.T) {
	downloadDir := t.TempDir()
	t.Setenv("VODVAULT__DOWNLOAD_DIR", downloadDir)

	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, downloadDir, cfg.DownloadDir())
}

func TestRetentionWindow(t *testing.T) {
	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, cfg.RetentionWindow())

	cfg.Config.OfflineRetentionDays = 7
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionWindow())

	cfg.Config.OfflineRetentionDays = 0
	assert.Equal(t, offline.DefaultRetentionWindow, cfg.RetentionWindow())
}

func TestSweepInterval(t *testing.T) {
	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.SweepInterval())

	cfg.Config.OfflineSweepIntervalMinutes = -1
	assert.Equal(t, offline.DefaultSweepInterval, cfg.SweepInterval())
}

func TestEncryptionKey(t *testing.T) {
	cfg, err := New(t.TempDir())
	require.NoError(t, err)

	key := cfg.EncryptionKey()
	assert.Len(t, key, 32)

	// Deterministic for a fixed secret
	cfg.Config.SessionSecret = "fixed"
	first := cfg.EncryptionKey()
	second := cfg.EncryptionKey()
	assert.Equal(t, first, second)
}

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, WriteDefaultConfig(configPath))
	assert.FileExists(t, configPath)

	// The generated file must load cleanly
	cfg, err := New(configPath)
	require.NoError(t, err)
	assert.Equal(t, 7410, cfg.Config.Port)
}
