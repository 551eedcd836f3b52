// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

type Config struct {
	Version string

	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	BaseURL       string `mapstructure:"baseUrl"`
	SessionSecret string `mapstructure:"sessionSecret"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	DataDir     string `mapstructure:"dataDir"`
	DownloadDir string `mapstructure:"downloadDir"`

	BackendURL  string `mapstructure:"backendUrl"`
	ProviderURL string `mapstructure:"providerUrl"`

	OfflineRetentionDays        int `mapstructure:"offlineRetentionDays"`
	OfflineSweepIntervalMinutes int `mapstructure:"offlineSweepIntervalMinutes"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	PprofEnabled bool `mapstructure:"pprofEnabled"`
}
