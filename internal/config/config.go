// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vodvault/vodvault/internal/domain"
	"github.com/vodvault/vodvault/internal/offline"
)

var envPrefix = "VODVAULT__"

const sessionSecretLength = 32

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	dataDir string
	version string

	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	c.resolveDataDir()

	c.watchConfig()

	return c, nil
}

func (c *AppConfig) defaults() {
	host := "localhost"
	if detectContainer() {
		host = "0.0.0.0"
	}

	sessionSecret, err := generateSecureToken(sessionSecretLength)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate secure session secret, using fallback")
		sessionSecret = "change-me-" + fmt.Sprintf("%d", os.Getpid())
	}

	c.viper.SetDefault("host", host)
	c.viper.SetDefault("port", 7410)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("sessionSecret", sessionSecret)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")     // Empty means auto-detect (next to config file)
	c.viper.SetDefault("downloadDir", "") // Empty means <dataDir>/offline
	c.viper.SetDefault("backendUrl", "https://caioterra.com")
	c.viper.SetDefault("providerUrl", "https://api.vimeo.com")
	c.viper.SetDefault("offlineRetentionDays", 30)
	c.viper.SetDefault("offlineSweepIntervalMinutes", 15)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9410)
	c.viper.SetDefault("pprofEnabled", false)
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(".")
		c.viper.AddConfigPath(GetDefaultConfigDir())

		if err := c.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
				if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
					return err
				}
				c.viper.SetConfigFile(defaultConfigPath)
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				c.dataDir = filepath.Dir(defaultConfigPath)
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

func (c *AppConfig) loadFromEnv() {
	// Explicit bindings only; AutomaticEnv reads every variable in the
	// environment and collides with orchestrator-injected names.
	c.viper.BindEnv("host", envPrefix+"HOST")
	c.viper.BindEnv("port", envPrefix+"PORT")
	c.viper.BindEnv("baseUrl", envPrefix+"BASE_URL")
	c.viper.BindEnv("sessionSecret", envPrefix+"SESSION_SECRET")
	c.viper.BindEnv("logLevel", envPrefix+"LOG_LEVEL")
	c.viper.BindEnv("logPath", envPrefix+"LOG_PATH")
	c.viper.BindEnv("logMaxSize", envPrefix+"LOG_MAX_SIZE")
	c.viper.BindEnv("logMaxBackups", envPrefix+"LOG_MAX_BACKUPS")
	c.viper.BindEnv("dataDir", envPrefix+"DATA_DIR")
	c.viper.BindEnv("downloadDir", envPrefix+"DOWNLOAD_DIR")
	c.viper.BindEnv("backendUrl", envPrefix+"BACKEND_URL")
	c.viper.BindEnv("providerUrl", envPrefix+"PROVIDER_URL")
	c.viper.BindEnv("offlineRetentionDays", envPrefix+"OFFLINE_RETENTION_DAYS")
	c.viper.BindEnv("offlineSweepIntervalMinutes", envPrefix+"OFFLINE_SWEEP_INTERVAL_MINUTES")
	c.viper.BindEnv("metricsEnabled", envPrefix+"METRICS_ENABLED")
	c.viper.BindEnv("metricsHost", envPrefix+"METRICS_HOST")
	c.viper.BindEnv("metricsPort", envPrefix+"METRICS_PORT")
	c.viper.BindEnv("pprofEnabled", envPrefix+"PPROF_ENABLED")
}

func (c *AppConfig) watchConfig() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("file", e.Name).Msg("Config file changed, reloading")

		newConfig := &domain.Config{}
		if err := c.viper.Unmarshal(newConfig); err != nil {
			log.Error().Err(err).Msg("Failed to reload config, keeping previous values")
			return
		}
		newConfig.Version = c.version

		*c.Config = *newConfig
		c.resolveDataDir()
		c.ApplyLogConfig()

		c.listenersMu.RLock()
		defer c.listenersMu.RUnlock()
		for _, fn := range c.listeners {
			fn(c.Config)
		}
	})
	c.viper.WatchConfig()
}

// OnConfigChange registers a listener invoked after a config file reload.
func (c *AppConfig) OnConfigChange(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) resolveDataDir() {
	if c.Config.DataDir != "" {
		c.dataDir = c.Config.DataDir
		return
	}
	if c.dataDir != "" {
		return
	}
	if configFile := c.viper.ConfigFileUsed(); configFile != "" {
		c.dataDir = filepath.Dir(configFile)
		return
	}
	c.dataDir = GetDefaultConfigDir()
}

// DataDir returns the resolved directory for the database and other state.
func (c *AppConfig) DataDir() string {
	return c.dataDir
}

// DatabasePath returns the sqlite file location inside the data dir.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.dataDir, "vodvault.db")
}

// DownloadDir returns the directory offline artifacts are stored in.
func (c *AppConfig) DownloadDir() string {
	if c.Config.DownloadDir != "" {
		return c.Config.DownloadDir
	}
	return filepath.Join(c.dataDir, "offline")
}

// RetentionWindow converts the configured retention days into a duration.
func (c *AppConfig) RetentionWindow() time.Duration {
	if c.Config.OfflineRetentionDays <= 0 {
		return offline.DefaultRetentionWindow
	}
	return time.Duration(c.Config.OfflineRetentionDays) * 24 * time.Hour
}

// SweepInterval converts the configured sweep interval into a duration.
func (c *AppConfig) SweepInterval() time.Duration {
	if c.Config.OfflineSweepIntervalMinutes <= 0 {
		return offline.DefaultSweepInterval
	}
	return time.Duration(c.Config.OfflineSweepIntervalMinutes) * time.Minute
}

// EncryptionKey derives the 32-byte key protecting stored credentials from
// the session secret. Changing the session secret invalidates stored
// credentials; the user logs in again.
func (c *AppConfig) EncryptionKey() []byte {
	sum := sha256.Sum256([]byte(c.Config.SessionSecret))
	return sum[:]
}

// GetDefaultConfigDir returns the OS-specific default config location.
func GetDefaultConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "vodvault")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "vodvault")
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		s := string(data)
		if strings.Contains(s, "docker") || strings.Contains(s, "kubepods") || strings.Contains(s, "containerd") {
			return true
		}
	}
	return false
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// resolveConfigPath determines the actual config file path from the provided
// directory or file path.
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}
	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}
	return filepath.Join(configDirOrPath, "config.toml")
}

func (c *AppConfig) writeDefaultConfig(configPath string) error {
	return writeConfigTemplate(configPath, map[string]any{
		"host":          c.viper.GetString("host"),
		"port":          c.viper.GetInt("port"),
		"sessionSecret": c.viper.GetString("sessionSecret"),
		"logLevel":      c.viper.GetString("logLevel"),
		"logMaxSize":    c.viper.GetInt("logMaxSize"),
		"logMaxBackups": c.viper.GetInt("logMaxBackups"),
		"backendUrl":    c.viper.GetString("backendUrl"),
		"providerUrl":   c.viper.GetString("providerUrl"),
	})
}

// WriteDefaultConfig creates a default config file at the given path without
// loading it. Used by the generate-config command.
func WriteDefaultConfig(configPath string) error {
	secret, err := generateSecureToken(sessionSecretLength)
	if err != nil {
		return err
	}

	return writeConfigTemplate(configPath, map[string]any{
		"host":          "localhost",
		"port":          7410,
		"sessionSecret": secret,
		"logLevel":      "INFO",
		"logMaxSize":    50,
		"logMaxBackups": 3,
		"backendUrl":    "https://caioterra.com",
		"providerUrl":   "https://api.vimeo.com",
	})
}

func writeConfigTemplate(configPath string, data map[string]any) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	configTemplate := `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost" (or "0.0.0.0" in containers)
host = "{{ .host }}"

# Port
# Default: {{ .port }}
port = {{ .port }}

# Base URL
# Set custom baseUrl eg /vodvault/ to serve in subdirectory.
# Not needed for subdomain, or by accessing with :port directly.
# Optional
#baseUrl = "/vodvault/"

# Session secret
# Auto-generated if not provided
# WARNING: Changing this value will break decryption of stored account
# credentials; you will need to log in again.
sessionSecret = "{{ .sessionSecret }}"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/vodvault.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: {{ .logMaxSize }}
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
# Default: {{ .logMaxBackups }}
#logMaxBackups = {{ .logMaxBackups }}

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Data directory (default: next to config file)
# Database file (vodvault.db) will be created inside this directory
#dataDir = "/var/db/vodvault"

# Download directory for offline artifacts
# Default: <dataDir>/offline
#downloadDir = "/var/media/vodvault"

# Content backend base URL
backendUrl = "{{ .backendUrl }}"

# Video provider API base URL
providerUrl = "{{ .providerUrl }}"

# Days a downloaded video stays playable before it is purged
# Default: 30
#offlineRetentionDays = 30

# Minutes between background expiration sweeps of the download directory
# Default: 15
#offlineSweepIntervalMinutes = 15

# Prometheus Metrics
# Enable Prometheus metrics on separate port (no authentication required)
# Default: false
#metricsEnabled = false

# Metrics server host (bind address for metrics endpoint)
# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Metrics server port (separate from main web interface)
# Default: 9410
#metricsPort = 9410
`

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", configPath, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Str("path", configPath).Msg("Created default config file")
	return nil
}

func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	setLogLevel(c.Config.LogLevel)

	writer := c.baseLogWriter()

	if c.Config.LogPath != "" {
		multiWriter, err := setupLogFile(c.Config.LogPath, writer, c.Config.LogMaxSize, c.Config.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return os.Stderr
}

func (c *AppConfig) baseLogWriter() io.Writer {
	return baseLogWriter(c.version)
}

// InitDefaultLogger configures zerolog with the default writer for this
// version. Used by CLI entry points before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}
