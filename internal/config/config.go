package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/sensor"
	"github.com/claude/anchor/internal/session"
	"github.com/claude/anchor/internal/storage"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Motion    MotionConfig    `yaml:"motion" toml:"motion"`
	Serial    SerialConfig    `yaml:"serial" toml:"serial"`
	Timezone  string          `yaml:"timezone" toml:"timezone"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	MongoURI   string `yaml:"mongo_uri" toml:"mongo_uri"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key" toml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Hostname string `yaml:"hostname" toml:"hostname"`
	StateDir string `yaml:"state_dir" toml:"state_dir"`
}

type SessionConfig struct {
	DefaultMinutes int    `yaml:"default_minutes" toml:"default_minutes"`
	DefaultType    string `yaml:"default_type" toml:"default_type"`
	WarningSeconds int    `yaml:"warning_seconds" toml:"warning_seconds"`
}

type MotionConfig struct {
	Enabled      *bool   `yaml:"enabled" toml:"enabled"`
	Alpha        float64 `yaml:"alpha" toml:"alpha"`
	Threshold    float64 `yaml:"threshold" toml:"threshold"`
	StillSamples int     `yaml:"still_samples" toml:"still_samples"`
}

// SerialConfig names an optional serial-attached accelerometer. An empty
// port means samples arrive over HTTP only.
type SerialConfig struct {
	Port               string `yaml:"port" toml:"port"`
	sensor.PortOptions `yaml:",inline"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// StorageDSN returns the connection string for the configured storage driver.
func (c *Config) StorageDSN() string {
	switch c.Storage.Driver {
	case storage.DriverPostgres:
		return c.Database.DSN()
	case storage.DriverMongo:
		return c.Storage.MongoURI
	}
	return c.Storage.SQLitePath
}

// MotionEnabled reports whether a motion sensor feed is expected. Defaults to true.
func (m MotionConfig) MotionEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Params converts the motion section into classifier tuning.
func (m MotionConfig) Params() motion.Params {
	return motion.Params{Alpha: m.Alpha, Threshold: m.Threshold, StillSamples: m.StillSamples}
}

// DefaultDurationSeconds is the clamped default session length.
func (s SessionConfig) DefaultDurationSeconds() int {
	return session.ClampDuration(s.DefaultMinutes * 60)
}

// Location resolves the configured timezone; empty means the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8470},
		Storage: StorageConfig{Driver: storage.DriverSQLite, SQLitePath: "data/anchor.db"},
		Session: SessionConfig{
			DefaultMinutes: session.DefaultDurationSeconds / 60,
			DefaultType:    "Deep Work",
			WarningSeconds: session.DefaultWarningSeconds,
		},
		Motion: MotionConfig{
			Alpha:        motion.DefaultAlpha,
			Threshold:    motion.DefaultThreshold,
			StillSamples: motion.DefaultStillSamples,
		},
		Tailscale: TailscaleConfig{Hostname: "anchor", StateDir: "data/tsnet"},
	}
}

// Load reads config from a YAML or TOML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix ANCHOR_ and
// underscore-separated paths:
//
//	ANCHOR_SERVER_HOST, ANCHOR_SERVER_PORT,
//	ANCHOR_STORAGE_DRIVER, ANCHOR_STORAGE_SQLITE_PATH, ANCHOR_STORAGE_MONGO_URI,
//	ANCHOR_DB_HOST, ANCHOR_DB_PORT, ANCHOR_DB_NAME,
//	ANCHOR_DB_USER, ANCHOR_DB_PASSWORD, ANCHOR_DB_SSLMODE,
//	ANCHOR_AUTH_API_KEY, ANCHOR_TIMEZONE, ANCHOR_SERIAL_PORT
//
// Files ending in .toml are decoded as TOML; anything else as YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.clamp()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANCHOR_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ANCHOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANCHOR_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("ANCHOR_STORAGE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ANCHOR_STORAGE_MONGO_URI"); v != "" {
		cfg.Storage.MongoURI = v
	}
	if v := os.Getenv("ANCHOR_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ANCHOR_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ANCHOR_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ANCHOR_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ANCHOR_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ANCHOR_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("ANCHOR_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("ANCHOR_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("ANCHOR_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
}

// clamp pulls user-facing tunables into range instead of rejecting them.
func (c *Config) clamp() {
	minMinutes := session.MinDurationSeconds / 60
	maxMinutes := session.MaxDurationSeconds / 60
	c.Session.DefaultMinutes = min(max(c.Session.DefaultMinutes, minMinutes), maxMinutes)
	if c.Session.WarningSeconds <= 0 {
		c.Session.WarningSeconds = session.DefaultWarningSeconds
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Storage.Driver {
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case storage.DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case storage.DriverMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for the mongo driver")
		}
	case storage.DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, mongo, memory", c.Storage.Driver)
	}
	if c.Motion.Alpha <= 0 || c.Motion.Alpha > 1 {
		return fmt.Errorf("motion.alpha must be in (0, 1]")
	}
	if c.Motion.Threshold <= 0 {
		return fmt.Errorf("motion.threshold must be positive")
	}
	if c.Motion.StillSamples <= 0 {
		return fmt.Errorf("motion.still_samples must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.Serial.Port != "" {
		opts, err := c.Serial.Normalize()
		if err != nil {
			return fmt.Errorf("serial: %w", err)
		}
		c.Serial.PortOptions = opts
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
