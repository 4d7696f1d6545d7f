// Package config loads the bridge configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	CAN        CANConfig        `yaml:"can"`
	DBC        DBCConfig        `yaml:"dbc"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Display    DisplayConfig    `yaml:"display"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Stats      StatsConfig      `yaml:"stats"`
	Log        LogConfig        `yaml:"log"`
}

// CANConfig selects and configures the bus backend
type CANConfig struct {
	Backend       string   `yaml:"backend"` // socketcan, vcan, virtual, pcan
	Channel       string   `yaml:"channel"`
	Name          string   `yaml:"name"` // bus name in topics, defaults to channel
	Bitrate       string   `yaml:"bitrate"`
	FD            bool     `yaml:"fd"`
	Filters       []string `yaml:"filters"` // hex ids, 0x prefix optional
	ReadTimeoutMS int      `yaml:"read_timeout_ms"`
}

// DBCConfig points at the signal database
type DBCConfig struct {
	File string `yaml:"file"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URI       string `yaml:"uri"`
	ClientID  string `yaml:"client_id"`
	KeepAlive int    `yaml:"keep_alive"` // seconds
	QoS       int    `yaml:"qos"`
	QueueSize int    `yaml:"queue_size"`
}

// DisplayConfig controls the terminal display
type DisplayConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMS int  `yaml:"interval_ms"`
	History    int  `yaml:"history"`
}

// ClickHouseConfig holds ClickHouse archival settings
type ClickHouseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Database  string `yaml:"database"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

// InfluxDBConfig holds InfluxDB archival settings
type InfluxDBConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size"`
}

// APIConfig controls the HTTP API, port 0 disables it
type APIConfig struct {
	Port int `yaml:"port"`
}

// StatsConfig controls the interface statistics collector, 0 disables it
type StatsConfig struct {
	IntervalS int `yaml:"interval_s"`
}

// LogConfig configures log output and rotation
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		CAN: CANConfig{
			Backend:       "socketcan",
			Channel:       "vcan0",
			Bitrate:       "500K",
			ReadTimeoutMS: 200,
		},
		MQTT: MQTTConfig{
			Enabled:   true,
			URI:       "tcp://localhost:1883",
			ClientID:  "can-bridge",
			KeepAlive: 20,
			QueueSize: 1024,
		},
		Display: DisplayConfig{
			Enabled:    true,
			IntervalMS: 100,
			History:    10000,
		},
		ClickHouse: ClickHouseConfig{
			Host:      "localhost",
			Port:      9000,
			Database:  "default",
			Username:  "default",
			Table:     "can_frames",
			BatchSize: 1000,
		},
		InfluxDB: InfluxDBConfig{
			URL:       "http://localhost:8181",
			Database:  "can_signals",
			BatchSize: 500,
		},
		Stats: StatsConfig{IntervalS: 10},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/can-bridge.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Override adjusts a loaded configuration before validation, e.g. from flags
type Override func(*Config)

// Load reads a YAML file over the defaults, applies overrides and validates
// the result. A missing file yields the defaults.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no config file found, using default configuration", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validBackends = map[string]bool{"socketcan": true, "vcan": true, "virtual": true, "pcan": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for values the bridge cannot run with
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DBC.File) == "" {
		errs = append(errs, errors.New("dbc.file is required"))
	}
	if !validBackends[strings.ToLower(c.CAN.Backend)] {
		errs = append(errs, fmt.Errorf("can.backend %q is not supported", c.CAN.Backend))
	}
	if c.CAN.Channel == "" {
		errs = append(errs, errors.New("can.channel is required"))
	}
	if c.CAN.ReadTimeoutMS <= 0 {
		errs = append(errs, errors.New("can.read_timeout_ms must be positive"))
	}
	if _, err := c.CAN.FilterIDs(); err != nil {
		errs = append(errs, err)
	}

	if c.MQTT.Enabled {
		if c.MQTT.URI == "" {
			errs = append(errs, errors.New("mqtt.uri is required when mqtt is enabled"))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
		if c.MQTT.QueueSize <= 0 {
			errs = append(errs, errors.New("mqtt.queue_size must be positive"))
		}
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, errors.New("mqtt.keep_alive must not be negative"))
	}

	if c.Display.IntervalMS <= 0 {
		errs = append(errs, errors.New("display.interval_ms must be positive"))
	}
	if c.Display.History <= 0 {
		errs = append(errs, errors.New("display.history must be positive"))
	}

	if c.ClickHouse.Enabled && c.ClickHouse.BatchSize <= 0 {
		errs = append(errs, errors.New("clickhouse.batch_size must be positive"))
	}
	if c.InfluxDB.Enabled && c.InfluxDB.BatchSize <= 0 {
		errs = append(errs, errors.New("influxdb.batch_size must be positive"))
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d is out of range", c.API.Port))
	}
	if c.Stats.IntervalS < 0 {
		errs = append(errs, errors.New("stats.interval_s must not be negative"))
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// BusName returns the name used for the bus in topics and payloads
func (c CANConfig) BusName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Channel
}

// ReadTimeout returns the per-read receive timeout
func (c CANConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// FilterIDs parses the hex filter list
func (c CANConfig) FilterIDs() ([]uint32, error) {
	return parseFilters(c.Filters)
}

// parseFilters parses hex CAN IDs, with or without a 0x prefix
func parseFilters(filters []string) ([]uint32, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	ids := make([]uint32, 0, len(filters))
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		hex := strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		id, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("can.filters: invalid id %q", f)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// KeepAliveDuration returns the MQTT keep-alive interval
func (c MQTTConfig) KeepAliveDuration() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// Interval returns the display refresh interval
func (c DisplayConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Interval returns the stats sampling interval
func (c StatsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalS) * time.Second
}
