// Package config loads the sensors monitor configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, injected by the dev tool through -ldflags.
var (
	AppVersion = "dev"
	GitCommit  = "none"
	GitBranch  = ""
	BuildTime  = ""
	Arch       = ""
)

// Version describes the running binary.
func Version() string {
	v := AppVersion + "-" + GitCommit
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}

type Config struct {
	Sensor  SensorConfig  `yaml:"sensor"`
	Monitor MonitorConfig `yaml:"monitor"`
	Publish PublishConfig `yaml:"publish"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Name    string `yaml:"name"`
	Adapter string `yaml:"adapter"`
	// Device is the Linux I2C device for the generic adapter or the bus
	// number for the nanopi adapter.
	Device              string `yaml:"device"`
	Address             uint8  `yaml:"address"`
	// MinUpdateIntervalMs defaults to 2000 when omitted. An explicit 0 lets
	// every monitor tick poll the device.
	MinUpdateIntervalMs *int `yaml:"min_update_interval_ms"`
	StickyError         bool `yaml:"sticky_error"`
}

func (c SensorConfig) MinUpdateInterval() time.Duration {
	if c.MinUpdateIntervalMs == nil {
		return DefaultMinUpdateIntervalMs * time.Millisecond
	}
	return time.Duration(*c.MinUpdateIntervalMs) * time.Millisecond
}

// ---- MONITOR ----

type MonitorConfig struct {
	TickMs int `yaml:"tick_ms"`
}

func (c MonitorConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// ---- PUBLISH ----

type PublishConfig struct {
	Log        *bool             `yaml:"log"`
	Prometheus *PrometheusConfig `yaml:"prometheus"`
	Modbus     *ModbusConfig     `yaml:"modbus"`
}

func (c PublishConfig) LogEnabled() bool {
	return c.Log == nil || *c.Log
}

type PrometheusConfig struct {
	Listen string `yaml:"listen"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func (c ModbusConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Load reads, normalizes and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
