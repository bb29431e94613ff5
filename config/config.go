package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"EyeTrackServer/engine"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yaml"
	EnvPath     = "EYETRACK_CONFIG"
)

type Blink struct {
	ClosedThreshold           float64 `yaml:"closedThreshold" validate:"gt=0"`
	RequiredConsecutiveFrames int     `yaml:"requiredConsecutiveFrames" validate:"gte=1"`
}

type Pose struct {
	Enabled bool `yaml:"enabled"`
}

type Registry struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" validate:"required_if=Enabled true"`
	Port     int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type MQTT struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker" validate:"required_if=Enabled true"`
	Topic    string `yaml:"topic" validate:"required_if=Enabled true"`
	QoS      byte   `yaml:"qos" validate:"max=2"`
	ClientID string `yaml:"clientID"`
}

type UDP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

type Config struct {
	HTTPPort           int           `yaml:"httpPort" validate:"min=1,max=65535"`
	RPCPort            int           `yaml:"rpcPort" validate:"min=1,max=65535"`
	MetricsPort        int           `yaml:"metricsPort" validate:"min=1,max=65535"`
	LogLevel           string        `yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFile            string        `yaml:"logFile"`
	Development        bool          `yaml:"development"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout" validate:"gte=0"`
	Blink              Blink         `yaml:"blink"`
	Pose               Pose          `yaml:"pose"`
	Registry           Registry      `yaml:"registry"`
	MQTT               MQTT          `yaml:"mqtt"`
	UDP                UDP           `yaml:"udp"`
}

func Default() Config {
	return Config{
		HTTPPort:           8080,
		RPCPort:            50051,
		MetricsPort:        9090,
		LogLevel:           "info",
		SessionIdleTimeout: 5 * time.Minute,
		Blink: Blink{
			ClosedThreshold:           0.35,
			RequiredConsecutiveFrames: 2,
		},
		Pose: Pose{Enabled: true},
		Registry: Registry{
			Port:     8000,
			Interval: 5 * time.Second,
		},
		MQTT: MQTT{
			Broker: "tcp://localhost:1883",
			Topic:  "eyetrack/blinks",
			QoS:    1,
		},
		UDP: UDP{Addr: "127.0.0.1:7070"},
	}
}

// Load reads a .env file if one is present, then the YAML config at path. An
// empty path falls back to $EYETRACK_CONFIG and then config.yaml; a missing
// config.yaml at the default location is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	explicit := true
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path, explicit = DefaultPath, false
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets deployments override the settings that usually differ between
// hosts without editing the YAML.
func (c *Config) applyEnv() {
	c.HTTPPort = getEnvAsInt("EYETRACK_HTTP_PORT", c.HTTPPort)
	c.RPCPort = getEnvAsInt("EYETRACK_RPC_PORT", c.RPCPort)
	c.MetricsPort = getEnvAsInt("EYETRACK_METRICS_PORT", c.MetricsPort)
	c.LogLevel = getEnv("EYETRACK_LOG_LEVEL", c.LogLevel)
	c.MQTT.Broker = getEnv("EYETRACK_MQTT_BROKER", c.MQTT.Broker)
	c.Registry.Host = getEnv("EYETRACK_REGISTRY_HOST", c.Registry.Host)
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Engine().Validate(); err != nil {
		return err
	}
	return nil
}

// Engine is the default configuration for new sessions.
func (c Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.ClosedThreshold = c.Blink.ClosedThreshold
	ec.RequiredConsecutiveFrames = c.Blink.RequiredConsecutiveFrames
	ec.EstimatePose = c.Pose.Enabled
	return ec
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
