package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device        DeviceConfig        `yaml:"device"`
	HTTP          HTTPConfig          `yaml:"http"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	Log           LogConfig           `yaml:"log"`
}

type DeviceConfig struct {
	Name            string `yaml:"name"`
	Address         string `yaml:"address"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	MaxRetries      int    `yaml:"max_retries"`
	RequestTimeout  string `yaml:"request_timeout"`
	RefreshInterval string `yaml:"refresh_interval"`
}

type HTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	AuthToken  string `yaml:"auth_token"`
	RateLimit  int    `yaml:"rate_limit"`
	RateWindow string `yaml:"rate_window"`
	Metrics    bool   `yaml:"metrics"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     uint   `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"`
}

type HomeAssistantConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
}

type PushoverConfig struct {
	Token    string `yaml:"token"`
	UserKey  string `yaml:"user_key"`
	Enabled  bool   `yaml:"enabled"`
	Priority int    `yaml:"priority"`
	// Alarms lists the alarm kinds (e.g. "alarm-obstruction_detected")
	// that trigger a notification when raised.
	Alarms            []string `yaml:"alarms"`
	NotifyUnavailable bool     `yaml:"notify_unavailable"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document after expanding environment variables.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "garage"
	}
	if c.Device.Port == 0 {
		c.Device.Port = 80
	}
	if c.Device.MaxRetries <= 0 {
		c.Device.MaxRetries = 5
	}
	if c.Device.RequestTimeout == "" {
		c.Device.RequestTimeout = "10s"
	}
	if c.Device.RefreshInterval == "" {
		c.Device.RefreshInterval = "5m"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 30
	}
	if c.HTTP.RateWindow == "" {
		c.HTTP.RateWindow = "1m"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "gdo"
	}
	if c.InfluxDB.BatchSize == 0 {
		c.InfluxDB.BatchSize = 100
	}
	if c.InfluxDB.FlushInterval == "" {
		c.InfluxDB.FlushInterval = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.HomeAssistant.Enabled && (c.HomeAssistant.URL == "" || c.HomeAssistant.Token == "") {
		return fmt.Errorf("homeassistant.url and homeassistant.token are required when homeassistant is enabled")
	}
	return nil
}

// Duration parses value, falling back to def with a warning when the value
// is not a valid duration.
func Duration(value string, def time.Duration, logger *slog.Logger) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "error", err, "value", value, "default", def)
		return def
	}
	return d
}
