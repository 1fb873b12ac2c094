package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds the HTTP and WebSocket settings.
type ServerConfig struct {
	Port           string   `json:"port" env:"POWERTOOLS_SERVER_PORT"`
	WebFilesDir    string   `json:"web_files_dir" env:"POWERTOOLS_WEB_FILES_DIR"`
	AllowedOrigins []string `json:"allowed_origins" env:"POWERTOOLS_ALLOWED_ORIGINS"`
}

// BatteryConfig selects and configures the battery driver.
type BatteryConfig struct {
	// Driver is "sysfs" or "dummy".
	Driver           string  `json:"driver" env:"POWERTOOLS_BATTERY_DRIVER"`
	CurrentNowPath   string  `json:"current_now_path" env:"POWERTOOLS_BATTERY_CURRENT_NOW_PATH"`
	ChargeNowPath    string  `json:"charge_now_path" env:"POWERTOOLS_BATTERY_CHARGE_NOW_PATH"`
	ChargeFullPath   string  `json:"charge_full_path" env:"POWERTOOLS_BATTERY_CHARGE_FULL_PATH"`
	ChargeDesignPath string  `json:"charge_design_path" env:"POWERTOOLS_BATTERY_CHARGE_DESIGN_PATH"`
	ChargeRatePath   string  `json:"charge_rate_path" env:"POWERTOOLS_BATTERY_CHARGE_RATE_PATH"`
	ChargeModePath   string  `json:"charge_mode_path" env:"POWERTOOLS_BATTERY_CHARGE_MODE_PATH"`
	Scale            float64 `json:"scale" env:"POWERTOOLS_BATTERY_SCALE"`
	DefaultRate      *uint64 `json:"default_charge_rate" env:"POWERTOOLS_BATTERY_DEFAULT_CHARGE_RATE"`
	DefaultMode      string  `json:"default_charge_mode" env:"POWERTOOLS_BATTERY_DEFAULT_CHARGE_MODE"`
	WriteRateLimit   float64 `json:"write_rate_limit" env:"POWERTOOLS_BATTERY_WRITE_RATE_LIMIT"`
	WriteBurst       int     `json:"write_burst" env:"POWERTOOLS_BATTERY_WRITE_BURST"`
}

// MQTTConfig holds MQTT and Home Assistant discovery settings.
type MQTTConfig struct {
	Enabled            bool   `json:"enabled" env:"POWERTOOLS_MQTT_ENABLED"`
	Broker             string `json:"broker" env:"POWERTOOLS_MQTT_BROKER"` // tcp://IP:PORT
	Username           string `json:"username" env:"POWERTOOLS_MQTT_USERNAME"`
	Password           string `json:"password" env:"POWERTOOLS_MQTT_PASSWORD"`
	ClientID           string `json:"client_id" env:"POWERTOOLS_MQTT_CLIENT_ID"`
	TopicPrefix        string `json:"topic_prefix" env:"POWERTOOLS_MQTT_TOPIC_PREFIX"`
	HADiscoveryEnabled bool   `json:"ha_discovery_enabled" env:"POWERTOOLS_MQTT_HA_DISCOVERY_ENABLED"`
	HADiscoveryPrefix  string `json:"ha_discovery_prefix" env:"POWERTOOLS_MQTT_HA_DISCOVERY_PREFIX"`
	PollInterval       string `json:"poll_interval" env:"POWERTOOLS_MQTT_POLL_INTERVAL"`
}

// Config is the top-level agent configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Battery BatteryConfig `json:"battery"`
	MQTT    MQTTConfig    `json:"mqtt"`

	// QueueSize is the capacity of the owner's command queue.
	QueueSize int `json:"queue_size" env:"POWERTOOLS_QUEUE_SIZE"`

	// File system settings
	ScriptsDir    string `json:"scripts_dir" env:"POWERTOOLS_SCRIPTS_DIR"`
	SchedulesFile string `json:"schedules_file" env:"POWERTOOLS_SCHEDULES_FILE"`
}

// Load reads the JSON file at path, applies POWERTOOLS_* environment
// overrides, then fills defaults and validates. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// PollInterval returns the parsed MQTT telemetry poll interval.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.MQTT.PollInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Battery.Driver = strings.ToLower(strings.TrimSpace(c.Battery.Driver))
	c.ScriptsDir = strings.TrimSpace(c.ScriptsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.MQTT.TopicPrefix = strings.TrimSuffix(strings.TrimSpace(c.MQTT.TopicPrefix), "/")
}

func (c *Config) setDefaults() {
	// Server defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// Battery defaults
	if c.Battery.Driver == "" {
		c.Battery.Driver = "sysfs"
	}
	if c.Battery.CurrentNowPath == "" {
		c.Battery.CurrentNowPath = "/sys/class/power_supply/BAT1/current_now"
	}
	if c.Battery.ChargeNowPath == "" {
		c.Battery.ChargeNowPath = "/sys/class/power_supply/BAT1/charge_now"
	}
	if c.Battery.ChargeFullPath == "" {
		c.Battery.ChargeFullPath = "/sys/class/power_supply/BAT1/charge_full"
	}
	if c.Battery.ChargeDesignPath == "" {
		c.Battery.ChargeDesignPath = "/sys/class/power_supply/BAT1/charge_full_design"
	}
	if c.Battery.ChargeRatePath == "" {
		c.Battery.ChargeRatePath = "/sys/class/hwmon/hwmon5/maximum_battery_charge_rate"
	}
	if c.Battery.Scale == 0 {
		c.Battery.Scale = 1000
	}
	if c.Battery.WriteRateLimit == 0 {
		c.Battery.WriteRateLimit = 5
	}
	if c.Battery.WriteBurst == 0 {
		c.Battery.WriteBurst = 5
	}

	if c.QueueSize == 0 {
		c.QueueSize = 20
	}

	// File defaults
	if c.ScriptsDir == "" {
		c.ScriptsDir = "scripts"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// MQTT defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "powertools-agent"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "powertools"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}
	if c.MQTT.PollInterval == "" {
		c.MQTT.PollInterval = "30s"
	}
}

func (c *Config) validate() error {
	switch c.Battery.Driver {
	case "sysfs", "dummy":
	default:
		return fmt.Errorf("config error: unknown battery driver '%s'", c.Battery.Driver)
	}
	if c.Battery.WriteRateLimit < 0 {
		return fmt.Errorf("config error: 'write_rate_limit' must be positive")
	}
	if c.Battery.WriteBurst < 0 {
		return fmt.Errorf("config error: 'write_burst' must be positive")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("config error: 'queue_size' must not be negative")
	}
	if d, err := time.ParseDuration(c.MQTT.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("config error: invalid 'poll_interval' %q", c.MQTT.PollInterval)
	}
	return nil
}
