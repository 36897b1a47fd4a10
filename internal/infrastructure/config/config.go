package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for medminder.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	// Entries are the configured medication-tracking instances.
	// Each entry owns its own registry, lock, and people.
	Entries []EntryConfig `yaml:"entries"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays bounds the dose history kept by the daily reset.
	// 0 keeps everything. Default: 365.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains settings for the Redis state mirror.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	// StreamMaxLen caps the event stream length. 0 = unbounded.
	StreamMaxLen int64 `yaml:"stream_max_len"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SchedulerConfig controls the periodic schedule check and the daily reset.
type SchedulerConfig struct {
	// CheckInterval is the schedule sweep cadence. Default: 5m.
	CheckInterval time.Duration `yaml:"check_interval"`

	// ResetInterval is the daily counter reset cadence. Default: 24h.
	ResetInterval time.Duration `yaml:"reset_interval"`

	// AlignResetToMidnight fires the first reset at the next local midnight
	// instead of one ResetInterval after startup. Default: true.
	AlignResetToMidnight bool `yaml:"align_reset_to_midnight"`

	// QueueSize is the buffered capacity of each entry's tag-scan queue. Default: 32.
	QueueSize int `yaml:"queue_size"`

	// LearnTimeout bounds how long a tag-learning session waits for a scan. Default: 2m.
	LearnTimeout time.Duration `yaml:"learn_timeout"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables API authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// EntryConfig is one medication-tracking instance: its people, its medications,
// and the flat options override applied uniformly to every medication.
type EntryConfig struct {
	ID          string             `yaml:"id" json:"id"`
	Title       string             `yaml:"title" json:"title"`
	People      []PersonConfig     `yaml:"people" json:"people"`
	Medications []MedicationConfig `yaml:"medications" json:"medications"`
	Options     OptionsConfig      `yaml:"options" json:"options"`
}

// PersonConfig declares a person by display name.
type PersonConfig struct {
	Name string `yaml:"name" json:"name"`
}

// MedicationConfig declares a medication. Optional numeric fields are pointers
// so that "absent" can fall through to the options override or the defaults table.
type MedicationConfig struct {
	Name                    string `yaml:"name" json:"name"`
	NFCID                   string `yaml:"nfc_id,omitempty" json:"nfc_id,omitempty"`
	Dosage                  *int   `yaml:"dosage,omitempty" json:"dosage,omitempty"`
	Inventory               *int   `yaml:"inventory,omitempty" json:"inventory,omitempty"`
	DoseTime                string `yaml:"dose_time,omitempty" json:"dose_time,omitempty"`
	Person                  string `yaml:"person,omitempty" json:"person,omitempty"`
	DosesPerDay             *int   `yaml:"doses_per_day,omitempty" json:"doses_per_day,omitempty"`
	RefillsRemaining        *int   `yaml:"refills_remaining,omitempty" json:"refills_remaining,omitempty"`
	LowInventoryThreshold   *int   `yaml:"low_inventory_threshold,omitempty" json:"low_inventory_threshold,omitempty"`
	DoctorReminderThreshold *int   `yaml:"doctor_reminder_threshold,omitempty" json:"doctor_reminder_threshold,omitempty"`
}

// OptionsConfig is the runtime override applied to every medication in an entry.
// Only the inventory and refill/threshold fields are overridable.
type OptionsConfig struct {
	Inventory               *int `yaml:"inventory,omitempty" json:"inventory,omitempty"`
	RefillsRemaining        *int `yaml:"refills_remaining,omitempty" json:"refills_remaining,omitempty"`
	LowInventoryThreshold   *int `yaml:"low_inventory_threshold,omitempty" json:"low_inventory_threshold,omitempty"`
	DoctorReminderThreshold *int `yaml:"doctor_reminder_threshold,omitempty" json:"doctor_reminder_threshold,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MEDMINDER_SECTION_KEY
// For example: MEDMINDER_DATABASE_PATH, MEDMINDER_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyEntryDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home",
			Name:     "Home",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/medminder.db",
			WALMode:     true,
			BusyTimeout: 5,

			HistoryRetentionDays: 365,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "medminder",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			KeyPrefix:    "medminder",
			StreamMaxLen: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Scheduler: SchedulerConfig{
			CheckInterval:        5 * time.Minute,
			ResetInterval:        24 * time.Hour,
			AlignResetToMidnight: true,
			QueueSize:            32,
			LearnTimeout:         2 * time.Minute,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MEDMINDER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("MEDMINDER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MEDMINDER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MEDMINDER_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MEDMINDER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MEDMINDER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MEDMINDER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("MEDMINDER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Redis
	if v := os.Getenv("MEDMINDER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MEDMINDER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Security
	if v := os.Getenv("MEDMINDER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// applyEntryDefaults fills in entry IDs and titles left empty in the file.
// A single unnamed entry takes the site ID so that a minimal config works.
func (c *Config) applyEntryDefaults() {
	for i := range c.Entries {
		e := &c.Entries[i]
		if e.ID == "" {
			if len(c.Entries) == 1 {
				e.ID = c.Site.ID
			} else {
				e.ID = fmt.Sprintf("%s-%d", c.Site.ID, i+1)
			}
		}
		if e.Title == "" {
			e.Title = e.ID
		}
	}
}

// Validate checks the configuration for errors.
//
// Medication records are deliberately NOT validated here: a malformed
// medication is skipped at registry build time without blocking the rest.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days cannot be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when enabled")
	}

	if c.Scheduler.CheckInterval <= 0 {
		errs = append(errs, "scheduler.check_interval must be positive")
	}
	if c.Scheduler.ResetInterval <= 0 {
		errs = append(errs, "scheduler.reset_interval must be positive")
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters when set")
	}

	seen := make(map[string]bool, len(c.Entries))
	for i, e := range c.Entries {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("entries[%d].id is required", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Sprintf("entries[%d].id %q is duplicated", i, e.ID))
		}
		seen[e.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location resolves the configured site timezone. "Local" or an empty value
// yields time.Local; an unknown zone name is an error.
func (c *Config) Location() (*time.Location, error) {
	switch c.Site.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
