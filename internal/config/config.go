package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Timer   TimerConfig   `mapstructure:"timer"`
}

// ServerConfig defines the control API and metrics listeners
type ServerConfig struct {
	APIPort        int    `mapstructure:"api_port"`
	MetricsPort    int    `mapstructure:"metrics_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	BindAddress    string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path  string      `mapstructure:"path"`
	Type  string      `mapstructure:"type"` // bolt, redis or sqlite
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines connection settings for the redis backend
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TimerConfig holds the tick cadence and the settings used until the user
// saves their own.
type TimerConfig struct {
	TickInterval         string  `mapstructure:"tick_interval"`
	DailyLimitHours      float64 `mapstructure:"daily_limit_hours"`
	AdultLimitHours      float64 `mapstructure:"adult_limit_hours"`
	BreakIntervalMinutes int     `mapstructure:"break_interval_minutes"`
	BreakDurationMinutes int     `mapstructure:"break_duration_minutes"`
}

// TickPeriod parses TickInterval, falling back to one second.
func (t TimerConfig) TickPeriod() time.Duration {
	d, err := time.ParseDuration(t.TickInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// Settings converts the timer defaults into policy settings.
func (t TimerConfig) Settings() policy.Settings {
	return policy.Settings{
		DailyLimitHours:      t.DailyLimitHours,
		AdultLimitHours:      t.AdultLimitHours,
		BreakIntervalMinutes: t.BreakIntervalMinutes,
		BreakDurationMinutes: t.BreakDurationMinutes,
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mediatimer.yaml"
	}
	return filepath.Join(dir, "mediatimer", "config.yaml")
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mediatimer.bolt"
	}
	return filepath.Join(home, ".local", "share", "mediatimer", "mediatimer.bolt")
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	return decode(v)
}

// Watch re-reads the config file whenever it is written and passes the
// result to fn. It does nothing when the file does not exist.
func Watch(configPath string, fn func(*Config, error)) {
	if _, err := os.Stat(configPath); err != nil {
		return
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		fn(nil, fmt.Errorf("failed to read config file: %w", err))
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(decode(v))
	})
	v.WatchConfig()
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("MEDIATIMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced with no file and no
// environment overrides.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 8787)
	v.SetDefault("server.metrics_port", 9797)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "mediatimer")
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Timer defaults
	v.SetDefault("timer.tick_interval", "1s")
	v.SetDefault("timer.daily_limit_hours", 3.0)
	v.SetDefault("timer.adult_limit_hours", 1.0)
	v.SetDefault("timer.break_interval_minutes", 20)
	v.SetDefault("timer.break_duration_minutes", 10)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsEnabled && (cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be bolt, sqlite, or redis)", cfg.Storage.Type)
	}

	if cfg.Storage.Type != "redis" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if _, err := time.ParseDuration(cfg.Timer.TickInterval); err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	if cfg.Timer.DailyLimitHours <= 0 || cfg.Timer.AdultLimitHours <= 0 {
		return fmt.Errorf("timer limits must be positive")
	}
	if cfg.Timer.BreakIntervalMinutes <= 0 || cfg.Timer.BreakDurationMinutes <= 0 {
		return fmt.Errorf("break interval and duration must be positive")
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	return nil
}
