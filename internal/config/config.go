package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// PolicyConfig holds the workflow policy parameters
type PolicyConfig struct {
	AutoConsentWindowDays int `mapstructure:"auto_consent_window_days"`
	ConsentValidityDays   int `mapstructure:"consent_validity_days"`
	GradeMin              int `mapstructure:"grade_min"`
	GradeMax              int `mapstructure:"grade_max"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/lifecycle.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Hour)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Policy defaults
	viper.SetDefault("policy.auto_consent_window_days", 7)
	viper.SetDefault("policy.consent_validity_days", 365)
	viper.SetDefault("policy.grade_min", 0)
	viper.SetDefault("policy.grade_max", 12)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variable overrides
func bindEnvVars() {
	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("database.migrations_dir", "DATABASE_MIGRATIONS_DIR")
	_ = viper.BindEnv("policy.auto_consent_window_days", "POLICY_AUTO_CONSENT_WINDOW_DAYS")
	_ = viper.BindEnv("policy.consent_validity_days", "POLICY_CONSENT_VALIDITY_DAYS")
	_ = viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Policy.AutoConsentWindowDays <= 0 {
		return fmt.Errorf("auto consent window must be positive, got %d", c.Policy.AutoConsentWindowDays)
	}
	if c.Policy.ConsentValidityDays <= 0 {
		return fmt.Errorf("consent validity must be positive, got %d", c.Policy.ConsentValidityDays)
	}
	if c.Policy.GradeMin > c.Policy.GradeMax {
		return fmt.Errorf("grade range inverted: min %d > max %d", c.Policy.GradeMin, c.Policy.GradeMax)
	}
	return nil
}
