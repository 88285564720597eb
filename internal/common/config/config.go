// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Routing       RoutingConfig      `mapstructure:"routing"`
	Sweeps        SweepConfig        `mapstructure:"sweeps"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address            string `mapstructure:"address"`
	ReadTimeout        int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout       int    `mapstructure:"write_timeout"` // milliseconds
	MaxRecommendations int    `mapstructure:"max_recommendations"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Routing Configuration ---

// WeightSet holds the composite-score weights for one urgency tier. The
// five weights should sum to 1.0; validation enforces it approximately.
type WeightSet struct {
	Specialty    float64 `mapstructure:"specialty"`
	Workload     float64 `mapstructure:"workload"`
	Conversion   float64 `mapstructure:"conversion"`
	Rating       float64 `mapstructure:"rating"`
	ResponseTime float64 `mapstructure:"response_time"`
}

// RoutingConfig is the typed configuration for the scoring engine and the
// SLA lifecycle. It is loaded once at startup and immutable during a
// scoring or sweep run.
type RoutingConfig struct {
	SLAHoursByUrgency     map[string]int       `mapstructure:"sla_hours_by_urgency"`
	WeightsByUrgency      map[string]WeightSet `mapstructure:"weights_by_urgency"`
	WarningWindowHours    float64              `mapstructure:"warning_window_hours"`
	FeedbackWindowDaysMin int                  `mapstructure:"feedback_window_days_min"`
	FeedbackWindowDaysMax int                  `mapstructure:"feedback_window_days_max"`
	OverdueResendHours    int                  `mapstructure:"overdue_resend_hours"`
	MaxSendAttemptsPerDay int                  `mapstructure:"max_send_attempts_per_day"`
	DirectoryCacheTTL     int                  `mapstructure:"directory_cache_ttl"` // seconds
}

// SLAHours returns the configured SLA duration for an urgency tier.
func (r RoutingConfig) SLAHours(urgency string) time.Duration {
	if h, ok := r.SLAHoursByUrgency[urgency]; ok && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return time.Duration(r.SLAHoursByUrgency["medium"]) * time.Hour
}

// Weights returns the weight set for an urgency tier, falling back to the
// medium tier for unknown keys.
func (r RoutingConfig) Weights(urgency string) WeightSet {
	if w, ok := r.WeightsByUrgency[urgency]; ok {
		return w
	}
	return r.WeightsByUrgency["medium"]
}

// WarningWindow returns the warning lookahead as a duration.
func (r RoutingConfig) WarningWindow() time.Duration {
	return time.Duration(r.WarningWindowHours * float64(time.Hour))
}

// --- Sweep Scheduling ---
type SweepConfig struct {
	SLAIntervalMinutes      int `mapstructure:"sla_interval_minutes"`
	FeedbackIntervalMinutes int `mapstructure:"feedback_interval_minutes"`
	LockTTLSeconds          int `mapstructure:"lock_ttl_seconds"`
}

// NotificationConfig holds settings for the notification gateway.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Text struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"text"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
