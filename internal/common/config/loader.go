// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DB_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Notifications.Email.FromEmail == "" {
		if val := os.Getenv("NOTIFICATIONS_FROM_EMAIL"); val != "" {
			cfg.Notifications.Email.FromEmail = val
		}
	}
	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
// The weight tables below are the documented scoring configuration: at low
// and medium urgency the specialty match and conversion history dominate;
// at high urgency the weight shifts toward availability (workload) and
// response speed.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}
	if cfg.Server.MaxRecommendations == 0 {
		cfg.Server.MaxRecommendations = 5
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if len(cfg.Routing.SLAHoursByUrgency) == 0 {
		cfg.Routing.SLAHoursByUrgency = map[string]int{
			"low":    24,
			"medium": 8,
			"high":   4,
		}
	}
	if len(cfg.Routing.WeightsByUrgency) == 0 {
		cfg.Routing.WeightsByUrgency = map[string]WeightSet{
			"low": {
				Specialty:    0.30,
				Conversion:   0.25,
				Rating:       0.15,
				Workload:     0.15,
				ResponseTime: 0.15,
			},
			"medium": {
				Specialty:    0.30,
				Conversion:   0.25,
				Rating:       0.15,
				Workload:     0.15,
				ResponseTime: 0.15,
			},
			"high": {
				Workload:     0.30,
				ResponseTime: 0.25,
				Specialty:    0.20,
				Conversion:   0.15,
				Rating:       0.10,
			},
		}
	}
	if cfg.Routing.WarningWindowHours == 0 {
		cfg.Routing.WarningWindowHours = 2
	}
	if cfg.Routing.FeedbackWindowDaysMin == 0 {
		cfg.Routing.FeedbackWindowDaysMin = 6
	}
	if cfg.Routing.FeedbackWindowDaysMax == 0 {
		cfg.Routing.FeedbackWindowDaysMax = 7
	}
	if cfg.Routing.OverdueResendHours == 0 {
		cfg.Routing.OverdueResendHours = 4
	}
	if cfg.Routing.MaxSendAttemptsPerDay == 0 {
		cfg.Routing.MaxSendAttemptsPerDay = 3
	}
	if cfg.Routing.DirectoryCacheTTL == 0 {
		cfg.Routing.DirectoryCacheTTL = 30
	}

	// Sweep cadence must stay at or below half the warning window or some
	// warnings may be missed entirely.
	if cfg.Sweeps.SLAIntervalMinutes == 0 {
		cfg.Sweeps.SLAIntervalMinutes = 30
	}
	if cfg.Sweeps.FeedbackIntervalMinutes == 0 {
		cfg.Sweeps.FeedbackIntervalMinutes = 360
	}
	if cfg.Sweeps.LockTTLSeconds == 0 {
		cfg.Sweeps.LockTTLSeconds = 600
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	for _, tier := range []string{"low", "medium", "high"} {
		if _, ok := cfg.Routing.SLAHoursByUrgency[tier]; !ok {
			return fmt.Errorf("routing.sla_hours_by_urgency.%s is required", tier)
		}
		w, ok := cfg.Routing.WeightsByUrgency[tier]
		if !ok {
			return fmt.Errorf("routing.weights_by_urgency.%s is required", tier)
		}
		sum := w.Specialty + w.Workload + w.Conversion + w.Rating + w.ResponseTime
		if math.Abs(sum-1.0) > 0.01 {
			return fmt.Errorf("routing.weights_by_urgency.%s must sum to 1.0, got %.3f", tier, sum)
		}
	}

	if cfg.Routing.FeedbackWindowDaysMin >= cfg.Routing.FeedbackWindowDaysMax {
		return fmt.Errorf("routing.feedback_window_days_min must be below feedback_window_days_max")
	}
	if float64(cfg.Sweeps.SLAIntervalMinutes) > cfg.Routing.WarningWindowHours*30 {
		return fmt.Errorf("sweeps.sla_interval_minutes must be at most half the warning window")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
