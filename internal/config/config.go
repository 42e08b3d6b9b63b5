// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Moderation  ModerationConfig
	Classifier  ClassifierConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

// ModerationConfig tunes the report aggregation and trust ledger policies.
type ModerationConfig struct {
	// Auto-hide threshold: weight_threshold = BaseThreshold * site_scale.
	BaseThreshold       float64
	ReferencePopulation int64 // population at which site_scale == 1.0
	ScaleRecomputeMins  int   // how often site_scale is refreshed

	// Trust curve. trust = clamp(1.0 + ConfirmStep*confirmed - RejectStep*rejected).
	TrustConfirmStep float64
	TrustRejectStep  float64
	TrustFloor       float64 // > 0, prevents permanent lockout
	TrustCap         float64

	// Final weight bounds after role multiplication.
	WeightMin float64
	WeightMax float64

	// Role weight table. Closed enum; free-text roles are never weighted.
	RoleWeightUser      float64
	RoleWeightMaker     float64
	RoleWeightModerator float64
	RoleWeightAdmin     float64

	// High-severity handling.
	SeverityMultiplier float64 // applied to reports with reason=abuse
	SeverityAutoHide   bool    // hide directly instead of queueing for review

	// System-generated reports (classifier flags).
	SystemReporterID   string
	SystemReportWeight float64

	// Activity decay applied at recompute time.
	ActivityDecayPerDay float64

	// Aggregation conflict retry policy.
	AggregateRetries   int
	AggregateBackoffMS int

	ImageFallbackPolicy string
}

type ClassifierConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	ImageURL string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("SERVER_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "makerden"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Moderation: ModerationConfig{
			BaseThreshold:       getEnvAsFloat("MOD_BASE_THRESHOLD", 3.0),
			ReferencePopulation: int64(getEnvAsInt("MOD_REFERENCE_POPULATION", 100)),
			ScaleRecomputeMins:  getEnvAsInt("MOD_SCALE_RECOMPUTE_MINS", 15),
			TrustConfirmStep:    getEnvAsFloat("MOD_TRUST_CONFIRM_STEP", 0.1),
			TrustRejectStep:     getEnvAsFloat("MOD_TRUST_REJECT_STEP", 0.15),
			TrustFloor:          getEnvAsFloat("MOD_TRUST_FLOOR", 0.2),
			TrustCap:            getEnvAsFloat("MOD_TRUST_CAP", 2.0),
			WeightMin:           getEnvAsFloat("MOD_WEIGHT_MIN", 0.1),
			WeightMax:           getEnvAsFloat("MOD_WEIGHT_MAX", 5.0),
			RoleWeightUser:      getEnvAsFloat("MOD_ROLE_WEIGHT_USER", 1.0),
			RoleWeightMaker:     getEnvAsFloat("MOD_ROLE_WEIGHT_MAKER", 1.5),
			RoleWeightModerator: getEnvAsFloat("MOD_ROLE_WEIGHT_MODERATOR", 2.5),
			RoleWeightAdmin:     getEnvAsFloat("MOD_ROLE_WEIGHT_ADMIN", 3.0),
			SeverityMultiplier:  getEnvAsFloat("MOD_SEVERITY_MULTIPLIER", 1.5),
			SeverityAutoHide:    getEnvAsBool("MOD_SEVERITY_AUTO_HIDE", false),
			SystemReporterID:    getEnv("MOD_SYSTEM_REPORTER_ID", "00000000-0000-0000-0000-000000000001"),
			SystemReportWeight:  getEnvAsFloat("MOD_SYSTEM_REPORT_WEIGHT", 2.5),
			ActivityDecayPerDay: getEnvAsFloat("MOD_ACTIVITY_DECAY_PER_DAY", 0.05),
			AggregateRetries:    getEnvAsInt("MOD_AGGREGATE_RETRIES", 3),
			AggregateBackoffMS:  getEnvAsInt("MOD_AGGREGATE_BACKOFF_MS", 25),
			ImageFallbackPolicy: getEnv("MOD_IMAGE_FALLBACK_POLICY", "queue_for_review"),
		},
		Classifier: ClassifierConfig{
			APIKey:   getEnv("CLASSIFIER_API_KEY", ""),
			BaseURL:  getEnv("CLASSIFIER_BASE_URL", ""),
			Model:    getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			ImageURL: getEnv("CLASSIFIER_IMAGE_URL", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	m := c.Moderation
	if m.BaseThreshold <= 0 {
		return fmt.Errorf("moderation base threshold must be positive")
	}
	if m.TrustFloor <= 0 || m.TrustFloor >= m.TrustCap {
		return fmt.Errorf("trust floor must be positive and below the cap")
	}
	if m.WeightMin <= 0 || m.WeightMin >= m.WeightMax {
		return fmt.Errorf("weight bounds are inconsistent")
	}
	if policy := m.ImageFallbackPolicy; policy != "queue_for_review" &&
		policy != "mark_sensitive" && policy != "ignore" {
		return fmt.Errorf("unknown image fallback policy %q", policy)
	}

	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
