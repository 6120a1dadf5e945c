// Package config loads process configuration from the environment,
// following the teacher pattern of a single Load() that populates a
// typed Config struct with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database        DatabaseConfig
	Server          ServerConfig
	App             AppConfig
	Reconciliation  ReconciliationConfig
	PriorityBands   PriorityBandsConfig
	Kafka           KafkaConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	LogLevel  string
	BatchSize int
}

// ReconciliationConfig carries every threshold the Assignment Engine and
// Reconciliation Orchestrator consult. Zero fields are never passed to
// those packages directly — Load() always fills in the spec defaults.
type ReconciliationConfig struct {
	AmountTolerancePct      float64
	DateWindowDays          int
	MatchThreshold          int
	ReviewRequiredThreshold int
	AutoMatchThreshold      int
	AutoJEThreshold         int
	SplitMatchPenalty       int
	MaxMatrixCells          int
	ScoreWorkers            int
	LLMEnabled              bool
	LLMTimeout              time.Duration
	StoreTimeout            time.Duration
	VisionConfidenceFloor   float64
}

// PriorityBandsConfig mirrors domain.PriorityBands for env-driven
// overrides of the default exception/AP-item priority thresholds.
type PriorityBandsConfig struct {
	CriticalAmount float64
	HighAmount     float64
	MediumAmount   float64
}

// KafkaConfig holds the audit/notification Kafka settings read from the
// environment; Brokers is empty by default. cmd/api does not read these
// settings and always wires the in-process log-based sinks.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	NotifyTopic  string
}

func Load() (*Config, error) {
	batchSize, err := strconv.Atoi(getEnv("BATCH_SIZE", "10000"))
	if err != nil {
		batchSize = 10000
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "reconcore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			BatchSize: batchSize,
		},
		Reconciliation: ReconciliationConfig{
			AmountTolerancePct:      getEnvFloat("AMOUNT_TOLERANCE_PCT", 5),
			DateWindowDays:          getEnvInt("DATE_WINDOW_DAYS", 7),
			MatchThreshold:          getEnvInt("MATCH_THRESHOLD", 80),
			ReviewRequiredThreshold: getEnvInt("REVIEW_REQUIRED_THRESHOLD", 60),
			AutoMatchThreshold:      getEnvInt("AUTO_MATCH_THRESHOLD", 80),
			AutoJEThreshold:         getEnvInt("AUTO_JE_THRESHOLD", 90),
			SplitMatchPenalty:       getEnvInt("SPLIT_MATCH_PENALTY", 5),
			MaxMatrixCells:          getEnvInt("MAX_MATRIX_CELLS", 1000000),
			ScoreWorkers:            getEnvInt("SCORE_WORKERS", 4),
			LLMEnabled:              getEnvBool("LLM_ENABLED", false),
			LLMTimeout:              getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			StoreTimeout:            getEnvDuration("STORE_TIMEOUT", 10*time.Second),
			VisionConfidenceFloor:   getEnvFloat("VISION_CONFIDENCE_FLOOR", 0.5),
		},
		PriorityBands: PriorityBandsConfig{
			CriticalAmount: getEnvFloat("PRIORITY_CRITICAL_AMOUNT", 10000),
			HighAmount:     getEnvFloat("PRIORITY_HIGH_AMOUNT", 5000),
			MediumAmount:   getEnvFloat("PRIORITY_MEDIUM_AMOUNT", 1000),
		},
		Kafka: KafkaConfig{
			Brokers:     splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			AuditTopic:  getEnv("KAFKA_AUDIT_TOPIC", "reconcore.audit"),
			NotifyTopic: getEnv("KAFKA_NOTIFY_TOPIC", "reconcore.notifications"),
		},
	}, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
