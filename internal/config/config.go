package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port                 string
	DatabaseURL          string
	MigrationsDir        string
	JWTSecret            string
	JWTIssuer            string
	AccessTTLSeconds     int64
	RefreshTTLSeconds    int64
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	MediaStoragePath     string
	PublicBaseURL        string
	NotifyDriver         string
	NotifyWebhookURL     string
	NotifyTimeoutSeconds int
	AMQPURL              string
	AMQPQueue            string
	MQTTBroker           string
	MQTTClientID         string
	MQTTTopic            string
	CondominiumName      string
	Timezone             string
	SessionTTLSeconds    int
	MetricsSampleSeconds int
	PendingListLimit     int
	MinFreeDiskMB        int
	LogLevel             string
	LogFormat            string
	LogDir               string
	LogRetentionDays     int
	CorsOrigins          []string
}

func Load() Config {
	return Config{
		Port:                 envOr("PORT", "8080"),
		DatabaseURL:          mustEnv("DATABASE_URL"),
		MigrationsDir:        envOr("MIGRATIONS_DIR", "migrations"),
		JWTSecret:            mustEnv("JWT_SECRET"),
		JWTIssuer:            envOr("JWT_ISSUER", "frontdesk"),
		AccessTTLSeconds:     int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		RefreshTTLSeconds:    int64(envOrInt("REFRESH_TTL_SECONDS", 1209600)),
		RedisAddr:            envOr("REDIS_ADDR", ""),
		RedisPassword:        envOr("REDIS_PASSWORD", ""),
		RedisDB:              envOrInt("REDIS_DB", 0),
		MediaStoragePath:     envOr("MEDIA_STORAGE_PATH", "storage/media"),
		PublicBaseURL:        strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		NotifyDriver:         strings.ToLower(envOr("NOTIFY_DRIVER", "webhook")),
		NotifyWebhookURL:     envOr("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeoutSeconds: envOrInt("NOTIFY_TIMEOUT_SECONDS", 10),
		AMQPURL:              envOr("AMQP_URL", ""),
		AMQPQueue:            envOr("AMQP_QUEUE", "notifications"),
		MQTTBroker:           envOr("MQTT_BROKER", ""),
		MQTTClientID:         envOr("MQTT_CLIENT_ID", "frontdesk-api"),
		MQTTTopic:            envOr("MQTT_TOPIC", "frontdesk/notifications"),
		CondominiumName:      envOr("CONDOMINIUM_DISPLAY_NAME", ""),
		Timezone:             envOr("TIMEZONE", "America/Sao_Paulo"),
		SessionTTLSeconds:    envOrInt("SESSION_TTL_SECONDS", 0),
		MetricsSampleSeconds: envOrInt("METRICS_SAMPLE_SECONDS", 30),
		PendingListLimit:     envOrInt("PENDING_LIST_LIMIT", 100),
		MinFreeDiskMB:        envOrInt("MIN_FREE_DISK_MB", 512),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		LogFormat:            envOr("LOG_FORMAT", "json"),
		LogDir:               envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays:     envOrInt("LOG_RETENTION_DAYS", 7),
		CorsOrigins:          parseCSV(envOr("CORS_ORIGINS", "")),
	}
}

func (c Config) NotifyTimeout() time.Duration {
	if c.NotifyTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// SessionTTL is zero when sessions should last until logout.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// Location falls back to UTC when the zone database lacks Timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewCircuitBreaker opens after three consecutive failures and lets a trial call through after timeout.
func NewCircuitBreaker(name string, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
