package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Admin    AdminConfig
	Assets   AssetsConfig
	LogDir   string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver        string // sqlite or postgres
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	AutoMigrate   bool
	MigrationsDir string // empty uses the embedded migrations
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// ClaimHold is how long a number stays held while its claim is in flight.
	ClaimHold time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	SelectionClaimed  string
	SelectionReleased string
	SelectionCanceled string
	WinnersAnnounced  string
	WinnersReset      string
}

// All returns every configured topic.
func (t TopicConfig) All() []string {
	return []string{t.SelectionClaimed, t.SelectionReleased, t.SelectionCanceled, t.WinnersAnnounced, t.WinnersReset}
}

type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt
	JWTSecret    string
	TokenTTL     time.Duration
	SecretCost   int // bcrypt cost for selection secrets
}

type AssetsConfig struct {
	UploadDir     string
	PublicBaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8080"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   0, // board event streams stay open
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "sqlite"),
			DSN:           getEnv("DB_DSN", "file:rifas.db?cache=shared"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			ClaimHold: time.Duration(getEnvInt("CLAIM_HOLD_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "raffle-events"),
			Topics: TopicConfig{
				SelectionClaimed:  getEnv("KAFKA_TOPIC_CLAIMED", "raffles.selection.claimed"),
				SelectionReleased: getEnv("KAFKA_TOPIC_RELEASED", "raffles.selection.released"),
				SelectionCanceled: getEnv("KAFKA_TOPIC_CANCELED", "raffles.selection.canceled"),
				WinnersAnnounced:  getEnv("KAFKA_TOPIC_WINNERS", "raffles.winners.announced"),
				WinnersReset:      getEnv("KAFKA_TOPIC_WINNERS_RESET", "raffles.winners.reset"),
			},
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			TokenTTL:     time.Duration(getEnvInt("JWT_TTL_MINUTES", 120)) * time.Minute,
			SecretCost:   getEnvInt("SECRET_BCRYPT_COST", 10),
		},
		Assets: AssetsConfig{
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		LogDir: getEnv("LOG_DIR", "logs"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value.
func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
