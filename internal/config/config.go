package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Chat     ChatConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PresignTTL time.Duration
}

// ChatConfig bounds the synchronization engine's behavior.
type ChatConfig struct {
	MaxFileSizeBytes int64
	SettleTimeout    time.Duration
	GraceWindow      time.Duration
	UploadQuota      int
	UploadQuotaWin   time.Duration
}

type JWTConfig struct {
	Secret string
}

// Load reads configuration from the environment. A local .env file is
// honored when present; missing keys fall back to development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "medshift"),
			Password: getEnv("DB_PASSWORD", "medshift"),
			Name:     getEnv("DB_NAME", "medshift_chat"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Region:     getEnv("S3_REGION", "us-east-1"),
			Bucket:     getEnv("S3_BUCKET", "medshift-attachments"),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Chat: ChatConfig{
			MaxFileSizeBytes: int64(getEnvAsInt("CHAT_MAX_FILE_BYTES", 10<<20)),
			SettleTimeout:    getEnvAsDuration("CHAT_SETTLE_TIMEOUT", 30*time.Second),
			GraceWindow:      getEnvAsDuration("CHAT_GRACE_WINDOW", 15*time.Second),
			UploadQuota:      getEnvAsInt("CHAT_UPLOAD_QUOTA", 30),
			UploadQuotaWin:   getEnvAsDuration("CHAT_UPLOAD_QUOTA_WINDOW", time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "dev-secret"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
