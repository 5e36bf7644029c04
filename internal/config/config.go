package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Storage StorageConfig
	Images  ImageProviderConfig
	Worker  WorkerConfig
}

type ServerConfig struct {
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig configures the S3-compatible artifact store
type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// ImageProviderConfig configures the external image-generation API
type ImageProviderConfig struct {
	APIKey        string
	BaseURL       string
	Width         int
	Height        int
	MaxConcurrent int
	MaxRetries    int
	Timeout       int // seconds, per request
}

type WorkerConfig struct {
	Concurrency int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("IMAGE_API_KEY")
	readSecret("STORAGE_ACCOUNT_ID")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("images.api_key", "IMAGE_API_KEY")
	_ = viper.BindEnv("images.base_url", "IMAGE_API_BASE_URL")
	_ = viper.BindEnv("images.width", "IMAGE_WIDTH")
	_ = viper.BindEnv("images.height", "IMAGE_HEIGHT")
	_ = viper.BindEnv("images.max_concurrent", "IMAGE_MAX_CONCURRENT")
	_ = viper.BindEnv("images.max_retries", "IMAGE_MAX_RETRIES")
	_ = viper.BindEnv("images.timeout", "IMAGE_TIMEOUT")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	// Defaults
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.bucket_name", "qmv-storage")

	// Image provider defaults
	viper.SetDefault("images.base_url", "https://api.runware.ai")
	viper.SetDefault("images.width", 1024)
	viper.SetDefault("images.height", 1024)
	viper.SetDefault("images.max_concurrent", 8)
	viper.SetDefault("images.max_retries", 2)
	viper.SetDefault("images.timeout", 120)

	// Worker defaults
	viper.SetDefault("worker.concurrency", 2)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Images: ImageProviderConfig{
			APIKey:        viper.GetString("images.api_key"),
			BaseURL:       viper.GetString("images.base_url"),
			Width:         viper.GetInt("images.width"),
			Height:        viper.GetInt("images.height"),
			MaxConcurrent: viper.GetInt("images.max_concurrent"),
			MaxRetries:    viper.GetInt("images.max_retries"),
			Timeout:       viper.GetInt("images.timeout"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
		},
	}

	return cfg, nil
}
