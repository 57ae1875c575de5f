// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/piccolo/service/internal/storage"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// DatabaseURL enables upload history when set.
	DatabaseURL string
	// JWTSecret enables bearer auth on the photo API when set.
	JWTSecret string

	MaxUploadBytes int64

	// Object storage (S3-compatible: MinIO locally, AWS S3 in production)
	StorageBackend   string
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StoragePathStyle bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	return fromEnv()
}

// Reload re-reads configuration for a running process. Unlike Load, values
// in the .env file replace ones already in the environment, so an edited
// file takes effect.
func Reload() *Config {
	if err := godotenv.Overload(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	return fromEnv()
}

// storageDefaults returns the endpoint and addressing style used when they
// are not set. AWS S3 resolves its own endpoint and prefers virtual-hosted
// addressing; MinIO runs locally and needs path-style.
func storageDefaults(backend string) (endpoint, pathStyle string) {
	if backend == storage.BackendS3 {
		return "", "false"
	}
	return "localhost:9000", "true"
}

func fromEnv() *Config {
	backend := getEnv("STORAGE_BACKEND", storage.BackendMinio)
	endpoint, pathStyle := storageDefaults(backend)

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),

		StorageBackend:   backend,
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", endpoint),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "piccolo"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
		StoragePathStyle: getEnv("STORAGE_PATH_STYLE", pathStyle) == "true",
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Storage returns the options used to build the shared object store.
func (c *Config) Storage() storage.Options {
	return storage.Options{
		Backend:   c.StorageBackend,
		Endpoint:  c.StorageEndpoint,
		Region:    c.StorageRegion,
		AccessKey: c.StorageAccessKey,
		SecretKey: c.StorageSecretKey,
		Bucket:    c.StorageBucket,
		UseSSL:    c.StorageUseSSL,
		PathStyle: c.StoragePathStyle,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
