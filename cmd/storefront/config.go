package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
)

const (
	BackendMemory     = "memory"
	BackendPersistent = "persistent"
)

type Config struct {
	HTTPPort        string
	StorageBackend  string
	MongoURI        string
	MongoDBName     string
	Postgres        *repository.Credentials
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	Placement       service.PlacementMode
	Shortfall       service.ShortfallPolicy
	Lifecycle       domain.Lifecycle
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		StorageBackend:  getEnv("STORAGE_BACKEND", BackendMemory),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: 10 * time.Second,
	}

	if cfg.StorageBackend != BackendMemory && cfg.StorageBackend != BackendPersistent {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Postgres = &repository.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              port,
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
	}

	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	if cfg.Placement, err = service.ParsePlacementMode(getEnv("ORDER_PLACEMENT_MODE", "")); err != nil {
		return nil, err
	}
	if cfg.Shortfall, err = service.ParseShortfallPolicy(getEnv("ORDER_SHORTFALL_POLICY", "")); err != nil {
		return nil, err
	}
	if cfg.Lifecycle, err = domain.NewOrderLifecycle(getEnv("ORDER_STATUS_POLICY", "")); err != nil {
		return nil, err
	}
	return cfg, nil
}
