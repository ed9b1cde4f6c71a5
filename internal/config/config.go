package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN             string
	Environment       string
	HTTPAddr          string
	MigrationsDir     string
	AnalyticsInterval time.Duration
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win either way.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   os.Getenv("ENV"),
		HTTPAddr:      os.Getenv("HTTP_ADDR"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	cfg.AnalyticsInterval = 24 * time.Hour
	if raw := os.Getenv("ANALYTICS_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse ANALYTICS_INTERVAL: %w", err)
		}
		cfg.AnalyticsInterval = interval
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}
