package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Database struct {
	Driver     string `toml:"driver"`
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Name       string `toml:"name"`
	SQLitePath string `toml:"sqlite_path"`
}

type Loans struct {
	Port        string `toml:"port"`
	StorePrefix string `toml:"store_prefix"`
}

type Gateway struct {
	Port            string        `toml:"port"`
	LoansServiceURL string        `toml:"loans_service_url"`
	CatalogURL      string        `toml:"catalog_url"`
	CatalogAPIKey   string        `toml:"catalog_api_key"`
	Timeout         time.Duration `toml:"timeout"`
	BreakerFailures int           `toml:"breaker_failures"`
	BreakerCooldown time.Duration `toml:"breaker_cooldown"`
}

type Config struct {
	Database Database `toml:"database"`
	Loans    Loans    `toml:"loans"`
	Gateway  Gateway  `toml:"gateway"`
}

func Default() Config {
	return Config{
		Database: Database{
			Driver:     "postgres",
			Host:       "postgres",
			Port:       "5432",
			User:       "program",
			Password:   "test",
			Name:       "library",
			SQLitePath: "biblioteca.db",
		},
		Loans: Loans{
			Port:        "8070",
			StorePrefix: "biblioteca_",
		},
		Gateway: Gateway{
			Port:            "8080",
			LoansServiceURL: "http://localhost:8070",
			CatalogURL:      "https://www.googleapis.com/books/v1/volumes",
			Timeout:         10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, an
// optional .env file and finally the process environment. Later layers win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Loans.Port = getEnv("LOANS_PORT", cfg.Loans.Port)
	cfg.Loans.StorePrefix = getEnv("STORE_PREFIX", cfg.Loans.StorePrefix)

	cfg.Gateway.Port = getEnv("GATEWAY_PORT", cfg.Gateway.Port)
	cfg.Gateway.LoansServiceURL = getEnv("LOANS_SERVICE_URL", cfg.Gateway.LoansServiceURL)
	cfg.Gateway.CatalogURL = getEnv("CATALOG_URL", cfg.Gateway.CatalogURL)
	cfg.Gateway.CatalogAPIKey = getEnv("CATALOG_API_KEY", cfg.Gateway.CatalogAPIKey)

	if v := os.Getenv("BREAKER_FAILURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("BREAKER_FAILURES: %w", err)
		}
		cfg.Gateway.BreakerFailures = n
	}

	return cfg, nil
}

// DSN returns the postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
