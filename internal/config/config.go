package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	DefaultConfigPath = ".damagereview/config.json"
	envPrefix         = "DAMAGEREVIEW_"
)

// Store selects where review state is persisted.
type Store struct {
	Backend     string `json:"backend"` // memory, file, redis or postgres
	Path        string `json:"path"`
	RedisURL    string `json:"redisURL"`
	DatabaseURL string `json:"databaseURL"`
}

// Preview selects how display URIs for photos are produced.
type Preview struct {
	Backend       string `json:"backend"` // file or minio
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"accessKey"`
	SecretKey     string `json:"secretKey"`
	Bucket        string `json:"bucket"`
	UseSSL        bool   `json:"useSSL"`
	ExpirySeconds int    `json:"expirySeconds"`
}

func (p Preview) Expiry() time.Duration {
	return time.Duration(p.ExpirySeconds) * time.Second
}

// Config represents the JSON config structure.
type Config struct {
	ListenAddr    string  `json:"listenAddr"`
	UploadLimitMB int     `json:"uploadLimitMB"`
	NearestLimit  int     `json:"nearestLimit"`
	Workers       int     `json:"workers"`
	Locale        string  `json:"locale"`
	CacheMetadata bool    `json:"cacheMetadata"`
	Store         Store   `json:"store"`
	Preview       Preview `json:"preview"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		UploadLimitMB: 512,
		NearestLimit:  10,
		Workers:       runtime.GOMAXPROCS(0),
		Locale:        "und",
		CacheMetadata: true,
		Store: Store{
			Backend: "file",
		},
		Preview: Preview{
			Backend:       "file",
			Endpoint:      "localhost:9000",
			AccessKey:     "minioadmin",
			SecretKey:     "minioadmin",
			Bucket:        "damage-photos",
			ExpirySeconds: int((24 * time.Hour).Seconds()),
		},
	}
}

// Read loads the JSON config from path, or from ~/.damagereview/config.json
// when path is empty, then applies .env and DAMAGEREVIEW_* overrides.
// A missing config file is not an error.
func Read(path string) (Config, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, DefaultConfigPath)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("No config file at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file at %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env: %v", err)
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.UploadLimitMB = getIntEnv("UPLOAD_LIMIT_MB", c.UploadLimitMB)
	c.NearestLimit = getIntEnv("NEAREST_LIMIT", c.NearestLimit)
	c.Workers = getIntEnv("WORKERS", c.Workers)
	c.Locale = getEnv("LOCALE", c.Locale)
	c.CacheMetadata = getBoolEnv("CACHE_METADATA", c.CacheMetadata)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.RedisURL = getEnv("REDIS_URL", c.Store.RedisURL)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)

	c.Preview.Backend = getEnv("PREVIEW_BACKEND", c.Preview.Backend)
	c.Preview.Endpoint = getEnv("MINIO_ENDPOINT", c.Preview.Endpoint)
	c.Preview.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Preview.AccessKey)
	c.Preview.SecretKey = getEnv("MINIO_SECRET_KEY", c.Preview.SecretKey)
	c.Preview.Bucket = getEnv("MINIO_BUCKET", c.Preview.Bucket)
	c.Preview.UseSSL = getBoolEnv("MINIO_USE_SSL", c.Preview.UseSSL)
	c.Preview.ExpirySeconds = getIntEnv("PREVIEW_EXPIRY_SECONDS", c.Preview.ExpirySeconds)
}

// normalize replaces invalid values with defaults.
func (c *Config) normalize() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.UploadLimitMB <= 0 {
		c.UploadLimitMB = def.UploadLimitMB
	}
	if c.NearestLimit <= 0 {
		c.NearestLimit = def.NearestLimit
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if _, err := language.Parse(c.Locale); err != nil {
		log.Printf("Warning: invalid locale %q, using %q", c.Locale, def.Locale)
		c.Locale = def.Locale
	}
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	c.Preview.Backend = strings.ToLower(c.Preview.Backend)
	if c.Preview.Backend == "" {
		c.Preview.Backend = def.Preview.Backend
	}
	if c.Preview.ExpirySeconds <= 0 {
		c.Preview.ExpirySeconds = def.Preview.ExpirySeconds
	}
}

// LanguageTag returns the configured collation locale.
func (c Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// StorePath returns the file store location, defaulting to ~/.damagereview/review.json.
func (c Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, filepath.Dir(DefaultConfigPath), "review.json"), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
