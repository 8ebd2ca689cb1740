package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Geo      GeoConfig      `yaml:"geo"`
	Media    MediaConfig    `yaml:"media"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// InMemory swaps PostgreSQL for process-local repositories
	InMemory bool   `yaml:"in_memory"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
}

// RedisConfig holds query cache configuration
type RedisConfig struct {
	URL string `yaml:"url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// GeoConfig holds picker bounds for Realm radii, in meters
type GeoConfig struct {
	MinRadius float64 `yaml:"min_radius"`
	MaxRadius float64 `yaml:"max_radius"`
}

// CompressionStep is one retry attempt's encoder settings
type CompressionStep struct {
	Quality      int `yaml:"quality"`
	MaxDimension int `yaml:"max_dimension"`
}

// MediaConfig holds upload retry configuration
type MediaConfig struct {
	MaxAttempts int               `yaml:"max_attempts"`
	BackoffBase time.Duration     `yaml:"backoff_base"`
	BackoffMax  time.Duration     `yaml:"backoff_max"`
	Steps       []CompressionStep `yaml:"steps"`
}

// CacheConfig holds query cache TTL
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Configuration validation errors
var (
	ErrMissingDatabase = errors.New("database url or host is required")
	ErrMissingBucket   = errors.New("storage bucket is required")
	ErrMissingJWT      = errors.New("jwt secret is required")
	ErrInvalidRadius   = errors.New("geo radius bounds are invalid")
	ErrInvalidSteps    = errors.New("media compression steps must cover every attempt and strictly decrease")
)

// Default values
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultRegion      = "us-east-1"
	DefaultLogLevel    = "info"
	DefaultMinRadius   = 5.0
	DefaultMaxRadius   = 1000.0
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 8 * time.Second
	DefaultCacheTTL    = 5 * time.Minute
	DefaultMaxUploadMB = 15
)

// DefaultSteps are the compression settings for attempts 1..3
var DefaultSteps = []CompressionStep{
	{Quality: 85, MaxDimension: 1920},
	{Quality: 70, MaxDimension: 1440},
	{Quality: 55, MaxDimension: 1024},
}

// Load reads configuration from a YAML file, then applies environment overrides
// and defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&c.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&c.Storage.Bucket, "STORAGE_BUCKET")
	setString(&c.Storage.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")

	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("PORT must be a valid integer: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.MaxUploadMB <= 0 {
		c.Storage.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Geo.MinRadius == 0 {
		c.Geo.MinRadius = DefaultMinRadius
	}
	if c.Geo.MaxRadius == 0 {
		c.Geo.MaxRadius = DefaultMaxRadius
	}
	if c.Media.MaxAttempts <= 0 {
		c.Media.MaxAttempts = DefaultMaxAttempts
	}
	if c.Media.BackoffBase <= 0 {
		c.Media.BackoffBase = DefaultBackoffBase
	}
	if c.Media.BackoffMax <= 0 {
		c.Media.BackoffMax = DefaultBackoffMax
	}
	if len(c.Media.Steps) == 0 {
		c.Media.Steps = append([]CompressionStep(nil), DefaultSteps...)
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
}

// Validate reports every missing or inconsistent value
func (c *Config) Validate() error {
	var errs []error

	if !c.Database.InMemory && c.Database.URL == "" && c.Database.Host == "" {
		errs = append(errs, ErrMissingDatabase)
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, ErrMissingBucket)
	}
	if c.JWT.Secret == "" {
		errs = append(errs, ErrMissingJWT)
	}
	if c.Geo.MinRadius <= 0 || c.Geo.MaxRadius < c.Geo.MinRadius {
		errs = append(errs, ErrInvalidRadius)
	}
	if !stepsDecrease(c.Media.Steps, c.Media.MaxAttempts) {
		errs = append(errs, ErrInvalidSteps)
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func stepsDecrease(steps []CompressionStep, attempts int) bool {
	if len(steps) < attempts {
		return false
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].Quality >= steps[i-1].Quality || steps[i].MaxDimension >= steps[i-1].MaxDimension {
			return false
		}
	}
	return true
}

func setString(dst *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}
