package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	DBPath      string
	Fetcher     string
	Firecrawl   FirecrawlConfig
	Vision      VisionConfig
	S3          S3Config
	Supabase    SupabaseConfig
	Blob        BlobConfig
	Scheduler   SchedulerConfig
	Retry       RetryConfig
	LogLevel    string
	LogPath     string
	SourcesDir  string
	Sources     map[string]*SourceConfig
}

type FirecrawlConfig struct {
	APIKey  string
	BaseURL string
	RPS     float64
}

type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for R2, Spaces, MinIO
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
}

func (c SupabaseConfig) Enabled() bool {
	return c.URL != "" && c.ServiceKey != ""
}

type BlobConfig struct {
	LocalDir string
	MaxBytes int64
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "caixa.db"),
		Fetcher:     getEnv("FETCHER", "firecrawl"),
		Firecrawl: FirecrawlConfig{
			APIKey:  os.Getenv("FIRECRAWL_API_KEY"),
			BaseURL: getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
			RPS:     getEnvFloat("FIRECRAWL_RPS", 2),
		},
		Vision: VisionConfig{
			APIKey:  os.Getenv("VISION_API_KEY"),
			BaseURL: os.Getenv("VISION_BASE_URL"),
			Model:   getEnv("VISION_MODEL", "google/gemini-2.5-flash"),
			Timeout: 60 * time.Second,
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			Bucket:     getEnv("SUPABASE_BUCKET", "property-images"),
		},
		Blob: BlobConfig{
			LocalDir: getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes: 5 * 1024 * 1024,
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Retry: RetryConfig{
			MaxAttempts:  getEnvInt("FETCH_RETRIES", 1),
			InitialDelay: time.Second,
		},
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPath:    getEnv("LOG_FILE", "daemon.log"),
		SourcesDir: getEnv("SOURCES_DIR", "config/sources"),
		Sources:    make(map[string]*SourceConfig),
	}

	cfg.DBDriver = os.Getenv("DB_DRIVER")
	if cfg.DBDriver == "" {
		if cfg.DatabaseURL != "" {
			cfg.DBDriver = "postgres"
		} else {
			cfg.DBDriver = "sqlite"
		}
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}
	if _, ok := cfg.Sources[DefaultSourceID]; !ok {
		cfg.Sources[DefaultSourceID] = DefaultSource()
	}

	return cfg, nil
}

// Validate reports every missing setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	switch c.Fetcher {
	case "firecrawl":
		if c.Firecrawl.APIKey == "" {
			errs = append(errs, errors.New("FIRECRAWL_API_KEY is required for the firecrawl fetcher"))
		}
	case "browser":
	default:
		errs = append(errs, fmt.Errorf("unknown FETCHER %q", c.Fetcher))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("FETCH_RETRIES must be at least 1"))
	}

	for id, src := range c.Sources {
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) loadSourceConfigs() error {
	entries, err := os.ReadDir(c.SourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SourcesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		src, err := ParseSource(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}

		c.Sources[src.ID] = src
	}

	return nil
}

// ParseSource decodes one source YAML document and fills defaults.
func ParseSource(data []byte) (*SourceConfig, error) {
	var src SourceConfig
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, err
	}
	if src.ID == "" {
		return nil, errors.New("missing id")
	}
	src.WithDefaults()
	return &src, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}
