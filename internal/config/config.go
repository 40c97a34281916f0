package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines krikri configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Transport  TransportConfig  `yaml:"transport"`
	DB         DBConfig         `yaml:"db"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	Harvest    HarvestConfig    `yaml:"harvest"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig selects how the MCP server is exposed: "http" or "stdio".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type RedisConfig struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// HarvestConfig tunes the OAI-PMH client.
type HarvestConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
	UserAgent string        `yaml:"user_agent"`
}

type EnrichmentConfig struct {
	FailurePolicy string `yaml:"failure_policy"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type WorkerConfig struct {
	Queues      []string      `yaml:"queues"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Path: "krikri.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			URL:            "redis://localhost:6379",
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Second,
		},
		Harvest: HarvestConfig{
			Timeout:   60 * time.Second,
			RateBurst: 1,
			UserAgent: "krikri/1.0",
		},
		Enrichment: EnrichmentConfig{
			FailurePolicy: "keep",
		},
		Tracing: TracingConfig{
			ServiceName: "krikri",
		},
		Worker: WorkerConfig{
			PollTimeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("KRIKRI_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("KRIKRI_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("KRIKRI_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid KRIKRI_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("KRIKRI_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("KRIKRI_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("KRIKRI_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("KRIKRI_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if url := os.Getenv("KRIKRI_REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if s := os.Getenv("KRIKRI_HARVEST_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid KRIKRI_HARVEST_TIMEOUT: %w", err)
		}
		cfg.Harvest.Timeout = d
	}
	if s := os.Getenv("KRIKRI_HARVEST_RATE_LIMIT"); s != "" {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid KRIKRI_HARVEST_RATE_LIMIT: %w", err)
		}
		cfg.Harvest.RateLimit = rate
	}
	if ua := os.Getenv("KRIKRI_HARVEST_USER_AGENT"); ua != "" {
		cfg.Harvest.UserAgent = ua
	}
	if policy := os.Getenv("KRIKRI_ENRICHMENT_FAILURE_POLICY"); policy != "" {
		cfg.Enrichment.FailurePolicy = policy
	}
	if s := os.Getenv("KRIKRI_TRACING_ENABLED"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid KRIKRI_TRACING_ENABLED: %w", err)
		}
		cfg.Tracing.Enabled = enabled
	}
	if queues := os.Getenv("KRIKRI_WORKER_QUEUES"); queues != "" {
		cfg.Worker.Queues = splitList(queues)
	}
	return nil
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

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
