package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		SignalTopic      string   `yaml:"signal_topic"`
		AlertTopic       string   `yaml:"alert_topic"`
		ObservationTopic string   `yaml:"observation_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Hyperliquid struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		InfoURL        string        `yaml:"info_url"`
		Wallets        []string      `yaml:"wallets"`
		Instruments    []string      `yaml:"instruments"`
		UniverseSize   int           `yaml:"universe_size"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"hyperliquid"`
	Signals struct {
		// EpsilonFloors maps instrument to the minimum classification
		// threshold in position units.
		EpsilonFloors map[string]float64 `yaml:"epsilon_floors"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"signals"`
	Health struct {
		MaxStaleness time.Duration `yaml:"max_staleness"`
		MinCoverage  float64       `yaml:"min_coverage"`
		FullCoverage float64       `yaml:"full_coverage"`
	} `yaml:"health"`
	Alerts struct {
		RegimeCooldown time.Duration `yaml:"regime_cooldown"`
		ExitCooldown   time.Duration `yaml:"exit_cooldown"`
		DailyCap       int           `yaml:"daily_cap"`
		StaleAfter     time.Duration `yaml:"stale_after"`
	} `yaml:"alerts"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("HYPERLIQUID_WS_URL"); v != "" {
		c.Hyperliquid.WebSocketURL = v
	}
	if v := os.Getenv("WALLETS"); v != "" {
		c.Hyperliquid.Wallets = strings.Split(v, ",")
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Hyperliquid.Instruments = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Signals.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Hyperliquid.WebSocketURL == "" {
		return fmt.Errorf("hyperliquid.websocket_url is required")
	}
	if len(c.Hyperliquid.Instruments) == 0 {
		return fmt.Errorf("hyperliquid.instruments cannot be empty")
	}
	if len(c.Hyperliquid.Wallets) == 0 {
		return fmt.Errorf("hyperliquid.wallets cannot be empty")
	}
	if c.Health.MinCoverage < 0 || c.Health.MinCoverage > 100 {
		return fmt.Errorf("health.min_coverage must be within [0,100]")
	}
	return nil
}
