package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Netflow struct {
		Window        int     `yaml:"window" default:"7" validate:"gte=1"`
		MinPeriods    int     `yaml:"min_periods" validate:"gte=0"`
		ZThreshold    float64 `yaml:"z_threshold" default:"2" validate:"gt=0"`
		FlagThreshold float64 `yaml:"flag_threshold" default:"2.5" validate:"gt=0"`
		TopK          int     `yaml:"top_k" default:"10" validate:"gte=1"`
	} `yaml:"netflow"`
	Token struct {
		Contract string `yaml:"contract" default:"0x58b6a8a3302369daec383334672404ee733ab239"`
		Symbol   string `yaml:"symbol" default:"LPT"`
		Decimals int32  `yaml:"decimals" default:"18" validate:"gte=0"`
	} `yaml:"token"`
	// Exchanges maps a label to its custody address.
	Exchanges map[string]string `yaml:"exchanges"`
	Agent     struct {
		Enabled bool `yaml:"enabled" default:"true"`
		Memory  struct {
			Backend string        `yaml:"backend" default:"file" validate:"oneof=file redis"`
			Path    string        `yaml:"path" default:"data/agent_memory.json"`
			Key     string        `yaml:"key" default:"netflow:agent:seen"`
			LockTTL time.Duration `yaml:"lock_ttl" default:"10m"`
		} `yaml:"memory"`
		ReportDir     string        `yaml:"report_dir" default:"docs"`
		Interval      time.Duration `yaml:"interval" default:"1h"`
		RotateMonthly bool          `yaml:"rotate_monthly"`
		LookbackDays  int           `yaml:"lookback_days" default:"60" validate:"gte=1"`
		CSVTotal      string        `yaml:"csv_total"`
	} `yaml:"agent"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"netflow.alerts"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		// Relay feeds /ws/alerts from the topic instead of the in-process agent.
		Relay struct {
			Enabled bool   `yaml:"enabled"`
			GroupID string `yaml:"group_id" default:"netflowwatch-ws"`
		} `yaml:"relay"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"netflow"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"1m"`
	} `yaml:"redis"`
	Etherscan struct {
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url" default:"https://api.etherscan.io/api"`
		PageSize   int           `yaml:"page_size" default:"1000" validate:"gte=1,lte=10000"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		RatePerSec float64       `yaml:"rate_per_sec" default:"4" validate:"gt=0"`
		MaxRetries int           `yaml:"max_retries" default:"3"`
		// SyncDays is how many trailing days the service re-fetches each interval; 0 disables.
		SyncDays int `yaml:"sync_days" default:"2" validate:"gte=0"`
	} `yaml:"etherscan"`
}

var validate = validator.New()

// Default returns a configuration populated only from default tags.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(b)
}

func decode(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ETHERSCAN_API_KEY"); v != "" {
		c.Etherscan.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("NETFLOW_Z"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("NETFLOW_Z: %w", err)
		}
		c.Netflow.ZThreshold = z
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Netflow.MinPeriods > c.Netflow.Window {
		return fmt.Errorf("netflow.min_periods (%d) must not exceed netflow.window (%d)", c.Netflow.MinPeriods, c.Netflow.Window)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Relay.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.relay requires kafka.enabled")
	}
	if c.Agent.Memory.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("agent.memory.backend=redis requires redis.enabled")
	}
	for label, addr := range c.Exchanges {
		if strings.TrimSpace(label) == "" || strings.TrimSpace(addr) == "" {
			return fmt.Errorf("exchanges: empty label or address")
		}
	}
	return nil
}
