package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey      string        `yaml:"api_key"`
	RESTURL     string        `yaml:"rest_url"`
	WSURL       string        `yaml:"ws_url"`
	QuotaCalls  int           `yaml:"quota_calls"`
	QuotaWindow time.Duration `yaml:"quota_window"`
	Priority    int           `yaml:"priority"`
}

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
	Providers struct {
		Binance      ProviderConfig `yaml:"binance"`
		Kraken       ProviderConfig `yaml:"kraken"`
		Coinbase     ProviderConfig `yaml:"coinbase"`
		AlphaVantage ProviderConfig `yaml:"alpha_vantage"`
		Finnhub      ProviderConfig `yaml:"finnhub"`
	} `yaml:"providers"`
	Router struct {
		CryptoChain    []string      `yaml:"crypto_chain"`
		StocksChain    []string      `yaml:"stocks_chain"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout"`
		AcquireMaxWait time.Duration `yaml:"acquire_max_wait"`
		MaxConcurrent  int           `yaml:"max_concurrent"`
	} `yaml:"router"`
	Stream struct {
		BackoffBase    time.Duration `yaml:"backoff_base"`
		BackoffCap     time.Duration `yaml:"backoff_cap"`
		FailoverAfter  time.Duration `yaml:"failover_after"`
		SubscriberBuf  int           `yaml:"subscriber_buffer"`
		MaxLiveCandles int           `yaml:"max_live_candles"`
	} `yaml:"stream"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
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
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// API keys are expected from the environment in every deployed setup; the
// YAML fields exist for local tinkering only.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Router.CryptoChain) == 0 {
		c.Router.CryptoChain = []string{"binance", "kraken", "coinbase"}
	}
	if len(c.Router.StocksChain) == 0 {
		c.Router.StocksChain = []string{"finnhub", "alpha_vantage"}
	}
	if c.Router.FetchTimeout == 0 {
		c.Router.FetchTimeout = 10 * time.Second
	}
	if c.Router.AcquireMaxWait == 0 {
		c.Router.AcquireMaxWait = 2 * time.Second
	}
	if c.Router.MaxConcurrent == 0 {
		c.Router.MaxConcurrent = 8
	}
	if c.Stream.BackoffBase == 0 {
		c.Stream.BackoffBase = time.Second
	}
	if c.Stream.BackoffCap == 0 {
		c.Stream.BackoffCap = 30 * time.Second
	}
	if c.Stream.FailoverAfter == 0 {
		c.Stream.FailoverAfter = 5 * time.Minute
	}
	if c.Stream.SubscriberBuf == 0 {
		c.Stream.SubscriberBuf = 64
	}
	if c.Stream.MaxLiveCandles == 0 {
		c.Stream.MaxLiveCandles = 500
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	known := map[string]bool{
		"binance": true, "kraken": true, "coinbase": true,
		"alpha_vantage": true, "finnhub": true,
	}
	for _, id := range append(append([]string{}, c.Router.CryptoChain...), c.Router.StocksChain...) {
		if !known[id] {
			return fmt.Errorf("unknown provider %q in fallback chain", id)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
