package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "cfg/config.yaml"

type Endpoint struct {
	Name   string            `yaml:"name" json:"name"`
	RPCUrl string            `yaml:"rpc_url" json:"rpc_url"`
	Client *ethclient.Client `yaml:"-" json:"-"`
}

// Gas holds the bounds of the gas controls. Priority values are in GWEI.
type Gas struct {
	MinLimit         uint64        `yaml:"min_limit" json:"min_limit"`
	MaxLimit         uint64        `yaml:"max_limit" json:"max_limit"`
	LimitStep        uint64        `yaml:"limit_step" json:"limit_step"`
	MinPriorityGwei  float64       `yaml:"min_priority_gwei" json:"min_priority_gwei"`
	MaxPriorityGwei  float64       `yaml:"max_priority_gwei" json:"max_priority_gwei"`
	PriorityStepGwei float64       `yaml:"priority_step_gwei" json:"priority_step_gwei"`
	Debounce         time.Duration `yaml:"debounce" json:"debounce"`
	HoldInterval     time.Duration `yaml:"hold_interval" json:"hold_interval"`
}

type Fees struct {
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	SendTimeout  time.Duration `yaml:"send_timeout" json:"send_timeout"`
}

type Export struct {
	Table      string        `yaml:"table" json:"table"`
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
}

type Config struct {
	Endpoints []Endpoint `yaml:"endpoints" json:"endpoints"`
	Gas       Gas        `yaml:"gas" json:"gas"`
	Fees      Fees       `yaml:"fees" json:"fees"`
	Export    Export     `yaml:"export" json:"export"`
	LogLevel  string     `yaml:"log_level" json:"log_level"`
	LogFile   string     `yaml:"log_file" json:"log_file"`

	// Populated from the environment
	Port              string   `yaml:"-" json:"port"`
	Environment       string   `yaml:"-" json:"environment"`
	GoogleCredentials string   `yaml:"-" json:"-"`
	GoogleProjectID   string   `yaml:"-" json:"-"`
	APIBaseURL        string   `yaml:"-" json:"api_base_url"`
	RedisURL          string   `yaml:"-" json:"-"`
	OtelEndpoint      string   `yaml:"-" json:"otel_endpoint"`
	CORSOrigins       []string `yaml:"-" json:"cors_origins"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Gas: Gas{
			MinLimit:         21_000,
			MaxLimit:         10_000_000,
			LimitStep:        1_000,
			MinPriorityGwei:  0,
			MaxPriorityGwei:  10,
			PriorityStepGwei: 0.1,
			Debounce:         3 * time.Second,
			HoldInterval:     100 * time.Millisecond,
		},
		Fees: Fees{
			CacheTTL:     12 * time.Second,
			PollInterval: 12 * time.Second,
			SendTimeout:  60 * time.Second,
		},
		Export: Export{
			Table:      "bigquery-public-data.crypto_solana_mainnet_us.Block Rewards",
			JobTimeout: 5 * time.Minute,
		},
		LogLevel:    "info",
		LogFile:     "./logs/simpleweb3.log",
		Port:        "3001",
		Environment: "development",
		APIBaseURL:  "http://localhost:3001",
		CORSOrigins: []string{"*"},
	}
}

// Load reads CONFIG_PATH (or cfg/config.yaml) and the process environment.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path, os.Getenv)
}

// LoadFrom reads the yaml file at path if it exists and overlays values from getenv.
func LoadFrom(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	cfgData, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(cfgData, cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	applyEnv(cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("ENV"); v != "" {
		cfg.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}
	if v := getenv("RPC_URL"); v != "" && len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []Endpoint{{Name: "default", RPCUrl: v}}
	}
	cfg.GoogleCredentials = getenv("GOOGLE_CREDENTIALS_FILE")
	cfg.GoogleProjectID = getenv("GOOGLE_PROJECT_ID")
	cfg.RedisURL = getenv("REDIS_URL")
	cfg.OtelEndpoint = getenv("OTEL_ENDPOINT")
}

// Validate checks the gas bounds for consistency.
func (c *Config) Validate() error {
	g := c.Gas
	if g.MinLimit == 0 || g.MaxLimit < g.MinLimit {
		return fmt.Errorf("invalid gas limit bounds [%d, %d]", g.MinLimit, g.MaxLimit)
	}
	if g.LimitStep == 0 {
		return errors.New("gas limit_step must be positive")
	}
	if g.MinPriorityGwei < 0 || g.MaxPriorityGwei < g.MinPriorityGwei {
		return fmt.Errorf("invalid priority fee bounds [%g, %g]", g.MinPriorityGwei, g.MaxPriorityGwei)
	}
	if g.PriorityStepGwei <= 0 {
		return errors.New("gas priority_step_gwei must be positive")
	}
	return nil
}

// IsProduction reports whether logs should go to the rolling file.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DialEndpoints creates an RPC client for every configured endpoint.
func (c *Config) DialEndpoints(ctx context.Context) error {
	for i := range c.Endpoints {
		client, err := ethclient.DialContext(ctx, c.Endpoints[i].RPCUrl)
		if err != nil {
			return fmt.Errorf("error connecting to client %s. rpc url: %s: %w", c.Endpoints[i].Name, c.Endpoints[i].RPCUrl, err)
		}
		c.Endpoints[i].Client = client
	}
	return nil
}

// Primary returns the first endpoint, which serves estimates and broadcasts.
func (c *Config) Primary() (*Endpoint, error) {
	if len(c.Endpoints) == 0 {
		return nil, errors.New("no rpc endpoints configured")
	}
	return &c.Endpoints[0], nil
}

// CloseEndpoints closes all dialed RPC clients.
func (c *Config) CloseEndpoints() {
	for i := range c.Endpoints {
		if c.Endpoints[i].Client != nil {
			c.Endpoints[i].Client.Close()
		}
	}
}
