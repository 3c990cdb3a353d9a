// Package config loads viewer configuration from defaults, an optional YAML
// file, a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeContract = "contract"
	ModeMemory   = "memory"
)

// Config is the fully resolved viewer configuration.
type Config struct {
	Server         ServerConfig   `mapstructure:"server"`
	Ledger         LedgerConfig   `mapstructure:"ledger"`
	Catalog        CatalogConfig  `mapstructure:"catalog"`
	Database       DatabaseConfig `mapstructure:"database"`
	Health         HealthConfig   `mapstructure:"health"`
	DefaultProduct string         `mapstructure:"default_product" validate:"required"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	GRPCPort     int      `mapstructure:"grpc_port" validate:"gte=0,lte=65535"` // 0 disables the gRPC health service
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimitRPS int      `mapstructure:"rate_limit_rps" validate:"gte=0"`
}

type LedgerConfig struct {
	Mode            string        `mapstructure:"mode" validate:"oneof=contract memory"`
	RPCURL          string        `mapstructure:"rpc_url" validate:"omitempty,url"`
	ContractAddress string        `mapstructure:"contract_address" validate:"omitempty,eth_addr"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	ParallelStages  int           `mapstructure:"parallel_stages" validate:"gte=0,lte=64"` // 0 = sequential
	ExplorerURL     string        `mapstructure:"explorer_url" validate:"omitempty,url"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"` // YAML catalog; empty uses the database or built-in defaults
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"` // empty disables Postgres
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"gte=0"`
	FailThreshold int           `mapstructure:"fail_threshold" validate:"gte=1"`
}

// SetDefaults registers every key with its default so environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("ledger.mode", ModeContract)
	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.call_timeout", "15s")
	v.SetDefault("ledger.parallel_stages", 0)
	v.SetDefault("ledger.explorer_url", "https://sepolia.etherscan.io")
	v.SetDefault("catalog.file", "")
	v.SetDefault("database.url", "")
	v.SetDefault("health.check_interval", "30s")
	v.SetDefault("health.fail_threshold", 3)
	v.SetDefault("default_product", "organic-cotton-tshirt")
}

// New returns a viper instance wired for the viewer: defaults, env
// overrides (ledger.rpc_url -> LEDGER_RPC_URL) and the legacy names
// INFURA_URL and CONTRACT_ADDRESS.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("viewer")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("ledger.rpc_url", "LEDGER_RPC_URL", "INFURA_URL")
	_ = v.BindEnv("ledger.contract_address", "LEDGER_CONTRACT_ADDRESS", "CONTRACT_ADDRESS")

	SetDefaults(v)
	return v
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// present in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration through v. A missing config file is not an
// error; found reports whether one was read.
func Load(v *viper.Viper, configFile string) (cfg *Config, found bool, err error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return nil, false, fmt.Errorf("read config: %w", err)
		}
	} else {
		found = true
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, found, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, found, err
	}
	return cfg, found, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the settings each ledger mode requires.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Ledger.Mode == ModeContract {
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("invalid config: ledger.rpc_url (or INFURA_URL) is required in contract mode")
		}
		if c.Ledger.ContractAddress == "" {
			return fmt.Errorf("invalid config: ledger.contract_address (or CONTRACT_ADDRESS) is required in contract mode")
		}
	}
	return nil
}
