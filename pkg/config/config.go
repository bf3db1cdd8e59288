package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

// EnvPrefix is the prefix of environment variables that override secrets in the config file.
const EnvPrefix = "BRIDGE"

// Config represents the relayer configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Destination DestinationConfig `mapstructure:"destination"`
	Bridge      BridgeConfig      `mapstructure:"bridge"`
	Supervisor  SupervisorConfig  `mapstructure:"supervisor"`
	SignerLock  SignerLockConfig  `mapstructure:"signer_lock"`
	Networks    []NetworkConfig   `mapstructure:"networks" validate:"required,min=1,dive"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"30s"`
	// AllowedOrigins for CORS on /api/v1. Empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host         string `mapstructure:"host" default:"localhost" validate:"required"`
	Port         int    `mapstructure:"port" default:"5432" validate:"gt=0,lte=65535"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database" default:"glitch_bridge" validate:"required"`
	SSLMode      string `mapstructure:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns int    `mapstructure:"max_open_conns" default:"16" validate:"gte=0"`
	// AutoMigrate applies pending migrations when the relayer starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// MonitoringConfig contains metrics and signer balance monitor settings
type MonitoringConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	BalanceCheckInterval time.Duration `mapstructure:"balance_check_interval" default:"1m"`
	// LowBalanceThreshold is in the smallest unit of the destination asset. Empty disables the warning.
	LowBalanceThreshold string `mapstructure:"low_balance_threshold" validate:"omitempty,numeric"`
}

// DestinationConfig contains the destination ledger signer and transfer settings
type DestinationConfig struct {
	SignerPrivateKey string         `mapstructure:"signer_private_key"`
	SS58Prefix       uint16         `mapstructure:"ss58_prefix" default:"42"`
	TreasuryAddress  string         `mapstructure:"treasury_address" validate:"required"`
	TransferCall     string         `mapstructure:"transfer_call" default:"Balances.transfer"`
	FeeEstimation    bool           `mapstructure:"fee_estimation"`
	Delegate         DelegateConfig `mapstructure:"delegate"`
}

// DelegateConfig configures the external process used to quote and submit transfers.
type DelegateConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Command []string      `mapstructure:"command" validate:"required_if=Enabled true"`
	Timeout time.Duration `mapstructure:"timeout" default:"2m"`
}

// BridgeConfig contains fee and scheduling settings shared by every network
type BridgeConfig struct {
	BusinessFeePercentage   string        `mapstructure:"business_fee_percentage" default:"0" validate:"fee_percentage"`
	TransferInterval        time.Duration `mapstructure:"transfer_interval" default:"5s" validate:"gt=0"`
	ProcessingRetryAfter    time.Duration `mapstructure:"processing_retry_after" default:"1m" validate:"gte=0"`
	SettlementInterval      time.Duration `mapstructure:"settlement_interval" default:"24h" validate:"gt=0"`
	SettlementCheckInterval time.Duration `mapstructure:"settlement_check_interval" default:"60s" validate:"gt=0"`
}

// SupervisorConfig controls restart backoff of the per-network tasks
type SupervisorConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"1s" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" default:"1m" validate:"gtefield=InitialBackoff"`
	// MaxRestarts of 0 restarts forever.
	MaxRestarts uint64 `mapstructure:"max_restarts"`
}

// SignerLockConfig selects how concurrent signer use is serialized.
// With an empty RedisURL an in-process mutex is used.
type SignerLockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Key      string        `mapstructure:"key" default:"glitch-bridge:signer"`
	TTL      time.Duration `mapstructure:"ttl" default:"5m" validate:"gt=0"`
}

// NetworkConfig describes one monitored source network
type NetworkConfig struct {
	Name             string `mapstructure:"name" validate:"required"`
	Network          string `mapstructure:"network" validate:"required"`
	MonitorAddress   string `mapstructure:"monitor_address" validate:"required,evm_address"`
	SourceWSURL      string `mapstructure:"source_ws_url" validate:"required,url"`
	DestinationWSURL string `mapstructure:"destination_ws_url" validate:"required,url"`
	Confirmations    uint64 `mapstructure:"confirmations"`
	// MaxBlockRange bounds a single catch-up log query. 0 means unbounded.
	MaxBlockRange uint64 `mapstructure:"max_block_range"`
	// StartBlock is the first block scanned when the network has no scan state
	// yet, typically the bridge contract's deployment block. 0 scans from genesis.
	StartBlock uint64 `mapstructure:"start_block"`
}

// GetConnectionString returns a postgres connection URL for the database
func (c DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type envOverrides struct {
	SignerPrivateKey string `envconfig:"SIGNER_PRIVATE_KEY"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults first so explicit zero values in the file are kept
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if env.SignerPrivateKey != "" {
		cfg.Destination.SignerPrivateKey = env.SignerPrivateKey
	}
	if env.DatabasePassword != "" {
		cfg.Database.Password = env.DatabasePassword
	}
	if env.RedisURL != "" {
		cfg.SignerLock.RedisURL = env.RedisURL
	}
	return nil
}

// Validate checks struct tags and cross-field rules. The signer key is not
// required here because the relayer binary may prompt for it.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("evm_address", validateEVMAddress); err != nil {
		return err
	}
	if err := validate.RegisterValidation("fee_percentage", validateFeePercentage); err != nil {
		return err
	}

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Networks))
	for _, n := range cfg.Networks {
		if _, ok := seen[n.Name]; ok {
			return fmt.Errorf("duplicate network name %q", n.Name)
		}
		seen[n.Name] = struct{}{}
	}

	return nil
}

func validateEVMAddress(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	if !common.IsHexAddress(addr) {
		return false
	}
	return ethav.Validate(common.HexToAddress(addr).Hex()) == nil
}

func validateFeePercentage(fl validator.FieldLevel) bool {
	_, err := deposit.ParsePercentage(fl.Field().String())
	return err == nil
}

// ErrMissingSignerKey is returned when no signer key was configured or entered.
var ErrMissingSignerKey = errors.New("destination signer private key is not set")

// RequireSignerKey ensures a signer key is present after config, env and prompt sources.
func (c *Config) RequireSignerKey() error {
	if strings.TrimSpace(c.Destination.SignerPrivateKey) == "" {
		return ErrMissingSignerKey
	}
	return nil
}
