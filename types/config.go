package types

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
)

// DefaultProgramID is the deployed payment link program.
const DefaultProgramID = "4UkwwLXf1n6pNgcWDWCUE21NQkvTVZGJsdPcmppL2F8j"

// Config contains global configuration for the paylink library
type Config struct {
	Network   Network `json:"network" mapstructure:"network" validate:"required"`
	RPCUrl    string  `json:"rpcUrl,omitempty" mapstructure:"rpc_url" validate:"omitempty,url"`
	ProgramID string  `json:"programId,omitempty" mapstructure:"program_id" validate:"omitempty,solana_pubkey"`
	USDCMint  string  `json:"usdcMint,omitempty" mapstructure:"usdc_mint" validate:"omitempty,solana_pubkey"`

	// DefaultTimeout bounds one-shot ledger operations.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty" mapstructure:"default_timeout" validate:"gte=0"`

	Poll PollConfig `json:"poll" mapstructure:"poll"`

	// Memo is prepended to token settlement transactions when set.
	Memo string `json:"memo,omitempty" mapstructure:"memo" validate:"max=566"`

	LogLevel      string `json:"logLevel,omitempty" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics bool   `json:"enableMetrics,omitempty" mapstructure:"enable_metrics"`

	Redis *RedisConfig `json:"redis,omitempty" mapstructure:"redis"`
}

// PollConfig tunes the settlement watcher.
type PollConfig struct {
	Interval         time.Duration `json:"interval,omitempty" mapstructure:"interval" validate:"gte=0"`
	AttemptTimeout   time.Duration `json:"attemptTimeout,omitempty" mapstructure:"attempt_timeout" validate:"gte=0"`
	MaxBackoff       time.Duration `json:"maxBackoff,omitempty" mapstructure:"max_backoff" validate:"gte=0"`
	FailureThreshold int           `json:"failureThreshold,omitempty" mapstructure:"failure_threshold" validate:"gte=0"`
}

// RedisConfig enables the shared currency-metadata cache.
type RedisConfig struct {
	Addr     string        `json:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	Password string        `json:"password,omitempty" mapstructure:"password"`
	DB       int           `json:"db,omitempty" mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `json:"ttl,omitempty" mapstructure:"ttl" validate:"gte=0"`
}

const (
	DefaultTimeout          = 30 * time.Second
	DefaultPollInterval     = time.Second
	DefaultAttemptTimeout   = 10 * time.Second
	DefaultMaxBackoff       = 30 * time.Second
	DefaultFailureThreshold = 5
)

// DefaultConfig returns a devnet configuration.
func DefaultConfig() *Config {
	return &Config{
		Network:        NetworkSolanaDevnet,
		ProgramID:      DefaultProgramID,
		DefaultTimeout: DefaultTimeout,
		Poll: PollConfig{
			Interval:         DefaultPollInterval,
			AttemptTimeout:   DefaultAttemptTimeout,
			MaxBackoff:       DefaultMaxBackoff,
			FailureThreshold: DefaultFailureThreshold,
		},
		LogLevel: "info",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("solana_pubkey", func(fl validator.FieldLevel) bool {
		_, err := solana.PublicKeyFromBase58(fl.Field().String())
		return err == nil
	})
	return v
}

// Validator returns the shared validator with the module's custom tags.
func Validator() *validator.Validate {
	return validate
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return WrapError(ErrConfigError, err, "validation failed")
	}
	if !c.Network.IsValid() {
		return NewError(ErrConfigError, "unsupported network: %s", c.Network)
	}
	if c.Network.IsSolana() && c.RPCEndpoint() == "" {
		return NewError(ErrConfigError, "rpcUrl is required for network %s", c.Network)
	}
	return nil
}

// ApplyDefaults fills zero values from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ProgramID == "" {
		c.ProgramID = d.ProgramID
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.AttemptTimeout <= 0 {
		c.Poll.AttemptTimeout = d.Poll.AttemptTimeout
	}
	if c.Poll.MaxBackoff <= 0 {
		c.Poll.MaxBackoff = d.Poll.MaxBackoff
	}
	if c.Poll.FailureThreshold <= 0 {
		c.Poll.FailureThreshold = d.Poll.FailureThreshold
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// RPCEndpoint returns the configured URL or the cluster default.
func (c *Config) RPCEndpoint() string {
	if c.RPCUrl != "" {
		return c.RPCUrl
	}
	return c.Network.DefaultRPCUrl()
}

// Program returns the parsed program id.
func (c *Config) Program() (solana.PublicKey, error) {
	id := c.ProgramID
	if id == "" {
		id = DefaultProgramID
	}
	pk, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return solana.PublicKey{}, WrapError(ErrConfigError, err, "invalid program id %q", id)
	}
	return pk, nil
}

// USDC returns the configured mint or the cluster default.
func (c *Config) USDC() (solana.PublicKey, error) {
	if c.USDCMint == "" {
		return c.Network.DefaultUSDCMint(), nil
	}
	pk, err := solana.PublicKeyFromBase58(c.USDCMint)
	if err != nil {
		return solana.PublicKey{}, WrapError(ErrConfigError, err, "invalid usdc mint %q", c.USDCMint)
	}
	return pk, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("network=%s rpc=%s program=%s", c.Network, c.RPCEndpoint(), c.ProgramID)
}
