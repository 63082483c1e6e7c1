// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matijamicunovic629/cowprotocol/internal/settlement"
)

// Config is the process-wide configuration, loaded once at startup and
// read-only while rounds are in flight.
type Config struct {
	OrderbookURL            string                   `mapstructure:"orderbook_url"`
	SolversFile             string                   `mapstructure:"solvers_file"`
	RoundBudgetMs           int                      `mapstructure:"round_budget_ms"`
	SubmissionDeadlineMs    int                      `mapstructure:"submission_deadline_ms"`
	MaxAttempts             int                      `mapstructure:"max_attempts"`
	InitialComputeUnitPrice uint64                   `mapstructure:"initial_compute_unit_price"`
	EscalationFactor        float64                  `mapstructure:"escalation_factor"`
	SettlementProgram       string                   `mapstructure:"settlement_program"`
	SignerKey               string                   `mapstructure:"signer_key"`
	TrustedTokens           []string                 `mapstructure:"trusted_tokens"`
	Mempools                []settlement.RouteConfig `mapstructure:"mempools"`
	PostgresURL             string                   `mapstructure:"postgres_url"`
	LogFile                 string                   `mapstructure:"log_file"`
	DebugLogging            bool                     `mapstructure:"debug_logging"`
}

const (
	DefaultRoundBudgetMs        = 15000
	DefaultSubmissionDeadlineMs = 120000
	DefaultMaxAttempts          = 5
	DefaultComputeUnitPrice     = 1000
	DefaultEscalationFactor     = 1.5
)

// RoundBudget returns the per-round solve budget as a duration.
func (c *Config) RoundBudget() time.Duration {
	return time.Duration(c.RoundBudgetMs) * time.Millisecond
}

// SubmissionDeadline returns the settlement submission deadline.
func (c *Config) SubmissionDeadline() time.Duration {
	return time.Duration(c.SubmissionDeadlineMs) * time.Millisecond
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"round_budget_ms":            DefaultRoundBudgetMs,
		"submission_deadline_ms":     DefaultSubmissionDeadlineMs,
		"max_attempts":               DefaultMaxAttempts,
		"initial_compute_unit_price": DefaultComputeUnitPrice,
		"escalation_factor":          DefaultEscalationFactor,
		"solvers_file":               "configs/solvers.yaml",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.OrderbookURL == "" {
		return errors.New("missing orderbook_url in configuration")
	}
	if err := validateURL(cfg.OrderbookURL, "http"); err != nil {
		return errors.New("invalid orderbook URL protocol")
	}
	if cfg.SolversFile == "" {
		return errors.New("missing solvers_file in configuration")
	}
	if cfg.SettlementProgram == "" {
		return errors.New("missing settlement_program in configuration")
	}
	if cfg.SignerKey == "" {
		return errors.New("missing signer_key in configuration")
	}
	if len(cfg.Mempools) == 0 {
		return errors.New("at least one mempool route is required")
	}
	for _, route := range cfg.Mempools {
		if err := validateURL(route.Endpoint, "http"); err != nil {
			return errors.New("invalid mempool endpoint protocol")
		}
		if route.GasPriceCap == 0 {
			return errors.New("mempool gas_price_cap must be positive")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RoundBudgetMs <= 0 {
		return errors.New("invalid round_budget_ms")
	}
	if cfg.SubmissionDeadlineMs <= 0 {
		return errors.New("invalid submission_deadline_ms")
	}
	if cfg.MaxAttempts <= 0 {
		return errors.New("invalid max_attempts")
	}
	if cfg.EscalationFactor <= 1.0 {
		return errors.New("escalation_factor must exceed 1.0")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("COWPROTOCOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envSigner := v.GetString("SIGNER_KEY")
	if envSigner != "" {
		cfg.SignerKey = envSigner
	}

	envPostgres := v.GetString("POSTGRES_URL")
	if envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}
	return nil
}
