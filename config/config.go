// Package config loads the rewards engine server configuration from a YAML
// file. Every field has a sensible default so the server runs with no config
// file at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/glasslink/rewards-engine/rewards"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig selects and configures the backing store.
// Driver is one of "memory", "sqlite" or "postgres".
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // sqlite file path
	DSN    string `yaml:"dsn"`  // postgres connection string
}

// ReferralConfig tunes code generation and award amounts.
type ReferralConfig struct {
	ReferrerAward int64 `yaml:"referrer_award"`
	WelcomeBonus  int64 `yaml:"welcome_bonus"`
	CodeLength    int   `yaml:"code_length"`
	MaxAttempts   int   `yaml:"max_attempts"`
}

// RedemptionConfig tunes the redemption workflow.
type RedemptionConfig struct {
	RefundOnRejection          bool `yaml:"refund_on_rejection"`
	AllowUnassignedFulfillment bool `yaml:"allow_unassigned_fulfillment"`
}

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Referral   ReferralConfig   `yaml:"referral"`
	Redemption RedemptionConfig `yaml:"redemption"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{Driver: "sqlite", Path: "rewards.db"},
		Referral: ReferralConfig{
			ReferrerAward: rewards.DefaultReferrerAward,
			WelcomeBonus:  rewards.DefaultWelcomeBonus,
			CodeLength:    rewards.DefaultCodeLength,
			MaxAttempts:   rewards.DefaultMaxAttempts,
		},
		Redemption: RedemptionConfig{
			RefundOnRejection:          true,
			AllowUnassignedFulfillment: true,
		},
	}
}

// Load reads the config from path. A missing file yields the defaults;
// a present file is merged over them, so partial configs are fine.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres driver")
	}
	if c.Referral.ReferrerAward < 0 || c.Referral.WelcomeBonus < 0 {
		return fmt.Errorf("referral awards must not be negative")
	}
	if c.Referral.CodeLength < 4 {
		return fmt.Errorf("referral.code_length must be at least 4")
	}
	if c.Referral.MaxAttempts < 1 {
		return fmt.Errorf("referral.max_attempts must be at least 1")
	}
	return nil
}

// WorkflowPolicy converts the redemption section into the domain policy type.
func (c *Config) WorkflowPolicy() rewards.WorkflowPolicy {
	return rewards.WorkflowPolicy{
		RefundOnRejection:          c.Redemption.RefundOnRejection,
		AllowUnassignedFulfillment: c.Redemption.AllowUnassignedFulfillment,
	}
}
