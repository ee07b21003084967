// Package model defines the data structures for vaultshift's configuration,
// checkpoint state, and affiliation snapshots.
package model

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type CreationMode string

const (
	// ModeInvite sends the new user an invitation; they complete registration
	// themselves. No temporary credential record is produced.
	ModeInvite CreationMode = "invite"
	// ModeAdd creates the account directly with a generated temporary
	// credential, which may be exposed via a one-time share link.
	ModeAdd CreationMode = "add"
)

type Config struct {
	Enterprise string           `yaml:"enterprise"`
	TargetUser string           `yaml:"target_user"`
	AdminUser  string           `yaml:"admin_user"`
	NewUser    NewUserConfig    `yaml:"new_user"`
	Options    OptionsConfig    `yaml:"options"`
	CLI        CLIConfig        `yaml:"cli"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type NewUserConfig struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
	Node  string `yaml:"node"`
	SSO   bool   `yaml:"sso"`
}

type OptionsConfig struct {
	CreationMode       CreationMode `yaml:"creation_mode"`
	OneTimeShareExpiry string       `yaml:"one_time_share_expiry"`
	DryRun             bool         `yaml:"dry_run"`
	NoRecursive        bool         `yaml:"no_recursive"`
}

type CLIConfig struct {
	Path string `yaml:"path"`
}

type CheckpointConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	DefaultCLIPath            = "vault"
	DefaultOneTimeShareExpiry = "24h"
)

// LoadConfig reads, defaults, and validates a run configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Options.CreationMode == "" {
		c.Options.CreationMode = ModeInvite
	}
	if c.Options.OneTimeShareExpiry == "" {
		c.Options.OneTimeShareExpiry = DefaultOneTimeShareExpiry
	}
	if c.CLI.Path == "" {
		c.CLI.Path = DefaultCLIPath
	}
	if c.Checkpoint.Dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Checkpoint.Dir = home + "/.vaultshift/checkpoints"
		} else {
			c.Checkpoint.Dir = ".vaultshift/checkpoints"
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Enterprise) == "" {
		return fmt.Errorf("enterprise is required")
	}
	if strings.TrimSpace(c.TargetUser) == "" {
		return fmt.Errorf("target_user is required")
	}
	if strings.TrimSpace(c.AdminUser) == "" {
		return fmt.Errorf("admin_user is required")
	}
	if strings.TrimSpace(c.NewUser.Email) == "" {
		return fmt.Errorf("new_user.email is required")
	}
	if strings.EqualFold(c.NewUser.Email, c.TargetUser) {
		return fmt.Errorf("new_user.email must differ from target_user")
	}
	switch c.Options.CreationMode {
	case ModeInvite, ModeAdd:
	default:
		return fmt.Errorf("options.creation_mode must be %q or %q, got %q", ModeInvite, ModeAdd, c.Options.CreationMode)
	}
	if _, err := time.ParseDuration(c.Options.OneTimeShareExpiry); err != nil {
		return fmt.Errorf("options.one_time_share_expiry: %w", err)
	}
	return nil
}
