package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Settings holds runtime configuration for the agent, resolved from
// environment variables (add-on options are surfaced to the container as env).
type Settings struct {
	ConfigPath string `mapstructure:"config_path"`
	ListenAddr string `mapstructure:"listen_addr"`
	APIToken   string `mapstructure:"api_token"`

	HAURL   string `mapstructure:"ha_url"`
	HAToken string `mapstructure:"supervisor_token"`

	EnableVersioning bool `mapstructure:"enable_versioning"`
	MaxRevisions     int  `mapstructure:"max_revisions"`
	RetainRevisions  int  `mapstructure:"retain_revisions"`

	WatchExternal bool `mapstructure:"watch_external"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads settings from the environment with sane add-on defaults.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("config_path", "/config")
	v.SetDefault("listen_addr", ":8099")
	v.SetDefault("ha_url", "http://supervisor/core")
	v.SetDefault("enable_versioning", true)
	v.SetDefault("max_revisions", 50)
	v.SetDefault("retain_revisions", 30)
	v.SetDefault("watch_external", true)
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()
	for _, key := range []string{
		"config_path", "listen_addr", "api_token", "ha_url", "supervisor_token",
		"enable_versioning", "max_revisions", "retain_revisions", "watch_external", "log_level",
	} {
		_ = v.BindEnv(key)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the vault cannot operate under.
func (s *Settings) Validate() error {
	if s.ConfigPath == "" {
		return fmt.Errorf("config_path must not be empty")
	}
	if s.MaxRevisions < 2 {
		return fmt.Errorf("max_revisions must be at least 2, got %d", s.MaxRevisions)
	}
	if s.RetainRevisions < 1 || s.RetainRevisions >= s.MaxRevisions {
		return fmt.Errorf("retain_revisions must be in [1, max_revisions), got %d", s.RetainRevisions)
	}
	return nil
}
