// Package config loads server settings from haven-config.yaml and HAVEN_*
// environment variables. The passphrase is deliberately absent: it arrives on
// every request and is never part of configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server-level settings.
type Config struct {
	ListenAddr  string   `mapstructure:"listen_addr"`
	DataDir     string   `mapstructure:"data_dir"`
	MemoryDir   string   `mapstructure:"memory_dir"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	LLM LLMConfig `mapstructure:"llm"`

	ContextTokenBudget int `mapstructure:"context_token_budget"`
}

// LLMConfig holds inference backend settings.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load reads haven-config.yaml from the home directory or the working
// directory, applies HAVEN_* environment overrides, and fills in defaults. A
// missing config file is fine; everything has a usable default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("haven-config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HAVEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("listen_addr", ":8700")
	v.SetDefault("data_dir", filepath.Join(home, ".haven", "entries"))
	v.SetDefault("memory_dir", filepath.Join(home, ".haven", "memories"))
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("context_token_budget", 8000)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.request_timeout", 2*time.Minute)
}
