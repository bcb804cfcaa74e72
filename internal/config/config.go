// Package config loads a suite's on-disk configuration: feature paths, tag
// filter, concurrency, output directory, minimum engine version, and HTTP
// client settings. Grounded on the teacher's cmd/falcon/main.go
// viper+godotenv bootstrap (gopkg.in/yaml.v3 struct tags, github.com/
// spf13/viper for layered file+env config, github.com/joho/godotenv for
// .env loading).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// HTTPConfig configures the default HTTP client and its OAuth2/rate-limit
// add-ons (spec.md §6 "configure" keys, SPEC_FULL.md domain stack).
type HTTPConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	OAuth2 *OAuth2Config `yaml:"oauth2,omitempty" mapstructure:"oauth2"`
}

// OAuth2Config drives golang.org/x/oauth2/clientcredentials token minting.
type OAuth2Config struct {
	TokenURL     string   `yaml:"token_url" mapstructure:"token_url"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	Scopes       []string `yaml:"scopes,omitempty" mapstructure:"scopes"`
}

// SuiteFile is the on-disk shape of a suite config (config.yaml).
type SuiteFile struct {
	Paths            []string `yaml:"paths" mapstructure:"paths"`
	Tags             string   `yaml:"tags" mapstructure:"tags"`
	Threads          int      `yaml:"threads" mapstructure:"threads"`
	OutputDir        string   `yaml:"output_dir" mapstructure:"output_dir"`
	MinEngineVersion string   `yaml:"min_engine_version,omitempty" mapstructure:"min_engine_version"`

	HTTP HTTPConfig `yaml:"http" mapstructure:"http"`
}

// Timeout returns HTTP.TimeoutSeconds as a Duration, defaulting to 30s.
func (f SuiteFile) Timeout() time.Duration {
	if f.HTTP.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.HTTP.TimeoutSeconds) * time.Second
}

// Load reads .env (if present), then layers configPath (or
// ./.wingman/config.yaml by default) with WINGMAN_-prefixed environment
// overrides, the way the teacher's initConfig layers .falcon/config.yaml
// with AutomaticEnv.
func Load(configPath string) (SuiteFile, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return SuiteFile{}, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".wingman")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix("wingman")
	v.AutomaticEnv()

	v.SetDefault("threads", 1)
	v.SetDefault("output_dir", "wingman-results")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return SuiteFile{}, fmt.Errorf("config: reading config: %w", err)
		}
	}

	var f SuiteFile
	if err := v.Unmarshal(&f); err != nil {
		return SuiteFile{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if f.Threads <= 0 {
		f.Threads = 1
	}
	if f.OutputDir == "" {
		f.OutputDir = "wingman-results"
	}
	return f, nil
}
