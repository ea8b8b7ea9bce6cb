// Package config loads CreditPulse configuration from YAML files with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CREDITPULSE_API_PORT.
const EnvPrefix = "CREDITPULSE"

// Config represents the complete application configuration.
type Config struct {
	Engine    EngineConfig     `mapstructure:"engine"    yaml:"engine"    json:"engine"`
	Alerts    AlertsConfig     `mapstructure:"alerts"    yaml:"alerts"    json:"alerts"`
	Macro     MacroConfig      `mapstructure:"macro"     yaml:"macro"     json:"macro"`
	Scenarios []ScenarioConfig `mapstructure:"scenarios" yaml:"scenarios" json:"scenarios"`
	Features  FeaturesConfig   `mapstructure:"features"  yaml:"features"  json:"features"`
	News      NewsConfig       `mapstructure:"news"      yaml:"news"      json:"news"`
	API       APIConfig        `mapstructure:"api"       yaml:"api"       json:"api"`
	Logging   LoggingConfig    `mapstructure:"logging"   yaml:"logging"   json:"logging"`
}

// EngineConfig holds analytics settings.
type EngineConfig struct {
	DiscountRatePct  float64 `mapstructure:"discount_rate_pct"  yaml:"discount_rate_pct"  json:"discount_rate_pct"`
	ConvexityRatePct float64 `mapstructure:"convexity_rate_pct" yaml:"convexity_rate_pct" json:"convexity_rate_pct"`
	LoadTimeoutSec   int     `mapstructure:"load_timeout_sec"   yaml:"load_timeout_sec"   json:"load_timeout_sec"`
}

// AlertsConfig holds anomaly detection and delivery settings.
type AlertsConfig struct {
	Threshold       float64 `mapstructure:"threshold"         yaml:"threshold"         json:"threshold"`
	WebhookURL      string  `mapstructure:"webhook_url"       yaml:"webhook_url"       json:"webhook_url"`
	Channel         string  `mapstructure:"channel"           yaml:"channel"           json:"channel"`
	TimeoutSec      int     `mapstructure:"timeout_sec"       yaml:"timeout_sec"       json:"timeout_sec"`
	SlackWebhookURL string  `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url" json:"slack_webhook_url"`
	BreachBps       float64 `mapstructure:"breach_bps"        yaml:"breach_bps"        json:"breach_bps"`
}

// MacroConfig holds FRED access settings.
type MacroConfig struct {
	FredAPIKey    string `mapstructure:"fred_api_key"   yaml:"fred_api_key"   json:"fred_api_key"`
	DefaultSeries string `mapstructure:"default_series" yaml:"default_series" json:"default_series"`
	TimeoutSec    int    `mapstructure:"timeout_sec"    yaml:"timeout_sec"    json:"timeout_sec"`
	CacheTTLSec   int    `mapstructure:"cache_ttl_sec"  yaml:"cache_ttl_sec"  json:"cache_ttl_sec"`
}

// ScenarioConfig is an extra stress preset. Shocks are decimal fractions.
type ScenarioConfig struct {
	Name        string   `mapstructure:"name"         yaml:"name"                   json:"name"`
	Description string   `mapstructure:"description"  yaml:"description,omitempty"  json:"description,omitempty"`
	SpreadShock *float64 `mapstructure:"spread_shock" yaml:"spread_shock,omitempty" json:"spread_shock,omitempty"`
	RateShock   *float64 `mapstructure:"rate_shock"   yaml:"rate_shock,omitempty"   json:"rate_shock,omitempty"`
}

// FeaturesConfig toggles optional capabilities.
type FeaturesConfig struct {
	SimulateLiquidity bool `mapstructure:"simulate_liquidity" yaml:"simulate_liquidity" json:"simulate_liquidity"`
	NewsFeed          bool `mapstructure:"news_feed"          yaml:"news_feed"          json:"news_feed"`
	Slack             bool `mapstructure:"slack"              yaml:"slack"              json:"slack"`
}

// NewsConfig lists RSS/Atom feeds scanned for bond news.
type NewsConfig struct {
	Feeds    []string `mapstructure:"feeds"     yaml:"feeds"     json:"feeds"`
	MaxItems int      `mapstructure:"max_items" yaml:"max_items" json:"max_items"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host          string   `mapstructure:"host"            yaml:"host"            json:"host"`
	Port          int      `mapstructure:"port"            yaml:"port"            json:"port"`
	CORSOrigins   []string `mapstructure:"cors_origins"    yaml:"cors_origins"    json:"cors_origins"`
	SessionTTLSec int      `mapstructure:"session_ttl_sec" yaml:"session_ttl_sec" json:"session_ttl_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// LoadTimeout bounds a portfolio load.
func (c EngineConfig) LoadTimeout() time.Duration { return seconds(c.LoadTimeoutSec) }

// Timeout bounds a notification send.
func (c AlertsConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// Timeout bounds a FRED request.
func (c MacroConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// CacheTTL is how long fetched series are reused.
func (c MacroConfig) CacheTTL() time.Duration { return seconds(c.CacheTTLSec) }

// SessionTTL is how long an uploaded portfolio stays in memory.
func (c APIConfig) SessionTTL() time.Duration { return seconds(c.SessionTTLSec) }

// Addr is the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml
//  2. ~/.creditpulse/config.yaml
//  3. /etc/creditpulse/config.yaml
//
// Environment variables override config file values.
// Format: CREDITPULSE_<SECTION>_<KEY>, e.g. CREDITPULSE_ALERTS_THRESHOLD
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".creditpulse"))
	v.AddConfigPath("/etc/creditpulse")

	// A missing file is fine: defaults plus env apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults with env overrides applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Engine.DiscountRatePct <= -100:
		return fmt.Errorf("engine.discount_rate_pct must be > -100, got %v", c.Engine.DiscountRatePct)
	case c.Engine.ConvexityRatePct <= -100:
		return fmt.Errorf("engine.convexity_rate_pct must be > -100, got %v", c.Engine.ConvexityRatePct)
	case c.Engine.LoadTimeoutSec <= 0:
		return fmt.Errorf("engine.load_timeout_sec must be positive")
	case c.Alerts.Threshold <= 0:
		return fmt.Errorf("alerts.threshold must be positive, got %v", c.Alerts.Threshold)
	case c.Alerts.TimeoutSec <= 0:
		return fmt.Errorf("alerts.timeout_sec must be positive")
	}
	for i, s := range c.Scenarios {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("scenarios[%d]: name is required", i)
		}
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.discount_rate_pct", 5.0)
	v.SetDefault("engine.convexity_rate_pct", 5.0)
	v.SetDefault("engine.load_timeout_sec", 5)

	v.SetDefault("alerts.threshold", 2.5)
	v.SetDefault("alerts.channel", "n8n")
	v.SetDefault("alerts.timeout_sec", 5)
	v.SetDefault("alerts.breach_bps", 100.0)

	v.SetDefault("macro.default_series", "DGS10") // 10-year treasury
	v.SetDefault("macro.timeout_sec", 10)
	v.SetDefault("macro.cache_ttl_sec", 3600)

	v.SetDefault("features.simulate_liquidity", false)
	v.SetDefault("features.news_feed", false)
	v.SetDefault("features.slack", false)

	v.SetDefault("news.max_items", 20)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.session_ttl_sec", 1800)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads secrets from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvFredAPIKey); key != "" {
		cfg.Macro.FredAPIKey = key
	}
	if u := os.Getenv(EnvWebhookURL); u != "" {
		cfg.Alerts.WebhookURL = u
	}
	if u := os.Getenv(EnvSlackWebhookURL); u != "" {
		cfg.Alerts.SlackWebhookURL = u
	}
}

// ConfigFilePath returns the first existing config file in the search
// order, or the home-directory location when none exists yet.
func ConfigFilePath() string {
	for _, p := range []string{
		filepath.Join("config", "config.yaml"),
		filepath.Join(homeDir(), ".creditpulse", "config.yaml"),
		filepath.Join("/etc", "creditpulse", "config.yaml"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(homeDir(), ".creditpulse", "config.yaml")
}

// SaveToFile writes cfg as YAML. Secrets are never persisted.
func SaveToFile(cfg *Config, path string) error {
	out := *cfg
	out.Macro.FredAPIKey = ""
	out.Alerts.WebhookURL = ""
	out.Alerts.SlackWebhookURL = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
