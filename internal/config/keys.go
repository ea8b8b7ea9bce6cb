package config

import "os"

// Secret environment variables.
const (
	EnvFredAPIKey      = EnvPrefix + "_MACRO_FRED_API_KEY"
	EnvWebhookURL      = EnvPrefix + "_ALERTS_WEBHOOK_URL"
	EnvSlackWebhookURL = EnvPrefix + "_ALERTS_SLACK_WEBHOOK_URL"
)

// KeySource represents where a secret comes from.
type KeySource string

const (
	KeySourceEnv    KeySource = "env"
	KeySourceConfig KeySource = "config"
	KeySourceNone   KeySource = "none"
)

// KeyStatus represents the status of a secret.
type KeyStatus struct {
	Name   string    `json:"name"`
	Source KeySource `json:"source"`
	IsSet  bool      `json:"is_set"`
	Masked string    `json:"masked,omitempty"` // e.g. "abc...xyz"
}

// CheckKeys returns the status of every secret the engine can use.
func CheckKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("FRED API Key", cfg.Macro.FredAPIKey, EnvFredAPIKey),
		checkKey("Alert Webhook URL", cfg.Alerts.WebhookURL, EnvWebhookURL),
		checkKey("Slack Webhook URL", cfg.Alerts.SlackWebhookURL, EnvSlackWebhookURL),
	}
}

// Redacted returns a copy of cfg with secrets masked, for display.
func Redacted(cfg *Config) *Config {
	out := *cfg
	out.Scenarios = append([]ScenarioConfig(nil), cfg.Scenarios...)
	if out.Macro.FredAPIKey != "" {
		out.Macro.FredAPIKey = maskKey(out.Macro.FredAPIKey)
	}
	if out.Alerts.WebhookURL != "" {
		out.Alerts.WebhookURL = maskKey(out.Alerts.WebhookURL)
	}
	if out.Alerts.SlackWebhookURL != "" {
		out.Alerts.SlackWebhookURL = maskKey(out.Alerts.SlackWebhookURL)
	}
	return &out
}

func checkKey(name, value, envVar string) KeyStatus {
	status := KeyStatus{Name: name, IsSet: value != "", Source: KeySourceNone}
	if value == "" {
		return status
	}
	if os.Getenv(envVar) != "" {
		status.Source = KeySourceEnv
	} else {
		status.Source = KeySourceConfig
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey shows only the first and last 3 characters.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
