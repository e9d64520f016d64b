// Package config loads the bridge configuration from a yaml file with
// TASKBRIDGE_* environment overrides. The result is an explicit struct
// passed to constructors; nothing reads configuration ambiently.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Jira holds source tracker settings.
type Jira struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	APIToken string `mapstructure:"api_token"`
	// PauseStatus names a workflow status whose issues are excluded from
	// sync. Empty disables the filter.
	PauseStatus string `mapstructure:"pause_status"`
}

// Planfix holds destination tracker settings.
type Planfix struct {
	URL            string  `mapstructure:"url"`
	Account        string  `mapstructure:"account"`
	APIKey         string  `mapstructure:"api_key"`
	Login          string  `mapstructure:"login"`
	Password       string  `mapstructure:"password"`
	ProjectID      int64   `mapstructure:"project_id"`
	Workers        []int64 `mapstructure:"workers"`
	Members        []int64 `mapstructure:"members"`
	CommentOwnerID int64   `mapstructure:"comment_owner_id"`
}

// Redis holds state store settings.
type Redis struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
}

// Telegram holds operator notification settings. Both fields empty means
// alerts go to the log only.
type Telegram struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

// Config is the full bridge configuration.
type Config struct {
	Jira     Jira     `mapstructure:"jira"`
	Planfix  Planfix  `mapstructure:"planfix"`
	Redis    Redis    `mapstructure:"redis"`
	Telegram Telegram `mapstructure:"telegram"`

	PollInterval     time.Duration `mapstructure:"poll_interval"`
	DownloadDir      string        `mapstructure:"download_dir"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// Load reads configuration from path (or ./taskbridge.yaml when empty)
// plus environment overrides, applies defaults, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TASKBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll_interval", 4*time.Hour)
	v.SetDefault("download_dir", "attachments")
	v.SetDefault("fetch_concurrency", 4)
	v.SetDefault("redis.namespace", "taskbridge")

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; env vars may cover it.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"jira.url", c.Jira.URL},
		{"jira.username", c.Jira.Username},
		{"jira.api_token", c.Jira.APIToken},
		{"planfix.url", c.Planfix.URL},
		{"planfix.account", c.Planfix.Account},
		{"planfix.api_key", c.Planfix.APIKey},
		{"planfix.login", c.Planfix.Login},
		{"planfix.password", c.Planfix.Password},
		{"redis.url", c.Redis.URL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: %s is required", r.key)
		}
	}
	if c.Planfix.ProjectID == 0 {
		return fmt.Errorf("config: planfix.project_id is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("config: fetch_concurrency must be positive")
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("config: telegram.token and telegram.chat_id must be set together")
	}
	return nil
}
