// Package config loads the bot's configuration from TOML and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ChannelConfig is the per-channel policy.
type ChannelConfig struct {
	// Group names the working group, used in posted comment text.
	Group string `koanf:"group"`
	// ReposAllowed lists "owner/name" repositories the bot may comment
	// on from this channel; "owner/*" allows a whole owner.
	ReposAllowed []string `koanf:"repos_allowed"`
	// ResolutionsOnly suppresses the full log block in comments.
	ResolutionsOnly bool `koanf:"resolutions_only"`
}

// Config represents the application configuration.
type Config struct {
	Bot struct {
		Nick string `koanf:"nick"`
		// Source is the URL of this bot's source, quoted by "intro".
		Source string   `koanf:"source"`
		Owners []string `koanf:"owners"`
		// ActivityTimeoutMinutes auto-ends an idle topic; 0 disables.
		ActivityTimeoutMinutes int `koanf:"activity_timeout_minutes"`
	} `koanf:"bot"`

	Chat struct {
		Server   string `koanf:"server"`
		UseTLS   bool   `koanf:"use_tls"`
		Realname string `koanf:"realname"`
	} `koanf:"chat"`

	GitHub struct {
		Token   string `koanf:"token"`
		BaseURL string `koanf:"base_url"`
		// RequestsPerSecond caps tracker calls.
		RequestsPerSecond float64 `koanf:"requests_per_second"`
	} `koanf:"github"`

	API struct {
		Port int `koanf:"port"`
	} `koanf:"api"`

	Channels map[string]ChannelConfig `koanf:"channels"`
}

// LoadConfig loads the configuration from a file, with environment
// overrides under the MINUTETRACK_ prefix.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"bot.nick":                     "minutetrack",
		"bot.activity_timeout_minutes": 10,
		"github.base_url":              "https://api.github.com",
		"github.requests_per_second":   2.0,
		"api.port":                     8787,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./minutetrack.toml", "$HOME/.minutetrack.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("MINUTETRACK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "MINUTETRACK_")), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# minutetrack configuration

[bot]
nick = "minutetrack"
source = "https://github.com/minutetrack/minutetrack"
owners = ["yournick"]
activity_timeout_minutes = 10

[chat]
server = "irc.w3.org:6697"
use_tls = true
realname = "minutes-to-github bot"

[github]
token = "your-github-token"

[api]
port = 8787

[channels."#css"]
group = "CSS Working Group"
repos_allowed = ["w3c/csswg-drafts", "w3c/*"]
resolutions_only = false
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration.
func Validate(config *Config) error {
	if config.Bot.Nick == "" {
		return fmt.Errorf("bot nick is required")
	}
	if config.Chat.Server == "" {
		return fmt.Errorf("chat server is required")
	}
	if len(config.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	for name, ch := range config.Channels {
		if !strings.HasPrefix(name, "#") {
			return fmt.Errorf("channel %q must start with '#'", name)
		}
		if ch.Group == "" {
			return fmt.Errorf("channel %s: group is required", name)
		}
		for _, repo := range ch.ReposAllowed {
			if !strings.Contains(repo, "/") {
				return fmt.Errorf("channel %s: repo %q must be owner/name", name, repo)
			}
		}
	}
	return nil
}
