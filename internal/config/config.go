package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haytac/neighbourhood-emoji/internal/logging"
	"github.com/spf13/viper"
)

// DefaultFetchFrequency applies to sources without their own frequency_seconds.
const DefaultFetchFrequency = 300

// Proxy is a named outbound proxy.
type Proxy struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"` // http, https, socks5
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Profile holds formatting settings for relayed notices.
type Profile struct {
	Name                  string   `mapstructure:"name"`
	TitleTemplate         string   `mapstructure:"title_template"`
	MessageTemplate       string   `mapstructure:"message_template"`
	Hashtags              []string `mapstructure:"hashtags"`
	IncludeAuthor         bool     `mapstructure:"include_author"`
	OmitGenericTitleRegex string   `mapstructure:"omit_generic_title_regex"`
	DisableSanitize       bool     `mapstructure:"disable_sanitize"`
}

// Source is a community notice feed relayed into a Telegram chat.
type Source struct {
	Name             string `mapstructure:"name"`
	URL              string `mapstructure:"url"`
	Title            string `mapstructure:"title"`
	FrequencySeconds int    `mapstructure:"frequency_seconds"`
	ChatID           string `mapstructure:"chat_id"`
	Proxy            string `mapstructure:"proxy"`
	Profile          string `mapstructure:"profile"`
	Disabled         bool   `mapstructure:"disabled"`
}

// Frequency returns the polling interval of the source.
func (s *Source) Frequency() time.Duration {
	return time.Duration(s.FrequencySeconds) * time.Second
}

// DisplayTitle is the title shown in relayed messages.
func (s *Source) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// AppConfig holds the application configuration.
type AppConfig struct {
	Log                  logging.Config `mapstructure:"log"`
	HTTPAddr             string         `mapstructure:"http_addr"`
	MetricsPort          string         `mapstructure:"metrics_port"`
	Telegram             TelegramConfig `mapstructure:"telegram"`
	Proxies              []Proxy        `mapstructure:"proxies"`
	DefaultFeedProxy     string         `mapstructure:"default_feed_proxy"`
	DefaultTelegramProxy string         `mapstructure:"default_telegram_proxy"`
	Profiles             []Profile      `mapstructure:"profiles"`
	Sources              []Source       `mapstructure:"sources"`
	DefaultFetchFreq     int            `mapstructure:"default_fetch_frequency_seconds"`
	SendBacklog          bool           `mapstructure:"send_backlog"`
	DryRun               bool           `mapstructure:"-"` // set by the --dry-run flag only
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.time_format", time.RFC3339)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_port", ":9090")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("default_fetch_frequency_seconds", DefaultFetchFrequency)
	v.SetDefault("send_backlog", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.neighbourhood-emoji")
		v.AddConfigPath("/etc/neighbourhood-emoji/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("NBHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].FrequencySeconds <= 0 {
			cfg.Sources[i].FrequencySeconds = cfg.DefaultFetchFreq
		}
	}
	return &cfg, nil
}

// Validate checks cross references between sources, profiles and proxies.
func (c *AppConfig) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("source with url %q has no name", s.URL))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("source %q: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("source %q: url is required", s.Name))
		}
		if s.ChatID == "" {
			errs = append(errs, fmt.Errorf("source %q: chat_id is required", s.Name))
		}
		if s.Profile != "" && c.ProfileByName(s.Profile) == nil {
			errs = append(errs, fmt.Errorf("source %q: unknown profile %q", s.Name, s.Profile))
		}
		if s.Proxy != "" && c.ProxyByName(s.Proxy) == nil {
			errs = append(errs, fmt.Errorf("source %q: unknown proxy %q", s.Name, s.Proxy))
		}
	}
	for _, name := range []string{c.DefaultFeedProxy, c.DefaultTelegramProxy} {
		if name != "" && c.ProxyByName(name) == nil {
			errs = append(errs, fmt.Errorf("unknown default proxy %q", name))
		}
	}
	for _, p := range c.Proxies {
		switch p.Type {
		case "http", "https", "socks5":
		default:
			errs = append(errs, fmt.Errorf("proxy %q: unsupported type %q", p.Name, p.Type))
		}
	}
	return errors.Join(errs...)
}

// ProxyByName returns the named proxy or nil.
func (c *AppConfig) ProxyByName(name string) *Proxy {
	for i := range c.Proxies {
		if c.Proxies[i].Name == name {
			return &c.Proxies[i]
		}
	}
	return nil
}

// ProfileByName returns the named profile or nil.
func (c *AppConfig) ProfileByName(name string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i]
		}
	}
	return nil
}

// SourceByName returns the named source or nil.
func (c *AppConfig) SourceByName(name string) *Source {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// EnabledSources returns the sources that are not disabled.
func (c *AppConfig) EnabledSources() []*Source {
	var out []*Source
	for i := range c.Sources {
		if !c.Sources[i].Disabled {
			out = append(out, &c.Sources[i])
		}
	}
	return out
}
