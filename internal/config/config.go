package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig     `mapstructure:"basic_config"`
	Log         LogConfig       `mapstructure:"log"`
	Provider    ProviderConfig  `mapstructure:"provider"`
	Redis       RedisConfig     `mapstructure:"redis"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type BasicConfig struct {
	ServerAddress  string        `mapstructure:"server_address"`
	MaxDuration    time.Duration `mapstructure:"max_duration"`
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the connection address is the client.
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// providerKeyEnv is the conventional API key variable for each provider, used
// when provider.api_key is not set.
var providerKeyEnv = map[string]string{
	ProviderGroq:   "GROQ_API_KEY",
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderClaude: "ANTHROPIC_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// Load reads configuration from the provided path. An empty path falls back to
// MEDBOT_CONFIG, then to config.{yaml,json} in ./ or ./configs. A missing file is
// not an error; defaults and MEDBOT_* environment variables still apply.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	if path == "" {
		path = os.Getenv("MEDBOT_CONFIG")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if cfg.Provider.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Provider.Name]; ok {
			cfg.Provider.APIKey = os.Getenv(env)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.max_duration", 30*time.Second)
	v.SetDefault("basic_config.trusted_proxies", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("provider.name", ProviderGroq)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if _, ok := providerKeyEnv[c.Provider.Name]; !ok {
		return fmt.Errorf("unsupported provider: %q", c.Provider.Name)
	}
	if c.BasicConfig.MaxDuration <= 0 {
		return errors.New("basic_config.max_duration must be positive")
	}
	for _, proxy := range c.BasicConfig.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("basic_config.trusted_proxies: %q is not an IP or CIDR", proxy)
			}
		}
	}
	if c.RateLimit.Window < 0 {
		return errors.New("rate_limit.window cannot be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window == 0 {
		return errors.New("rate_limit.window must be set when rate_limit.requests is positive")
	}
	return nil
}
