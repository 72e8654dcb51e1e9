package config

import (
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stanstork/mapscrape-api/internal/temporal"
)

const DefaultOAuth2TokenURL = "https://console-backend.apify.com/oauth/apps/token"

type ActorConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ActorID       string        `mapstructure:"actor_id"`
	PlatformValue string        `mapstructure:"platform_value"`
	AppValue      string        `mapstructure:"app_value"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

type OAuth2Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
}

type AuthConfig struct {
	APIToken string       `mapstructure:"api_token"`
	OAuth2   OAuth2Config `mapstructure:"oauth2"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	Actor       ActorConfig    `mapstructure:"actor"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Temporal    TemporalConfig `mapstructure:"temporal"`
}

// Load reads config.yaml from the current directory or ./config, with
// MAPSCRAPE_* environment variables taking precedence.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Error reading config file: %v", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromViper applies defaults and environment bindings to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("MAPSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling config")
	}

	if config.JWTSecret == "" {
		return nil, errors.New("jwt_secret must be set")
	}
	if config.Auth.OAuth2.TokenURL == "" {
		config.Auth.OAuth2.TokenURL = DefaultOAuth2TokenURL
	}
	if config.Actor.PollInterval <= 0 {
		return nil, errors.Errorf("actor.poll_interval must be positive, got %s", config.Actor.PollInterval)
	}
	// Row activities heartbeat once per poll.
	if config.Actor.PollInterval >= temporal.HeartbeatTimeout {
		return nil, errors.Errorf("actor.poll_interval must be below the %s activity heartbeat timeout, got %s",
			temporal.HeartbeatTimeout, config.Actor.PollInterval)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("actor.base_url", "https://api.apify.com/v2")
	v.SetDefault("actor.actor_id", "nwua9Gu5YrADL7ZDj")
	v.SetDefault("actor.platform_value", "mapscrape")
	v.SetDefault("actor.app_value", "google-maps-extractor")
	v.SetDefault("actor.timeout", time.Minute)
	v.SetDefault("actor.poll_interval", time.Second)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")

	// Bind keys without defaults so AutomaticEnv sees them during Unmarshal.
	for _, key := range []string{
		"database_url", "jwt_secret",
		"auth.api_token",
		"auth.oauth2.client_id", "auth.oauth2.client_secret", "auth.oauth2.token_url",
		"auth.oauth2.access_token", "auth.oauth2.refresh_token",
	} {
		_ = v.BindEnv(key)
	}
}
