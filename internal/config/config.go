package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	CORSAllowOrigins   string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	EventsChannel      string
	JWTSecret          string
	TurnstileSecret    string
	TurnstileVerifyURL string
	AggregateCacheTTL  time.Duration
	IPRateLimitMax     int
	IPRateLimitWindow  time.Duration
	EmailRateLimitMax  int
	EmailRateLimitTTL  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INFORM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Inform API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("events.channel", "inform")
	v.SetDefault("turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("aggregate.cache_ttl", "2m")
	v.SetDefault("ratelimit.ip_max", 10)
	v.SetDefault("ratelimit.ip_window", "1m")
	v.SetDefault("ratelimit.email_max", 5)
	v.SetDefault("ratelimit.email_window", "1h")

	cacheTTL, err := parseDuration(v, "aggregate.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	ipWindow, err := parseDuration(v, "ratelimit.ip_window")
	if err != nil {
		return Config{}, err
	}
	emailWindow, err := parseDuration(v, "ratelimit.email_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventsChannel:      v.GetString("events.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		TurnstileSecret:    v.GetString("turnstile.secret"),
		TurnstileVerifyURL: v.GetString("turnstile.verify_url"),
		AggregateCacheTTL:  cacheTTL,
		IPRateLimitMax:     v.GetInt("ratelimit.ip_max"),
		IPRateLimitWindow:  ipWindow,
		EmailRateLimitMax:  v.GetInt("ratelimit.email_max"),
		EmailRateLimitTTL:  emailWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.IPRateLimitMax <= 0 {
		cfg.IPRateLimitMax = 10
	}

	if cfg.EmailRateLimitMax <= 0 {
		cfg.EmailRateLimitMax = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
