package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Token   TokenConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Cache   CacheConfig
	OIDC    OIDCConfig
	Session SessionConfig
	Reset   ResetConfig
}

type TokenConfig struct {
	Secret string        `env:"TOKEN_SECRET, required"`
	TTL    time.Duration `env:"TOKEN_TTL,    default=720h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity_session"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

// CacheConfig selects where the last identity is kept between restarts.
type CacheConfig struct {
	Backend string `env:"CACHE_BACKEND, default=redis"`
	Key     string `env:"CACHE_KEY,     default=identity-session:current"`
	File    string `env:"CACHE_FILE,    default=.identity-session/session.json"`
}

// OIDCConfig enables OAuth sign-in when Issuer is set.
type OIDCConfig struct {
	Issuer       string `env:"OIDC_ISSUER"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `env:"OIDC_REDIRECT_URL"`
	// SuccessURL is where the browser lands after OAuth sign-in. Empty
	// answers the callback with JSON.
	SuccessURL string `env:"OIDC_SUCCESS_URL"`
}

func (c OIDCConfig) Enabled() bool { return c.Issuer != "" }

type SessionConfig struct {
	TrialDays      int      `env:"TRIAL_DAYS,       default=14"`
	TrialPlan      string   `env:"TRIAL_PLAN,       default=pro"`
	AuthOnlyRoutes []string `env:"AUTH_ONLY_ROUTES, default=/signin,/signup"`
	LandingRoute   string   `env:"LANDING_ROUTE,    default=/dashboard"`
}

func (c SessionConfig) TrialDuration() time.Duration {
	return time.Duration(c.TrialDays) * 24 * time.Hour
}

type ResetConfig struct {
	Throttle time.Duration `env:"RESET_THROTTLE,  default=60s"`
	TokenTTL time.Duration `env:"RESET_TOKEN_TTL, default=1h"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "redis", "file":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or file, got %q", c.Cache.Backend)
	}
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		return fmt.Errorf("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER is set")
	}
	if c.Session.TrialDays <= 0 {
		return fmt.Errorf("TRIAL_DAYS must be positive, got %d", c.Session.TrialDays)
	}
	return nil
}

// Development reports whether the process runs in a development environment.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}
