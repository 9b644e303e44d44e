package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"
)

// DevJWTSecret signs sessions when JWT_SECRET is unset. Never use it in production.
const DevJWTSecret = "linksaver-dev-secret-change-me"

type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret     string
	CookieSecure  bool
	AllowedOrigin string

	// Metadata pipeline
	ReaderBaseURL        string
	ReaderAPIKey         string
	LocalReader          bool
	PageTimeout          time.Duration
	ProbeTimeout         time.Duration
	SummaryTimeout       time.Duration
	MetadataCacheTTL     time.Duration
	BlockPrivateNetworks bool
	BrowserFallback      bool

	AddRatePerMinute int

	DiscordToken         string
	DiscordNotifyChannel string

	// Worker
	PollInterval    time.Duration
	RefreshSchedule string
	RefreshAfter    time.Duration
}

// Load parses flags from args, falling back to environment variables
// (flag "database-url" reads DATABASE_URL).
func Load(args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("linksaver", flag.ContinueOnError)

	fs.StringVar(&c.Port, "port", "8080", "Server port")
	fs.StringVar(&c.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis connection URL")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "Secret used to sign session tokens")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", false, "Mark the session cookie Secure")
	fs.StringVar(&c.AllowedOrigin, "allowed-origin", "", "Browser origin allowed to call the API with credentials (empty allows any origin without credentials)")

	fs.StringVar(&c.ReaderBaseURL, "reader-base-url", "https://r.jina.ai", "Reader service base URL")
	fs.StringVar(&c.ReaderAPIKey, "reader-api-key", "", "Reader service API key")
	fs.BoolVar(&c.LocalReader, "local-reader", false, "Summarize with the built-in readability extractor instead of the reader service")
	fs.DurationVar(&c.PageTimeout, "page-timeout", 8*time.Second, "Page fetch timeout")
	fs.DurationVar(&c.ProbeTimeout, "probe-timeout", 3*time.Second, "Favicon probe timeout")
	fs.DurationVar(&c.SummaryTimeout, "summary-timeout", 15*time.Second, "Summarizer timeout")
	fs.DurationVar(&c.MetadataCacheTTL, "metadata-cache-ttl", 24*time.Hour, "How long extracted metadata is cached (0 disables)")
	fs.BoolVar(&c.BlockPrivateNetworks, "block-private-networks", true, "Refuse to fetch loopback, private and link-local addresses")
	fs.BoolVar(&c.BrowserFallback, "browser-fallback", false, "Render pages that refuse plain fetches in headless Chrome")

	fs.IntVar(&c.AddRatePerMinute, "add-rate-per-min", 30, "Bookmarks a user may add per minute (0 disables)")

	fs.StringVar(&c.DiscordToken, "discord-token", "", "Discord bot token for save notifications")
	fs.StringVar(&c.DiscordNotifyChannel, "discord-notify-channel", "", "Discord channel ID for save notifications")

	fs.DurationVar(&c.PollInterval, "poll-interval", time.Second, "Worker queue poll interval")
	fs.StringVar(&c.RefreshSchedule, "refresh-schedule", "@hourly", "Cron schedule for re-extracting placeholder summaries")
	fs.DurationVar(&c.RefreshAfter, "refresh-after", time.Hour, "Minimum age before a placeholder summary is retried")

	if err := ff.Parse(fs, args, ff.WithEnvVars()); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return c, nil
}

// UsingDevSecret reports whether JWT_SECRET was left unset
func (c *Config) UsingDevSecret() bool {
	return c.JWTSecret == ""
}

// SessionSecret returns the signing secret, falling back to DevJWTSecret
func (c *Config) SessionSecret() string {
	if c.JWTSecret == "" {
		return DevJWTSecret
	}
	return c.JWTSecret
}

func (c *Config) validateCommon() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.PageTimeout <= 0 || c.ProbeTimeout <= 0 || c.SummaryTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateForAPI ensures all required fields for the API service are present
func (c *Config) ValidateForAPI() error {
	var errs []error
	if err := c.validateCommon(); err != nil {
		errs = append(errs, err)
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.AddRatePerMinute < 0 {
		errs = append(errs, errors.New("ADD_RATE_PER_MIN must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateForWorker ensures all required fields for the worker service are present
func (c *Config) ValidateForWorker() error {
	var errs []error
	if err := c.validateCommon(); err != nil {
		errs = append(errs, err)
	}
	if (c.DiscordToken == "") != (c.DiscordNotifyChannel == "") {
		errs = append(errs, errors.New("DISCORD_TOKEN and DISCORD_NOTIFY_CHANNEL must be set together"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
