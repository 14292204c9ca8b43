package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env and are read once in Load; handlers receive the
// pieces they need and never read the environment themselves.
type Config struct {
	App        AppConfig
	Store      StoreConfig
	Redis      RedisConfig
	Auth       AuthConfig
	OpenAI     OpenAIConfig
	Twilio     TwilioConfig
	ElevenLabs ElevenLabsConfig
	Limits     LimitsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally visible origin (scheme://host) used to
	// rebuild webhook URLs for provider signature checks behind proxies.
	PublicBaseURL string
}

type StoreConfig struct {
	// URL is a Postgres connection URL. Avoid logging it; it contains secrets.
	URL string

	// ServiceKey is the privileged key accepted in X-Service-Key.
	ServiceKey string

	AutoMigrate bool
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	// JWTSecret is the public-client key used to sign and verify user tokens.
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type TwilioConfig struct {
	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken string
}

type ElevenLabsConfig struct {
	WebhookSecret string
	RelayBaseURL  string
}

type LimitsConfig struct {
	// MaxConcurrentCallsPerAgent caps live bridged calls per agent. 0 disables.
	MaxConcurrentCallsPerAgent int
}

const (
	defaultOpenAIModel  = "gpt-4o"
	defaultRelayBaseURL = "wss://api.elevenlabs.io/v1/convai/twilio"
)

// Required secret names, in the order they are reported.
const (
	SecretDatabaseURL    = "DATABASE_URL"
	SecretJWT            = "JWT_SECRET"
	SecretServiceRoleKey = "SERVICE_ROLE_KEY"
	SecretOpenAIAPIKey   = "OPENAI_API_KEY"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.URL = strings.TrimSpace(os.Getenv(SecretDatabaseURL))
	c.Store.ServiceKey = os.Getenv(SecretServiceRoleKey)
	{
		b, err := optionalBool("DB_AUTO_MIGRATE", c.App.Env != "production")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Store.AutoMigrate = b
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv(SecretJWT)
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.OpenAI.APIKey = strings.TrimSpace(os.Getenv(SecretOpenAIAPIKey))
	c.OpenAI.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	c.OpenAI.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))

	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.ElevenLabs.WebhookSecret = os.Getenv("ELEVENLABS_WEBHOOK_SECRET")
	c.ElevenLabs.RelayBaseURL = strings.TrimSpace(os.Getenv("ELEVENLABS_RELAY_URL"))

	{
		n, err := optionalInt("MAX_CONCURRENT_CALLS_PER_AGENT", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Limits.MaxConcurrentCallsPerAgent = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	// Outside production a missing secret only disables the feature behind it
	// and shows up in /api/health.
	if c.IsProduction() {
		for _, name := range c.MissingSecrets() {
			errs = append(errs, fmt.Errorf("%s is required in production", name))
		}
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.ElevenLabs.RelayBaseURL == "" {
		c.ElevenLabs.RelayBaseURL = defaultRelayBaseURL
	}
	if !strings.HasPrefix(c.ElevenLabs.RelayBaseURL, "wss://") && !strings.HasPrefix(c.ElevenLabs.RelayBaseURL, "ws://") {
		errs = append(errs, fmt.Errorf("ELEVENLABS_RELAY_URL must be a ws(s) URL, got %q", c.ElevenLabs.RelayBaseURL))
	}
	if c.Limits.MaxConcurrentCallsPerAgent < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS_PER_AGENT must be >= 0, got %d", c.Limits.MaxConcurrentCallsPerAgent))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// SecretPresence reports, per required secret name, whether a value is set.
func (c Config) SecretPresence() map[string]bool {
	return map[string]bool{
		SecretDatabaseURL:    c.Store.URL != "",
		SecretJWT:            c.Auth.JWTSecret != "",
		SecretServiceRoleKey: c.Store.ServiceKey != "",
		SecretOpenAIAPIKey:   c.OpenAI.APIKey != "",
	}
}

// MissingSecrets lists unset required secrets in a stable order.
func (c Config) MissingSecrets() []string {
	present := c.SecretPresence()
	var out []string
	for _, name := range []string{SecretDatabaseURL, SecretJWT, SecretServiceRoleKey, SecretOpenAIAPIKey} {
		if !present[name] {
			out = append(out, name)
		}
	}
	return out
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
