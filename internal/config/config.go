package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the api and worker processes.
// All values must come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Media    MediaConfig
	Pipeline PipelineConfig
	Analysis AnalysisConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	// AdminSecret signs admin tokens used for company provisioning.
	// Tenant requests authenticate with per-company API keys instead.
	AdminSecret   string
	AdminIssuer   string
	AdminTokenTTL time.Duration
}

type MediaConfig struct {
	// Root is the directory artifacts are stored under, namespaced per company.
	Root           string
	MaxUploadBytes int64
	AllowedMIME    []string
}

type PipelineConfig struct {
	Workers            int
	MaxAttempts        int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	AnalysisTimeout    time.Duration
	LeaseTTL           time.Duration
	SweepInterval      time.Duration
	ReceivedStaleAfter time.Duration
}

type AnalysisConfig struct {
	// Provider selects the analysis capability: simulated or openai.
	Provider string

	// OpenAIAPIKey is required only when Provider is openai.
	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.AdminSecret = os.Getenv("ADMIN_TOKEN_SECRET")
	c.Auth.AdminIssuer = strings.TrimSpace(os.Getenv("ADMIN_TOKEN_ISSUER"))
	c.Auth.AdminTokenTTL = optDuration("ADMIN_TOKEN_TTL")

	c.Media.Root = strings.TrimSpace(os.Getenv("MEDIA_ROOT"))
	c.Media.MaxUploadBytes = optInt64("MEDIA_MAX_UPLOAD_BYTES")
	c.Media.AllowedMIME = splitList(os.Getenv("MEDIA_ALLOWED_MIME"))

	c.Pipeline.Workers = optInt("PIPELINE_WORKERS")
	c.Pipeline.MaxAttempts = optInt("PIPELINE_MAX_ATTEMPTS")
	c.Pipeline.RetryInitialDelay = optDuration("PIPELINE_RETRY_INITIAL_DELAY")
	c.Pipeline.RetryMaxDelay = optDuration("PIPELINE_RETRY_MAX_DELAY")
	c.Pipeline.AnalysisTimeout = optDuration("PIPELINE_ANALYSIS_TIMEOUT")
	c.Pipeline.LeaseTTL = optDuration("PIPELINE_LEASE_TTL")
	c.Pipeline.SweepInterval = optDuration("PIPELINE_SWEEP_INTERVAL")
	c.Pipeline.ReceivedStaleAfter = optDuration("PIPELINE_RECEIVED_STALE_AFTER")

	c.Analysis.Provider = strings.TrimSpace(os.Getenv("ANALYSIS_PROVIDER"))
	c.Analysis.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.Analysis.OpenAIModel = strings.TrimSpace(os.Getenv("ANALYSIS_OPENAI_MODEL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

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

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.AdminSecret == "" {
		errs = append(errs, errors.New("ADMIN_TOKEN_SECRET is required"))
	}
	if c.Auth.AdminTokenTTL <= 0 {
		c.Auth.AdminTokenTTL = time.Hour
	}

	if c.Media.Root == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("MEDIA_ROOT is required in production"))
		} else {
			c.Media.Root = "./media"
		}
	}
	if c.Media.MaxUploadBytes <= 0 {
		c.Media.MaxUploadBytes = 25 << 20
	}
	if len(c.Media.AllowedMIME) == 0 {
		c.Media.AllowedMIME = []string{"audio/wav", "audio/x-wav", "audio/mpeg"}
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.RetryInitialDelay <= 0 {
		c.Pipeline.RetryInitialDelay = 2 * time.Second
	}
	if c.Pipeline.RetryMaxDelay <= 0 {
		c.Pipeline.RetryMaxDelay = 2 * time.Minute
	}
	if c.Pipeline.RetryMaxDelay < c.Pipeline.RetryInitialDelay {
		errs = append(errs, errors.New("PIPELINE_RETRY_MAX_DELAY must be >= PIPELINE_RETRY_INITIAL_DELAY"))
	}
	if c.Pipeline.AnalysisTimeout <= 0 {
		c.Pipeline.AnalysisTimeout = 40 * time.Second
	}
	if c.Pipeline.LeaseTTL <= 0 {
		c.Pipeline.LeaseTTL = 2 * time.Minute
	}
	if c.Pipeline.LeaseTTL <= c.Pipeline.AnalysisTimeout {
		errs = append(errs, errors.New("PIPELINE_LEASE_TTL must be greater than PIPELINE_ANALYSIS_TIMEOUT"))
	}
	if c.Pipeline.SweepInterval <= 0 {
		c.Pipeline.SweepInterval = 30 * time.Second
	}
	if c.Pipeline.ReceivedStaleAfter <= 0 {
		c.Pipeline.ReceivedStaleAfter = 5 * time.Minute
	}

	if c.Analysis.Provider == "" {
		c.Analysis.Provider = "simulated"
	}
	if !isValidAnalysisProvider(c.Analysis.Provider) {
		errs = append(errs, fmt.Errorf("ANALYSIS_PROVIDER must be one of simulated, openai, got %q", c.Analysis.Provider))
	}
	if c.Analysis.Provider == "openai" && c.Analysis.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required when ANALYSIS_PROVIDER is openai"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
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

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optInt64(key string) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
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

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
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

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidAnalysisProvider(v string) bool {
	switch v {
	case "simulated", "openai":
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
