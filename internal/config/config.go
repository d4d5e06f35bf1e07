package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the IVR process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	VoiceIt VoiceItConfig
	Flow    FlowConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// DBConfig is optional. When Host is empty the call journal and call records
// are kept in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// KeyPrefix namespaces caller mappings and call caps.
	KeyPrefix string
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type VoiceItConfig struct {
	APIKey   string
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

// FlowConfig tunes the call flow. Zero values fall back to the flow defaults.
type FlowConfig struct {
	Phrase          string
	ContentLanguage string
	Voice           string

	RecordingMax        time.Duration
	ToneWindow          time.Duration
	MappingTTL          time.Duration
	EnrollmentsRequired int

	// MaxAttempts caps consecutive failed enroll/verify attempts. 0 = unlimited.
	MaxAttempts int

	// MaxActiveCalls caps concurrent flows across all instances. 0 = no cap.
	MaxActiveCalls int
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
	if c.DB.Host != "" {
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
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}
	c.Redis.KeyPrefix = strings.TrimSpace(os.Getenv("MAPPING_KEY_PREFIX"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.VoiceIt.APIKey = strings.TrimSpace(os.Getenv("VOICEIT_API_KEY"))
	c.VoiceIt.APIToken = os.Getenv("VOICEIT_API_TOKEN")
	c.VoiceIt.BaseURL = strings.TrimSpace(os.Getenv("VOICEIT_BASE_URL"))
	c.VoiceIt.Timeout = mustDuration("VOICEIT_TIMEOUT")

	c.Flow.Phrase = strings.TrimSpace(os.Getenv("IVR_PHRASE"))
	c.Flow.ContentLanguage = strings.TrimSpace(os.Getenv("IVR_CONTENT_LANGUAGE"))
	c.Flow.Voice = strings.TrimSpace(os.Getenv("IVR_VOICE"))
	c.Flow.RecordingMax = mustDuration("IVR_RECORDING_MAX")
	c.Flow.ToneWindow = mustDuration("IVR_TONE_WINDOW")
	c.Flow.MappingTTL = mustDuration("IVR_MAPPING_TTL")
	for key, dst := range map[string]*int{
		"IVR_ENROLLMENTS_REQUIRED": &c.Flow.EnrollmentsRequired,
		"IVR_MAX_ATTEMPTS":         &c.Flow.MaxAttempts,
		"IVR_MAX_ACTIVE_CALLS":     &c.Flow.MaxActiveCalls,
	} {
		n, err := optionalInt(key)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		*dst = n
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

	if c.HasDatabase() {
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
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("DB_HOST is required in production"))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Redis.DB))
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "voiceauth:"
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Gateways hold long-lived sockets; tokens are checked on connect only.
		c.Auth.AccessTokenTTL = 24 * time.Hour
	}

	if c.VoiceIt.APIKey == "" {
		errs = append(errs, errors.New("VOICEIT_API_KEY is required"))
	}
	if c.VoiceIt.APIToken == "" {
		errs = append(errs, errors.New("VOICEIT_API_TOKEN is required"))
	}
	if c.VoiceIt.BaseURL == "" {
		c.VoiceIt.BaseURL = "https://api.voiceit.io"
	} else if !strings.HasPrefix(c.VoiceIt.BaseURL, "http://") && !strings.HasPrefix(c.VoiceIt.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("VOICEIT_BASE_URL must be an http(s) URL, got %q", c.VoiceIt.BaseURL))
	}
	if c.VoiceIt.Timeout <= 0 {
		c.VoiceIt.Timeout = 15 * time.Second
	}

	if c.Flow.EnrollmentsRequired < 0 {
		errs = append(errs, fmt.Errorf("IVR_ENROLLMENTS_REQUIRED must be >= 0, got %d", c.Flow.EnrollmentsRequired))
	}
	if c.Flow.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("IVR_MAX_ATTEMPTS must be >= 0, got %d", c.Flow.MaxAttempts))
	}
	if c.Flow.MaxActiveCalls < 0 {
		errs = append(errs, fmt.Errorf("IVR_MAX_ACTIVE_CALLS must be >= 0, got %d", c.Flow.MaxActiveCalls))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HasDatabase() bool {
	return c.DB.Host != ""
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

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
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

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
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
