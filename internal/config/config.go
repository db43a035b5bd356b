package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Vonage    VonageConfig
	Shopify   ShopifyConfig
	Calls     CallsConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicURL is the externally reachable base URL used to build provider
	// callback URLs. Trailing slashes are trimmed.
	PublicURL string
}

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
}

// AuthConfig configures service tokens for the internal /v1 API.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
}

type VonageConfig struct {
	ApplicationID string
	// PrivateKey is a PEM RSA key; literal "\n" sequences are accepted.
	PrivateKey string
	FromNumber string
	APIBaseURL string
	// CredentialTTL is the validity window of the signed provider credential.
	CredentialTTL time.Duration
}

type ShopifyConfig struct {
	APIVersion   string
	Scheme       string
	ShopInfoTTL  time.Duration
	RequestLimit time.Duration
}

// CallsConfig holds the confirmation workflow knobs.
type CallsConfig struct {
	MaxOrderAge     time.Duration
	RingingTimer    time.Duration
	LengthTimer     time.Duration
	DefaultCountry  string
	DefaultTimezone string
	RetryCooldown   time.Duration
	RetryCeiling    time.Duration
	CallingHourFrom int
	CallingHourTo   int
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Block       time.Duration
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
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
	c.App.PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_URL")), "/")

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
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optInt("REDIS_DB", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.TokenTTL = mustDuration("JWT_TOKEN_TTL")

	c.Vonage.ApplicationID = strings.TrimSpace(os.Getenv("VONAGE_APPLICATION_ID"))
	c.Vonage.PrivateKey = os.Getenv("VONAGE_PRIVATE_KEY")
	c.Vonage.FromNumber = strings.TrimSpace(os.Getenv("VONAGE_FROM_NUMBER"))
	c.Vonage.APIBaseURL = strings.TrimSpace(os.Getenv("VONAGE_API_URL"))
	c.Vonage.CredentialTTL = mustDuration("VONAGE_CREDENTIAL_TTL")

	c.Shopify.APIVersion = strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	c.Shopify.Scheme = strings.TrimSpace(os.Getenv("SHOPIFY_SCHEME"))
	c.Shopify.ShopInfoTTL = mustDuration("SHOPIFY_SHOP_INFO_TTL")
	c.Shopify.RequestLimit = mustDuration("SHOPIFY_REQUEST_TIMEOUT")

	c.Calls.MaxOrderAge = mustDuration("CALL_MAX_ORDER_AGE")
	c.Calls.RingingTimer = mustDuration("CALL_RINGING_TIMER")
	c.Calls.LengthTimer = mustDuration("CALL_LENGTH_TIMER")
	c.Calls.DefaultCountry = strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_COUNTRY")))
	c.Calls.DefaultTimezone = strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE"))
	c.Calls.RetryCooldown = mustDuration("RETRY_COOLDOWN")
	c.Calls.RetryCeiling = mustDuration("RETRY_CEILING")
	{
		n, err := optInt("CALLING_HOUR_FROM", 9)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Calls.CallingHourFrom = n
	}
	{
		n, err := optInt("CALLING_HOUR_TO", 20)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Calls.CallingHourTo = n
	}

	{
		n, err := optInt("RATE_LIMIT_MAX", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.RateLimit.MaxRequests = n
	}
	c.RateLimit.Window = mustDuration("RATE_LIMIT_WINDOW")
	c.RateLimit.Block = mustDuration("RATE_LIMIT_BLOCK")

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	c.Telemetry.ServiceName = strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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
	if c.App.PublicURL == "" {
		errs = append(errs, errors.New("APP_URL is required"))
	} else if u, err := url.Parse(c.App.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("APP_URL must be an absolute URL, got %q", c.App.PublicURL))
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
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	if c.Vonage.ApplicationID == "" {
		errs = append(errs, errors.New("VONAGE_APPLICATION_ID is required"))
	}
	if strings.TrimSpace(c.Vonage.PrivateKey) == "" {
		errs = append(errs, errors.New("VONAGE_PRIVATE_KEY is required"))
	}
	if c.Vonage.FromNumber == "" {
		c.Vonage.FromNumber = "12068655412"
	}
	if c.Vonage.APIBaseURL == "" {
		c.Vonage.APIBaseURL = "https://api.nexmo.com"
	}
	if c.Vonage.CredentialTTL <= 0 {
		c.Vonage.CredentialTTL = 15 * time.Minute
	}

	if c.Shopify.APIVersion == "" {
		c.Shopify.APIVersion = "2025-04"
	}
	if c.Shopify.Scheme == "" {
		c.Shopify.Scheme = "https"
	}
	if c.Shopify.Scheme != "https" && c.IsProduction() {
		errs = append(errs, errors.New("SHOPIFY_SCHEME must be https in production"))
	}
	if c.Shopify.ShopInfoTTL <= 0 {
		c.Shopify.ShopInfoTTL = time.Hour
	}
	if c.Shopify.RequestLimit <= 0 {
		c.Shopify.RequestLimit = 10 * time.Second
	}

	if c.Calls.MaxOrderAge <= 0 {
		c.Calls.MaxOrderAge = 24 * time.Hour
	}
	if c.Calls.RingingTimer <= 0 {
		c.Calls.RingingTimer = 30 * time.Second
	}
	if c.Calls.LengthTimer <= 0 {
		c.Calls.LengthTimer = 300 * time.Second
	}
	if c.Calls.DefaultCountry == "" {
		c.Calls.DefaultCountry = "PE"
	}
	if c.Calls.DefaultTimezone == "" {
		c.Calls.DefaultTimezone = "America/Lima"
	}
	if _, err := time.LoadLocation(c.Calls.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE must be an IANA zone, got %q", c.Calls.DefaultTimezone))
	}
	if c.Calls.RetryCooldown <= 0 {
		c.Calls.RetryCooldown = 2 * time.Hour
	}
	if c.Calls.RetryCeiling <= 0 {
		c.Calls.RetryCeiling = 48 * time.Hour
	}
	if c.Calls.CallingHourFrom < 0 || c.Calls.CallingHourTo > 23 || c.Calls.CallingHourFrom > c.Calls.CallingHourTo {
		errs = append(errs, fmt.Errorf("calling hours must satisfy 0 <= from <= to <= 23, got %d..%d", c.Calls.CallingHourFrom, c.Calls.CallingHourTo))
	}

	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Block <= 0 {
		c.RateLimit.Block = 5 * time.Minute
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "verify-cod-orders"
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

func optInt(key string, def int) (int, error) {
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
