package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mobile-payment-backend/internal/gateway"
)

const (
	RegistryFile  = "file"
	RegistryRedis = "redis"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	ShutdownTimeout         time.Duration

	LogLevel  string
	LogFormat string

	JWTSecret           string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	TokenPurgeInterval  time.Duration
	TokenRegistry       string
	TokensFile          string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	UsersFile           string
	PaymentsFile        string
	ProductsFile        string
	BootstrapAdminUser  string
	BootstrapAdminEmail string
	BootstrapAdminPass  string

	PaymentMode              gateway.Mode
	AppBaseURL               string
	ProviderBaseURL          string
	ProviderClientID         string
	ProviderClientSecret     string
	ProviderTimeout          time.Duration
	ProviderMaxRPS           float64
	ProviderRequireSignature bool

	NATSURL           string
	NATSSubjectPrefix string

	CORSOrigins    []string
	MetricsEnabled bool
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds a Config without validating it.
func FromEnv() *Config {
	return &Config{
		ServerPort:              getEnv("SERVER_PORT", "8000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:         getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),

		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET_KEY")),
		AccessTokenTTL:      time.Duration(getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTokenTTL:     time.Duration(getInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		TokenPurgeInterval:  getDuration("TOKEN_PURGE_INTERVAL", time.Hour),
		TokenRegistry:       strings.ToLower(getEnv("TOKEN_REGISTRY", RegistryFile)),
		TokensFile:          getEnv("TOKENS_STORE", "data/refresh_tokens.json"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getInt("REDIS_DB", 0),
		UsersFile:           getEnv("USERS_STORE", "data/users.json"),
		PaymentsFile:        getEnv("MOBILE_PAYMENTS_STORE", "data/payments.json"),
		ProductsFile:        strings.TrimSpace(os.Getenv("PRODUCTS_STORE")),
		BootstrapAdminUser:  getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
		BootstrapAdminEmail: getEnv("BOOTSTRAP_ADMIN_EMAIL", "admin@example.com"),
		BootstrapAdminPass:  getEnv("BOOTSTRAP_ADMIN_PASSWORD", "admin123"),

		PaymentMode:              gateway.Mode(strings.ToLower(getEnv("PAYMENT_MODE", string(gateway.ModeMock)))),
		AppBaseURL:               strings.TrimRight(getEnv("APP_BASE_URL", "http://127.0.0.1:8000"), "/"),
		ProviderBaseURL:          strings.TrimRight(strings.TrimSpace(os.Getenv("PROVIDER_BASE_URL")), "/"),
		ProviderClientID:         strings.TrimSpace(os.Getenv("PROVIDER_CLIENT_ID")),
		ProviderClientSecret:     strings.TrimSpace(os.Getenv("PROVIDER_CLIENT_SECRET")),
		ProviderTimeout:          getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderMaxRPS:           getFloat("PROVIDER_MAX_RPS", 20),
		ProviderRequireSignature: getBool("PROVIDER_REQUIRE_SIGNATURE", false),

		NATSURL:           strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "payments"),

		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "*")),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}

	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.TokenPurgeInterval <= 0 {
		return fmt.Errorf("TOKEN_PURGE_INTERVAL must be positive")
	}

	switch c.TokenRegistry {
	case RegistryFile:
		if strings.TrimSpace(c.TokensFile) == "" {
			return fmt.Errorf("TOKENS_STORE cannot be empty")
		}
	case RegistryRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("TOKEN_REGISTRY must be %q or %q, got %q", RegistryFile, RegistryRedis, c.TokenRegistry)
	}

	if strings.TrimSpace(c.UsersFile) == "" || strings.TrimSpace(c.PaymentsFile) == "" {
		return fmt.Errorf("USERS_STORE and MOBILE_PAYMENTS_STORE cannot be empty")
	}

	mode, err := gateway.ParseMode(string(c.PaymentMode))
	if err != nil {
		return fmt.Errorf("PAYMENT_MODE: %w", err)
	}

	if mode.Delegated() {
		if c.ProviderBaseURL == "" {
			return fmt.Errorf("PROVIDER_BASE_URL is required in %s mode", mode)
		}
		if c.ProviderClientID == "" || c.ProviderClientSecret == "" {
			return fmt.Errorf("PROVIDER_CLIENT_ID and PROVIDER_CLIENT_SECRET are required in %s mode", mode)
		}
		if c.ProviderTimeout <= 0 {
			return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
		}
	}

	if c.ProviderMaxRPS < 0 {
		return fmt.Errorf("PROVIDER_MAX_RPS cannot be negative")
	}

	return nil
}

// Gateway projects the payment settings onto the gateway's own config.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		Mode:             c.PaymentMode,
		AppBaseURL:       c.AppBaseURL,
		ProviderBaseURL:  c.ProviderBaseURL,
		ClientID:         c.ProviderClientID,
		ClientSecret:     c.ProviderClientSecret,
		ProviderTimeout:  c.ProviderTimeout,
		ProviderMaxRPS:   c.ProviderMaxRPS,
		RequireSignature: c.ProviderRequireSignature,
	}
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
