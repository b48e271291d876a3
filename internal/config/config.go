package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// VerifyMode selects which redemption flow a deployment exposes.
type VerifyMode string

const (
	// VerifyModeLookup redeems by tokenId against the store (single use, live data).
	VerifyModeLookup VerifyMode = "lookup"
	// VerifyModeSelfContained redeems the encrypted payload itself (snapshot data).
	VerifyModeSelfContained VerifyMode = "self_contained"
)

const devQRSecret = "dev-qr-secret-change-me"

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	QR       QRConfig
	CORS     CORSConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPasswordHash  string
	BcryptCost            int
}

// QRConfig holds token issuance and redemption settings. Secret is loaded once
// at startup and handed to the sealer; there is no hot reload.
type QRConfig struct {
	Secret           string
	DefaultTTLHours  int
	PublicBaseURL    string
	VerifyMode       VerifyMode
	VerifyCheckStore bool
	ImageSize        int
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "qrpass-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorUsername:      getEnv("AUTH_OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		QR: QRConfig{
			Secret:           getEnv("QR_SECRET", devQRSecret),
			DefaultTTLHours:  getEnvAsInt("QR_DEFAULT_TTL_HOURS", 24),
			PublicBaseURL:    strings.TrimRight(getEnv("QR_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			VerifyMode:       VerifyMode(strings.ToLower(getEnv("QR_VERIFY_MODE", string(VerifyModeLookup)))),
			VerifyCheckStore: getEnvAsBool("QR_VERIFY_CHECK_STORE", false),
			ImageSize:        getEnvAsInt("QR_IMAGE_SIZE", 500),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.QR.VerifyMode {
	case VerifyModeLookup, VerifyModeSelfContained:
	default:
		return fmt.Errorf("invalid QR_VERIFY_MODE %q", c.QR.VerifyMode)
	}
	if strings.TrimSpace(c.QR.Secret) == "" {
		return errors.New("QR_SECRET must not be empty")
	}
	if !c.App.IsDevelopment() && c.QR.Secret == devQRSecret {
		return errors.New("QR_SECRET must be set outside development")
	}
	if c.QR.DefaultTTLHours <= 0 {
		return fmt.Errorf("invalid QR_DEFAULT_TTL_HOURS %d", c.QR.DefaultTTLHours)
	}
	if c.QR.ImageSize < 64 {
		return fmt.Errorf("invalid QR_IMAGE_SIZE %d", c.QR.ImageSize)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs with development defaults.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "test"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultTTL returns the expiry applied when issuance does not specify one.
func (q QRConfig) DefaultTTL() time.Duration {
	return time.Duration(q.DefaultTTLHours) * time.Hour
}

// ScanURL builds the URL encoded into lookup-mode QR images.
func (q QRConfig) ScanURL(tokenID string) string {
	return q.PublicBaseURL + "/api/qr/scan/" + tokenID
}

// AccessTokenTTL returns the operator token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
