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

// Config aggregates runtime configuration for both processes.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Gateway  GatewayConfig
	DomainID DomainIDConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig locates the token verification keys and tunes the gate.
type AuthConfig struct {
	PublicKeyPEM     string
	PublicKeyPath    string
	JWKSPath         string
	JWKSURL          string
	ClockSkewSeconds int
	PublicPaths      []string
	ToleratedRoles   []string
	StrictRoles      bool
	// LazyKeys defers key decoding to the first request instead of process start.
	LazyKeys bool
}

// CORSConfig is applied by the service router and to gate rejections at the edge.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// GatewayConfig points the edge at its upstreams.
type GatewayConfig struct {
	AcademicURL         string
	AuthURL             string
	ProxyTimeoutSeconds int
}

// DomainIDConfig configures the remote domain-id lookup. An empty RemoteURL disables it.
type DomainIDConfig struct {
	RemoteURL       string
	TimeoutMS       int
	CacheSize       int
	CacheTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "academic-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			PublicKeyPEM:     os.Getenv("AUTH_PUBLIC_KEY_PEM"),
			PublicKeyPath:    os.Getenv("AUTH_PUBLIC_KEY_PATH"),
			JWKSPath:         os.Getenv("AUTH_JWKS_PATH"),
			JWKSURL:          os.Getenv("AUTH_JWKS_URL"),
			ClockSkewSeconds: getEnvAsInt("AUTH_CLOCK_SKEW_SECONDS", 30),
			PublicPaths:      getEnvAsList("AUTH_PUBLIC_PATHS", nil),
			ToleratedRoles:   getEnvAsList("AUTH_TOLERATED_ROLES", nil),
			StrictRoles:      getEnvAsBool("AUTH_STRICT_ROLES", false),
			LazyKeys:         getEnvAsBool("AUTH_LAZY_KEYS", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"}),
		},
		Gateway: GatewayConfig{
			AcademicURL:         getEnv("GATEWAY_ACADEMIC_URL", "http://127.0.0.1:8081"),
			AuthURL:             getEnv("GATEWAY_AUTH_URL", "http://127.0.0.1:8082"),
			ProxyTimeoutSeconds: getEnvAsInt("GATEWAY_PROXY_TIMEOUT_SECONDS", 15),
		},
		DomainID: DomainIDConfig{
			RemoteURL:       os.Getenv("DOMAINID_REMOTE_URL"),
			TimeoutMS:       getEnvAsInt("DOMAINID_TIMEOUT_MS", 2000),
			CacheSize:       getEnvAsInt("DOMAINID_CACHE_SIZE", 1024),
			CacheTTLSeconds: getEnvAsInt("DOMAINID_CACHE_TTL_SECONDS", 300),
		},
	}

	return cfg, nil
}

// Validate rejects configurations that cannot authenticate anything.
func (c *Config) Validate() error {
	var errs []error
	if !c.Auth.HasKeySource() {
		errs = append(errs, errors.New("one of AUTH_PUBLIC_KEY_PEM, AUTH_PUBLIC_KEY_PATH, AUTH_JWKS_PATH or AUTH_JWKS_URL is required"))
	}
	if c.Auth.ClockSkewSeconds < 0 {
		errs = append(errs, fmt.Errorf("AUTH_CLOCK_SKEW_SECONDS must not be negative, got %d", c.Auth.ClockSkewSeconds))
	}
	if c.DomainID.RemoteURL != "" && c.DomainID.TimeoutMS <= 0 {
		errs = append(errs, errors.New("DOMAINID_TIMEOUT_MS must be positive when DOMAINID_REMOTE_URL is set"))
	}
	return errors.Join(errs...)
}

// HasKeySource reports whether any verification key location is configured.
func (a AuthConfig) HasKeySource() bool {
	return strings.TrimSpace(a.PublicKeyPEM) != "" || a.PublicKeyPath != "" || a.JWKSPath != "" || a.JWKSURL != ""
}

// ClockSkew returns the expiration tolerance.
func (a AuthConfig) ClockSkew() time.Duration {
	return time.Duration(a.ClockSkewSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ProxyTimeout returns the upstream timeout.
func (g GatewayConfig) ProxyTimeout() time.Duration {
	return time.Duration(g.ProxyTimeoutSeconds) * time.Second
}

func (d DomainIDConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

func (d DomainIDConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
