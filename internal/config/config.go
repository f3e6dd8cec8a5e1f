package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the environment configuration and the hot-reloaded catalog settings.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCatalogConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// SnowflakeNodeID must be unique per running instance.
	SnowflakeNodeID int64

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig

	// AuthTokens maps bearer tokens to "name:role" actors.
	AuthTokens map[string]Actor
}

// TelemetryConfig carries the raw logging and OTLP settings; observability
// normalizes them.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled              bool
	BatchEditRate        float64
	BatchEditBurst       int
	BatchEditLockSeconds int
}

// Actor is a configured principal allowed to call the API.
type Actor struct {
	Name string
	Role string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "storefront"),
		AppVersion:        getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment:       getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SnowflakeNodeID:   int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:              getenvBool("RATE_LIMIT_ENABLED", false),
			BatchEditRate:        getenvFloat("RATE_LIMIT_BATCH_EDIT_RATE", 1),
			BatchEditBurst:       getenvInt("RATE_LIMIT_BATCH_EDIT_BURST", 5),
			BatchEditLockSeconds: getenvInt("RATE_LIMIT_BATCH_EDIT_LOCK_SECONDS", 30),
		},
		AuthTokens: ParseAuthTokens(getenv("AUTH_TOKENS", "")),
	}

	return cfg
}

// ParseAuthTokens parses "token=name:role,token2=name2:role2".
// Entries without a role default to role "viewer".
func ParseAuthTokens(raw string) map[string]Actor {
	out := make(map[string]Actor)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, principal, ok := strings.Cut(entry, "=")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			continue
		}
		name, role, _ := strings.Cut(principal, ":")
		name = strings.TrimSpace(name)
		role = strings.ToLower(strings.TrimSpace(role))
		if name == "" {
			continue
		}
		if role == "" {
			role = "viewer"
		}
		out[token] = Actor{Name: name, Role: role}
	}
	return out
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
