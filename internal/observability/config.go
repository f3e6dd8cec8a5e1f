package observability

import (
	"math"
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
)

const (
	defaultServiceName   = "storefront"
	defaultSamplingRatio = 0.1
)

// Config is the normalized logging and telemetry setup for the catalog
// service.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig normalizes the raw telemetry settings. Unknown levels fall back
// to info, unknown formats to json, unknown protocols to grpc. The sampling
// ratio is clamped to [0, 1]. Tracing is switched off when no collector
// endpoint is configured.
func LoadConfig(cfg config.Config) Config {
	raw := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	endpoint := strings.TrimSpace(raw.OTLPEndpoint)

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             oneOf(raw.LogLevel, "info", "debug", "warn", "error"),
		LogFormat:            oneOf(raw.LogFormat, "json", "console"),
		OtelEnabled:          raw.OtelEnabled && endpoint != "",
		OtelExporterEndpoint: endpoint,
		OtelExporterProtocol: oneOf(raw.OTLPProtocol, "grpc", "http", "http/protobuf"),
		OtelSamplingRatio:    clampRatio(raw.SamplingRatio),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// oneOf lowercases value and returns it when allowed, otherwise the first
// allowed entry.
func oneOf(value string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return allowed[0]
}

func clampRatio(ratio float64) float64 {
	switch {
	case math.IsNaN(ratio):
		return defaultSamplingRatio
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
