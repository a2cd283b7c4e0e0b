package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// DefaultMinStake is the admission minimum for a node's initial collateral.
const DefaultMinStake uint64 = 30_000

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Log formats.
const (
	LogFormatAuto   = "auto"
	LogFormatPretty = "pretty"
	LogFormatJSON   = "json"
)

// Config is the runtime configuration of a splitup process.
type Config struct {
	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `yaml:"-"`

	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Policy    PolicyConfig    `yaml:"policy"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig holds the economic and scheduling policy.
type PolicyConfig struct {
	MinStake          uint64     `yaml:"min_stake"`
	SamplingThreshold uint8      `yaml:"sampling_threshold"`
	Schedulers        []Identity `yaml:"schedulers"`
	// DispatchAs is the scheduler identity used by the built-in dispatcher.
	DispatchAs Identity `yaml:"dispatch_as"`
}

// StoreConfig selects the registry backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret"`
	LogLevel  string `yaml:"log_level"`
}

// StreamConfig configures the gRPC event stream.
type StreamConfig struct {
	Listen string `yaml:"listen"`
}

// TelemetryConfig toggles tracing.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: LogFormatAuto,
		Policy: PolicyConfig{
			MinStake:          DefaultMinStake,
			SamplingThreshold: DefaultSamplingThreshold,
		},
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    ".splitup/registry.json",
		},
		Server: ServerConfig{
			Listen:   "127.0.0.1:8420",
			LogLevel: "info",
		},
		Stream: StreamConfig{
			Listen: "127.0.0.1:8421",
		},
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Policy.SamplingThreshold > 100 {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "sampling threshold must be within [0,100]"),
			"sampling_threshold", c.Policy.SamplingThreshold)
	}
	if len(c.Policy.Schedulers) > MaxCommitteeMembers {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "too many schedulers"), "limit", MaxCommitteeMembers)
	}
	if c.Policy.DispatchAs != "" && !slices.Contains(c.Policy.Schedulers, c.Policy.DispatchAs) {
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "dispatch identity is not a scheduler"),
			"dispatch_as", c.Policy.DispatchAs)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return zerr.Wrap(ErrInvalidConfig, "file store requires a path")
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return zerr.Wrap(ErrInvalidConfig, "postgres store requires a dsn")
		}
	default:
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "unknown store backend"), "backend", c.Store.Backend)
	}
	switch c.LogFormat {
	case LogFormatAuto, LogFormatPretty, LogFormatJSON:
	default:
		return zerr.With(zerr.Wrap(ErrInvalidConfig, "unknown log format"), "log_format", c.LogFormat)
	}
	return nil
}
