// Package config loads and validates nyrodb's TOML configuration
// (spec.md §6). The split between this file (types + defaults), toml.go
// (format-specific load/save) and validate.go (rule composition) mirrors
// the teacher's pkg/config package, adapted from YAML/JSON to TOML.
package config

import "github.com/TheRemyyy/nyro-db/internal/schema"

// Config is the full table-of-sections configuration.
type Config struct {
	Server      ServerConfig           `toml:"server"`
	Storage     StorageConfig          `toml:"storage"`
	Performance PerformanceConfig      `toml:"performance"`
	Logging     LoggingConfig          `toml:"logging"`
	Metrics     MetricsConfig          `toml:"metrics"`
	Security    SecurityConfig         `toml:"security"`
	Models      map[string]ModelConfig `toml:"models"`
}

type ServerConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	GracefulShutdownTimeout  int    `toml:"graceful_shutdown_timeout"`
}

type StorageConfig struct {
	DataDir          string `toml:"data_dir"`
	BufferSize       int    `toml:"buffer_size"`
	EnableMmap       bool   `toml:"enable_mmap"`
	SyncIntervalMs   int    `toml:"sync_interval"`
}

type PerformanceConfig struct {
	BatchSize         int `toml:"batch_size"`
	BatchTimeoutMs    int `toml:"batch_timeout"`
	MaxConcurrentOps  int `toml:"max_concurrent_ops"`
}

type LoggingConfig struct {
	Level        string `toml:"level"`
	EnableColors bool   `toml:"enable_colors"`
	LogRequests  bool   `toml:"log_requests"`
}

type MetricsConfig struct {
	Enable         bool `toml:"enable"`
	ReportInterval int  `toml:"report_interval"`
	MaxSamples     int  `toml:"max_samples"`
}

type SecurityConfig struct {
	EnableAuth bool   `toml:"enable_auth"`
	APIKey     string `toml:"api_key"`
}

// ModelConfig is one named model's field list, as found under
// [models.<name>] in the TOML file.
type ModelConfig struct {
	Fields []schema.Field `toml:"fields"`
}

// ToSchemaModels converts the config's model table into schema.Model values.
func (c *Config) ToSchemaModels() []schema.Model {
	out := make([]schema.Model, 0, len(c.Models))
	for name, mc := range c.Models {
		out = append(out, schema.Model{Name: name, Fields: mc.Fields})
	}
	return out
}

// Redacted returns a copy of c with a non-empty security.api_key replaced
// by "***", for the /config endpoint (SPEC_FULL.md §4).
func (c Config) Redacted() Config {
	if c.Security.APIKey != "" {
		c.Security.APIKey = "***"
	}
	return c
}

// Default returns nyrodb's built-in default configuration, used both as
// the fallback when no config file is found and as the payload for
// --generate-config.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                    "127.0.0.1",
			Port:                    8080,
			GracefulShutdownTimeout: 10,
		},
		Storage: StorageConfig{
			DataDir:        "./data",
			BufferSize:     65536,
			EnableMmap:     true,
			SyncIntervalMs: 1000,
		},
		Performance: PerformanceConfig{
			BatchSize:        100,
			BatchTimeoutMs:   50,
			MaxConcurrentOps: 256,
		},
		Logging: LoggingConfig{
			Level:        "info",
			EnableColors: true,
			LogRequests:  false,
		},
		Metrics: MetricsConfig{
			Enable:         true,
			ReportInterval: 30,
			MaxSamples:     1000,
		},
		Security: SecurityConfig{
			EnableAuth: false,
			APIKey:     "",
		},
		Models: map[string]ModelConfig{
			"user": {
				Fields: []schema.Field{
					{Name: "id", Type: "u64", Required: true},
					{Name: "email", Type: "string", Required: true},
					{Name: "hash_password", Type: "string", Required: true},
					{Name: "created_at", Type: "u64", Required: false},
				},
			},
		},
	}
}

// DiscoveryPaths is the ordered list of locations nyrodb's CLI searches
// for a config file before falling back to Default() (spec.md §6).
var DiscoveryPaths = []string{
	"./nyrodb.toml",
	"./config/nyrodb.toml",
	"/etc/nyrodb/nyrodb.toml",
}
