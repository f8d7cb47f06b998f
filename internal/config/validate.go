package config

import (
	"fmt"
	"strings"

	"github.com/TheRemyyy/nyro-db/internal/logging"
)

// Validator mirrors the teacher's config.Validator: a composable check
// against the loaded configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(cfg *Config) error

func (f ValidatorFunc) Validate(cfg *Config) error { return f(cfg) }

// Validate runs every rejection rule spec.md §6 names. It returns the
// first violation found.
func Validate(cfg *Config) error {
	validators := []Validator{
		ValidatorFunc(validateServer),
		ValidatorFunc(validateStorage),
		ValidatorFunc(validatePerformance),
		ValidatorFunc(validateLogging),
		ValidatorFunc(validateMetrics),
		ValidatorFunc(validateModels),
	}
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.Port == 0 {
		return fmt.Errorf("server.port must not be zero")
	}
	if strings.TrimSpace(cfg.Server.Host) == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	return nil
}

func validateStorage(cfg *Config) error {
	if cfg.Storage.BufferSize == 0 {
		return fmt.Errorf("storage.buffer_size must not be zero")
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	return nil
}

func validatePerformance(cfg *Config) error {
	if cfg.Performance.BatchSize == 0 {
		return fmt.Errorf("performance.batch_size must not be zero")
	}
	if cfg.Performance.MaxConcurrentOps == 0 {
		return fmt.Errorf("performance.max_concurrent_ops must not be zero")
	}
	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

func validateMetrics(cfg *Config) error {
	if cfg.Metrics.MaxSamples == 0 {
		return fmt.Errorf("metrics.max_samples must not be zero")
	}
	return nil
}

func validateModels(cfg *Config) error {
	if len(cfg.Models) == 0 {
		return fmt.Errorf("models must not be empty")
	}
	for name, m := range cfg.Models {
		if len(m.Fields) == 0 {
			return fmt.Errorf("model %q: fields must not be empty", name)
		}
		hasRequiredID := false
		for _, f := range m.Fields {
			if f.Name == "id" && f.Required {
				hasRequiredID = true
			}
		}
		if !hasRequiredID {
			return fmt.Errorf("model %q: missing required 'id' field", name)
		}
	}
	return nil
}
