package config

import (
	"testing"

	"github.com/TheRemyyy/nyro-db/internal/schema"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsZeroPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero port")
	}
}

func TestValidateRejectsEmptyHost(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty host")
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty data_dir")
	}
}

func TestValidateRejectsZeroBufferSize(t *testing.T) {
	cfg := Default()
	cfg.Storage.BufferSize = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero buffer_size")
	}
}

func TestValidateRejectsZeroBatchSize(t *testing.T) {
	cfg := Default()
	cfg.Performance.BatchSize = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero batch_size")
	}
}

func TestValidateRejectsZeroMaxConcurrentOps(t *testing.T) {
	cfg := Default()
	cfg.Performance.MaxConcurrentOps = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero max_concurrent_ops")
	}
}

func TestValidateRejectsZeroMaxSamples(t *testing.T) {
	cfg := Default()
	cfg.Metrics.MaxSamples = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero max_samples")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "trace"
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateRejectsEmptyModels(t *testing.T) {
	cfg := Default()
	cfg.Models = nil
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty models")
	}
}

func TestValidateRejectsModelMissingID(t *testing.T) {
	cfg := Default()
	cfg.Models["bad"] = ModelConfig{Fields: []schema.Field{
		{Name: "email", Type: "string", Required: true},
	}}
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for model missing id field")
	}
}
