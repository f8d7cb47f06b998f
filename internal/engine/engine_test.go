package engine

import (
	"testing"
	"time"

	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/logging"
	"github.com/TheRemyyy/nyro-db/internal/metrics"
	"github.com/TheRemyyy/nyro-db/internal/schema"
)

func userModel() schema.Model {
	return schema.Model{
		Name: "user",
		Fields: []schema.Field{
			{Name: "id", Type: "u64", Required: true},
			{Name: "email", Type: "string", Required: true},
			{Name: "hash_password", Type: "string", Required: true},
			{Name: "created_at", Type: "u64", Required: false},
		},
	}
}

func newTestEngine(t *testing.T, batchSize int) *Engine {
	t.Helper()
	dir := t.TempDir()
	registry, err := schema.NewRegistry([]schema.Model{userModel()})
	if err != nil {
		t.Fatal(err)
	}
	e := New(Config{
		DataDir:                 dir,
		BufferSize:              4096,
		EnableMmap:              true,
		BatchSize:               batchSize,
		BatchTimeout:            20 * time.Millisecond,
		GracefulShutdownTimeout: time.Second,
		Logger:                  logging.Noop(),
	}, registry, metrics.New(1000), broadcast.New(100))
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func TestInsertThenGetSynchronousPath(t *testing.T) {
	e := newTestEngine(t, 1)

	id, err := e.Insert("user", map[string]any{
		"id": float64(1), "email": "a@b", "hash_password": "x", "created_at": float64(0),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	got, err := e.Get("user", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["email"] != "a@b" {
		t.Errorf("email = %v, want a@b", got["email"])
	}
}

func TestInsertDropsUndeclaredFields(t *testing.T) {
	e := newTestEngine(t, 1)
	_, err := e.Insert("user", map[string]any{
		"id": float64(1), "email": "a@b", "hash_password": "x", "admin": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Get("user", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["admin"]; ok {
		t.Error("Get returned undeclared field 'admin'")
	}
}

func TestInsertMissingRequiredFieldFails(t *testing.T) {
	e := newTestEngine(t, 1)
	_, err := e.Insert("user", map[string]any{"id": float64(1), "hash_password": "x"})
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	ee, ok := AsEngineError(err)
	if !ok || ee.Kind != KindSchemaViolation {
		t.Fatalf("expected KindSchemaViolation, got %#v", err)
	}
}

func TestGetUnknownModel(t *testing.T) {
	e := newTestEngine(t, 1)
	_, err := e.Get("widget", 1)
	ee, ok := AsEngineError(err)
	if !ok || ee.Kind != KindModelUnknown {
		t.Fatalf("expected KindModelUnknown, got %#v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	e := newTestEngine(t, 1)
	_, err := e.Get("user", 42)
	ee, ok := AsEngineError(err)
	if !ok || ee.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %#v", err)
	}
}

func TestQueryFieldAcrossInserts(t *testing.T) {
	e := newTestEngine(t, 1)
	emails := []string{"a@b", "a@b", "c@d"}
	for i, email := range emails {
		if _, err := e.Insert("user", map[string]any{
			"id": float64(i + 1), "email": email, "hash_password": "x",
		}); err != nil {
			t.Fatal(err)
		}
	}
	results, err := e.QueryField("user", "email", "a@b")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestBatchPathPersistsBeforeShutdownReturns(t *testing.T) {
	e := newTestEngine(t, 5)
	for i := 0; i < 5; i++ {
		if _, err := e.Insert("user", map[string]any{
			"id": float64(i + 1), "email": "a@b", "hash_password": "x",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if _, err := e.Get("user", uint64(i)); err != nil {
			t.Errorf("Get(%d) after shutdown: %v", i, err)
		}
	}
}
