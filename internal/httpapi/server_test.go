package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/config"
	"github.com/TheRemyyy/nyro-db/internal/engine"
	"github.com/TheRemyyy/nyro-db/internal/gate"
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

func newTestServer(t *testing.T, cfg config.Config) (*Server, *engine.Engine) {
	t.Helper()
	registry, err := schema.NewRegistry([]schema.Model{userModel()})
	if err != nil {
		t.Fatal(err)
	}
	bcast := broadcast.New(10)
	e := engine.New(engine.Config{
		DataDir:                 t.TempDir(),
		BufferSize:              4096,
		EnableMmap:              true,
		BatchSize:               1,
		BatchTimeout:            20 * time.Millisecond,
		GracefulShutdownTimeout: time.Second,
		Logger:                  logging.Noop(),
	}, registry, metrics.New(1000), bcast)
	t.Cleanup(func() { _ = e.Shutdown() })

	s := New(e, registry, bcast, cfg, gate.New(16), logging.Noop(), nil)
	return s, e
}

func TestInsertAndGet(t *testing.T) {
	cfg := config.Default()
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	body := strings.NewReader(`{"id":1,"email":"a@b","hash_password":"x","created_at":0}`)
	req := httptest.NewRequest(http.MethodPost, "/insert/user", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var inserted struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &inserted); err != nil {
		t.Fatal(err)
	}
	if inserted.ID != 1 {
		t.Fatalf("id = %d, want 1", inserted.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/get/user/1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["email"] != "a@b" {
		t.Errorf("email = %v, want a@b", got["email"])
	}
	if _, ok := got["admin"]; ok {
		t.Error("response leaked undeclared field")
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := newTestServer(t, config.Default())
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/get/user/99", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInsertMissingRequiredFieldReturns400(t *testing.T) {
	s, _ := newTestServer(t, config.Default())
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/insert/user", strings.NewReader(`{"id":1}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestQueryFieldAcrossInserts(t *testing.T) {
	s, _ := newTestServer(t, config.Default())
	h := s.Handler()

	for i, email := range []string{"a@b", "a@b", "c@d"} {
		body := strings.NewReader(`{"id":` + strconv.Itoa(i+1) + `,"email":"` + email + `","hash_password":"x"}`)
		req := httptest.NewRequest(http.MethodPost, "/insert/user", body)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("insert %d status = %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/query/user/email/a@b", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var results []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("unmarshal: %v, body=%s", err, rec.Body.String())
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestAuthRejectsMissingAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Security.EnableAuth = true
	cfg.Security.APIKey = "k"
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/insert/user", strings.NewReader(`{"id":1,"email":"a@b","hash_password":"x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/insert/user", strings.NewReader(`{"id":1,"email":"a@b","hash_password":"x"}`))
	req.Header.Set("x-api-key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 with valid key, body=%s", rec.Code, rec.Body.String())
	}
}

func TestMetricsDisabledReturns503(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enable = false
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestModelsReturnsSortedNames(t *testing.T) {
	s, _ := newTestServer(t, config.Default())
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 1 || body.Models[0] != "user" {
		t.Fatalf("models = %v, want [user]", body.Models)
	}
}

func TestBenchmarkInsertsRecords(t *testing.T) {
	s, _ := newTestServer(t, config.Default())
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/benchmark/user/5", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var result benchmarkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 5 {
		t.Fatalf("count = %d, want 5", result.Count)
	}

	req = httptest.NewRequest(http.MethodGet, "/query/user", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var all []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("query_all returned %d records, want 5", len(all))
	}
}
