package schema

import "testing"

func userModel() Model {
	return Model{
		Name: "user",
		Fields: []Field{
			{Name: "id", Type: "u64", Required: true},
			{Name: "email", Type: "string", Required: true},
			{Name: "hash_password", Type: "string", Required: true},
			{Name: "created_at", Type: "u64", Required: false},
		},
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	r, err := NewRegistry([]Model{userModel()})
	if err != nil {
		t.Fatal(err)
	}
	obj := map[string]any{"id": float64(1), "hash_password": "x"}
	err = r.Validate("user", obj)
	if err == nil {
		t.Fatal("expected missing field error")
	}
	mfe, ok := err.(*MissingFieldError)
	if !ok {
		t.Fatalf("expected *MissingFieldError, got %T", err)
	}
	if mfe.Field != "email" {
		t.Errorf("missing field = %q, want email", mfe.Field)
	}
}

func TestValidateUnknownModel(t *testing.T) {
	r, _ := NewRegistry([]Model{userModel()})
	if err := r.Validate("widget", map[string]any{}); err == nil {
		t.Fatal("expected ErrModelUnknown")
	}
}

func TestProjectDropsUndeclaredFields(t *testing.T) {
	r, _ := NewRegistry([]Model{userModel()})
	obj := map[string]any{
		"id":            float64(1),
		"email":         "a@b",
		"hash_password": "x",
		"created_at":    float64(0),
		"admin":         true,
	}
	projected, err := r.Project("user", obj)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := projected["admin"]; ok {
		t.Error("projected object retained undeclared field 'admin'")
	}
	if len(projected) != 4 {
		t.Errorf("projected has %d fields, want 4", len(projected))
	}
}

func TestGetID(t *testing.T) {
	cases := []struct {
		name    string
		obj     map[string]any
		wantErr bool
		want    uint64
	}{
		{"valid", map[string]any{"id": float64(42)}, false, 42},
		{"missing", map[string]any{}, true, 0},
		{"negative", map[string]any{"id": float64(-1)}, true, 0},
		{"fractional", map[string]any{"id": float64(1.5)}, true, 0},
		{"non-numeric", map[string]any{"id": "1"}, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetID(tc.obj)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNewRegistryRejectsModelWithoutRequiredID(t *testing.T) {
	bad := Model{Name: "bad", Fields: []Field{{Name: "email", Type: "string", Required: true}}}
	if _, err := NewRegistry([]Model{bad}); err == nil {
		t.Fatal("expected error for model missing required id field")
	}
}
