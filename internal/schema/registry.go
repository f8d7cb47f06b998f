// Package schema holds model definitions and validates/projects incoming
// JSON objects against them (spec.md §4.2, C2).
package schema

import (
	"fmt"
	"sort"
)

// Field is one declared field of a model.
type Field struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Required bool   `toml:"required"`
}

// Model is an ordered list of fields. Every model must carry an "id"
// field (spec.md §3).
type Model struct {
	Name   string
	Fields []Field
}

// HasField reports whether name is declared on the model.
func (m Model) HasField(name string) bool {
	for _, f := range m.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// MissingFieldError reports a required field absent from an input object.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required field: '%s'", e.Field)
}

// ErrModelUnknown is returned when an operation names an unregistered model.
type ErrModelUnknown struct {
	Model string
}

func (e *ErrModelUnknown) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Model)
}

// ErrInvalidID is returned when a record's "id" field is absent or not a
// non-negative integer representable as u64.
type ErrInvalidID struct {
	Reason string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("invalid id: %s", e.Reason)
}

// Registry holds the immutable set of models known at startup.
type Registry struct {
	models map[string]Model
}

// NewRegistry builds a Registry from the given models. Every model must
// declare a required "id" field; callers validate this at config-load
// time (internal/config/validate.go) but the registry re-checks so it is
// never constructible in a broken state.
func NewRegistry(models []Model) (*Registry, error) {
	m := make(map[string]Model, len(models))
	for _, model := range models {
		if !hasRequiredID(model) {
			return nil, fmt.Errorf("schema: model %q has no required 'id' field", model.Name)
		}
		m[model.Name] = model
	}
	return &Registry{models: m}, nil
}

func hasRequiredID(m Model) bool {
	for _, f := range m.Fields {
		if f.Name == "id" {
			return f.Required
		}
	}
	return false
}

// ModelNames returns all registered model names in sorted order.
func (r *Registry) ModelNames() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the model definition, or ErrModelUnknown.
func (r *Registry) Get(model string) (Model, error) {
	m, ok := r.models[model]
	if !ok {
		return Model{}, &ErrModelUnknown{Model: model}
	}
	return m, nil
}

// Validate checks that obj admits every required field declared by model.
func (r *Registry) Validate(model string, obj map[string]any) error {
	m, err := r.Get(model)
	if err != nil {
		return err
	}
	for _, f := range m.Fields {
		if !f.Required {
			continue
		}
		if _, ok := obj[f.Name]; !ok {
			return &MissingFieldError{Field: f.Name}
		}
	}
	return nil
}

// Project restricts obj to model's declared fields, dropping everything
// else. Values are preserved as-is; absent optional fields are simply
// absent from the result (spec.md §3).
func (r *Registry) Project(model string, obj map[string]any) (map[string]any, error) {
	m, err := r.Get(model)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		if v, ok := obj[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out, nil
}

// GetID extracts the "id" field as a u64. JSON numbers decode as
// float64 via encoding/json; GetID accepts a non-negative integral
// float64, a non-negative int or int64, or a uint64. Any other type
// (including json.Number) is rejected as not numeric.
func GetID(obj map[string]any) (uint64, error) {
	raw, ok := obj["id"]
	if !ok {
		return 0, &ErrInvalidID{Reason: "missing"}
	}
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, &ErrInvalidID{Reason: "not a non-negative integer"}
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, &ErrInvalidID{Reason: "negative"}
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, &ErrInvalidID{Reason: "negative"}
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	default:
		return 0, &ErrInvalidID{Reason: "not numeric"}
	}
}
