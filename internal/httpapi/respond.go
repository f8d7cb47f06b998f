package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/TheRemyyy/nyro-db/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeEngineError maps an engine.Error to its spec.md §7 HTTP status.
// Non-engine errors (shouldn't occur past the handler layer) fall back
// to 500.
func writeEngineError(w http.ResponseWriter, err error) {
	if ee, ok := engine.AsEngineError(err); ok {
		writeError(w, ee.Status(), ee.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeJSONObject(r *http.Request) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}
