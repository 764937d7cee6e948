package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, err error) {
	apperrors.WriteJSON(w, err)
}

func jsonEncode(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
