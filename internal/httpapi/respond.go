package httpapi

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError answers API routes.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeFailure answers generation, rendering and download routes.
func writeFailure(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"detail":  detail,
	})
}
