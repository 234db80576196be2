package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError emits the same error body shape the handlers use, so
// rejections raised by middleware look identical to the client.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
