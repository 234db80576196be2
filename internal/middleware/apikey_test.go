package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
	}{
		{name: "matching key accepted", secret: "shared-secret", header: "shared-secret", wantStatus: http.StatusOK},
		{name: "wrong key rejected", secret: "shared-secret", header: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing key rejected", secret: "shared-secret", wantStatus: http.StatusUnauthorized},
		{name: "empty secret disables check", secret: "", wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := APIKey(tc.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("unmarshal body: %v", err)
				}
				if body["error"] != "Unauthorized" {
					t.Fatalf("error = %q, want %q", body["error"], "Unauthorized")
				}
			}
		})
	}
}
