package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"floorvis/internal/domain"
	"floorvis/internal/middleware"
	"floorvis/internal/providers/gemini"
)

type generateRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Generate validates one generation request, forwards it upstream with the
// server-side credential attached and relays the outcome. Success responses
// pass through byte for byte so clients can parse the provider envelope
// themselves; error responses carry only sanitized text.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// The ceiling is counted in base64 characters. The JSON wrapper adds
	// field names and quoting, so the raw body cap carries some slack.
	r.Body = http.MaxBytesReader(w, r.Body, int64(a.Config.MaxImageChars)+64*1024)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			a.error(w, http.StatusRequestEntityTooLarge, "Image payload too large", "")
			return
		}
		a.error(w, http.StatusBadRequest, "Invalid JSON body", "")
		return
	}
	if req.ImageBase64 == "" || strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "Missing required fields: imageBase64, prompt", "")
		return
	}
	if len(req.ImageBase64) > a.Config.MaxImageChars {
		details := fmt.Sprintf("imageBase64 exceeds %d characters", a.Config.MaxImageChars)
		a.error(w, http.StatusRequestEntityTooLarge, "Image payload too large", details)
		return
	}

	if a.Upstream == nil || !a.Upstream.HasCredentials() {
		a.Logger.Error().
			Bool("gemini_api_key", a.Config.GeminiAPIKey != "").
			Bool("gemini_base_url", a.Config.GeminiBaseURL != "").
			Str("gemini_model", a.Config.GeminiModel).
			Msg("generate: upstream credential not configured")
		a.error(w, http.StatusInternalServerError, "Server configuration error", "")
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.Config.GeminiModel
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.Config.UpstreamTimeout)
	defer cancel()

	raw, err := a.Upstream.EditImage(ctx, gemini.EditRequest{
		Model:       model,
		MimeType:    mimeType,
		ImageBase64: req.ImageBase64,
		Prompt:      req.Prompt,
	})
	latency := time.Since(start)

	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			a.recordUsage(r, model, false, apiErr.StatusCode, latency)
			a.Logger.Warn().Err(err).Int("status", apiErr.StatusCode).Msg("generate: upstream returned an error")
			a.error(w, apiErr.StatusCode, "Image generation failed", apiErr.Message)
			return
		}
		a.recordUsage(r, model, false, http.StatusBadGateway, latency)
		a.Logger.Error().Err(err).Msg("generate: upstream unreachable")
		a.error(w, http.StatusBadGateway, "Failed to reach the image service", "")
		return
	}

	a.recordUsage(r, model, true, http.StatusOK, latency)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// recordUsage persists the request outcome. Failures are logged and never
// affect the response; the insert outlives the request so a client
// disconnect cannot drop the event.
func (a *App) recordUsage(r *http.Request, model string, success bool, status int, latency time.Duration) {
	if a.Usage == nil {
		return
	}
	event := domain.UsageEvent{
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Model:      model,
		Country:    middleware.CountryFromContext(r.Context()),
		Success:    success,
		StatusCode: status,
		LatencyMS:  latency.Milliseconds(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := a.Usage.Record(ctx, event); err != nil {
		a.Logger.Warn().Err(err).Msg("generate: record usage event failed")
	}
}
