package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"floorvis/internal/domain"
	"floorvis/internal/infra"
	"floorvis/internal/providers/gemini"
)

// Generator performs one upstream image edit. HasCredentials reports
// whether the upstream credential is configured; requests are rejected
// before any upstream call when it is not.
type Generator interface {
	EditImage(ctx context.Context, req gemini.EditRequest) ([]byte, error)
	HasCredentials() bool
}

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Upstream Generator
	Usage    domain.UsageRecorder
}

func NewApp(cfg *infra.Config, logger infra.Logger, upstream Generator, usage domain.UsageRecorder) *App {
	return &App{Config: cfg, Logger: logger, Upstream: upstream, Usage: usage}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, message, details string) {
	a.json(w, code, errorBody{Error: message, Details: details})
}
