package handlers

import "net/http"

// Health reports liveness. It sits outside the /api group so probes need
// neither an API key nor an allowed origin.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "floorvis",
	})
}
