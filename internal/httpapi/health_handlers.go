package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	Version   string
	StartedAt time.Time
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":       true,
		"version":  h.Version,
		"uptime_s": int(time.Since(h.StartedAt).Seconds()),
	})
}
