package api

import (
	"net/http"
	"time"
)

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status    string  `json:"status"`
	Bot       string  `json:"bot"`
	Guilds    int     `json:"guilds"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func (h *Handler) uptime() float64 {
	return h.now().Sub(h.started).Seconds()
}

func (h *Handler) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:    "online",
		Bot:       "Starting...",
		Uptime:    h.uptime(),
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	}
	if h.status != nil {
		if tag := h.status.BotTag(); tag != "" {
			resp.Bot = tag
		}
		resp.Guilds = h.status.GuildCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Uptime: h.uptime()})
}
