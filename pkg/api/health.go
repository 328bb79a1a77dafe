package api

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Stats   map[string]interface{} `json:"stats"`
}

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.store.GetStats()

	response := HealthResponse{
		Status:  "healthy",
		Message: "go-docstore is running",
		Stats:   stats,
	}
	status := http.StatusOK
	if connected, _ := stats["connected"].(bool); !connected {
		response.Status = "unavailable"
		response.Message = "store is not connected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}
