package routes

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/omzoxima/adminpannelbackend/logger"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	GoVersion string    `json:"go_version"`
	Uptime    string    `json:"uptime"`
}

var startTime = time.Now()

// HealthHandler provides a basic health check endpoint for load balancers
// and monitoring. It is exempt from rate limiting and device checks.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		GoVersion: runtime.Version(),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Errorf("Failed to encode health response: %v", err)
	}
}
