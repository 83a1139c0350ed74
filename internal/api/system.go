package api

import (
	"net/http"
	"time"
)

// Version is reported by the root endpoint.
var Version = "1.0.0"

type serviceInfo struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

type healthStatus struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Root handles GET /.
func Root(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, r, http.StatusOK, serviceInfo{
		Success: true,
		Message: "Tailoré Catalog & Inventory Service",
		Version: Version,
		Status:  "running",
		Endpoints: map[string]string{
			"auth":      "/api/auth",
			"catalog":   "/api/catalog",
			"inventory": "/api/inventory",
			"health":    "/health",
			"metrics":   "/metrics",
		},
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, r, http.StatusOK, healthStatus{
		Success:   true,
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, r, http.StatusNotFound, envelope{
		Success: false,
		Message: "Route not found",
		Path:    r.URL.Path,
	})
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, r, http.StatusMethodNotAllowed, envelope{
		Success: false,
		Message: "Method not allowed",
		Path:    r.URL.Path,
	})
}
