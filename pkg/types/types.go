package types

import (
	"time"
)

// APIResponse represents a standard JSON API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse is served on /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Storage   string    `json:"storage"`
	Analytics bool      `json:"analytics"`
	Time      time.Time `json:"time"`
}

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// SeedSummary reports what a seed run uploaded
type SeedSummary struct {
	Uploaded int   `json:"uploaded"`
	Skipped  int   `json:"skipped"`
	Pruned   int   `json:"pruned"`
	Bytes    int64 `json:"bytes"`
}
