package server

import (
	"time"

	"github.com/NextMind-AI/repstats/execution"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type StatusResponse struct {
	Representatives []execution.Status `json:"representatives"`
	Online          int                `json:"online"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

type RecomputeResponse struct {
	Started bool `json:"started"`
}
