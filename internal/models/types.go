package models

import (
	"time"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

// PassResult summarizes one listing-to-drain cycle.
type PassResult struct {
	ID           uuid.UUID     `json:"id"`
	Location     string        `json:"location"`
	Objects      int           `json:"objects"`
	Completed    int           `json:"completed"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	BytesWritten int64         `json:"bytes_written"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
