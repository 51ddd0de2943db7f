package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// ActivityResponse represents one audit log entry
type ActivityResponse struct {
	ID           uuid.UUID       `json:"activityId"`
	DealID       uuid.UUID       `json:"dealId"`
	ActivityType string          `json:"activityType"`
	Label        string          `json:"label"`
	Description  string          `json:"description"`
	OldValue     string          `json:"oldValue,omitempty"`
	NewValue     string          `json:"newValue,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
	UserID       *uuid.UUID      `json:"userId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ClampActivityLimit bounds a requested feed length
func ClampActivityLimit(limit int) int {
	if limit <= 0 {
		return DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		return MaxActivityLimit
	}
	return limit
}
