package entity

import "time"

// Screening represents one developmental screening session for a child.
// Responses accumulate while the screening is in progress and are frozen
// once it completes.
type Screening struct {
	ID              int64             `json:"id"`
	ChildID         string            `json:"child_id"`
	ScreeningTypeID string            `json:"screening_type_id"`
	Status          string            `json:"status"`
	Responses       map[string]string `json:"responses"`
	ProgressPercent int               `json:"progress_percent"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsOpen reports whether the screening still accepts progress saves.
func (s *Screening) IsOpen() bool {
	return s.Status == ScreeningStatusInProgress
}
