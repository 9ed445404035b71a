package entity

import "time"

// ConsentRecord represents a guardian consent request for a subject.
// Records are never deleted; superseded records are retained for audit.
type ConsentRecord struct {
	ID                    int64      `json:"id"`
	SubjectID             string     `json:"subject_id"`
	ConsentType           string     `json:"consent_type"`
	Status                string     `json:"status"`
	RequestedOn           time.Time  `json:"requested_on"`
	ResolvedOn            *time.Time `json:"resolved_on,omitempty"`
	AutoConsentWindowDays int        `json:"auto_consent_window_days"`
	ValidUntil            *time.Time `json:"valid_until,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
