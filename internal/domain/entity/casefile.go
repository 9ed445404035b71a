package entity

import (
	"sort"
	"time"
)

// CaseFile represents a discharge/closure case for a subject. Closing is
// gated on a closure-type-specific checklist and a signature; CLOSED is
// terminal. Reactivation means opening a new CaseFile that references
// the old one.
type CaseFile struct {
	ID             int64           `json:"id"`
	SubjectID      string          `json:"subject_id"`
	Status         string          `json:"status"`
	ClosureType    string          `json:"closure_type,omitempty"`
	Checklist      map[string]bool `json:"checklist,omitempty"`
	Signature      string          `json:"signature,omitempty"`
	PreviousCaseID int64           `json:"previous_case_id,omitempty"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MissingChecklistItems returns the names of required items not yet
// confirmed, in sorted order for stable error messages.
func (c *CaseFile) MissingChecklistItems() []string {
	var missing []string
	for item, done := range c.Checklist {
		if !done {
			missing = append(missing, item)
		}
	}
	sort.Strings(missing)
	return missing
}
