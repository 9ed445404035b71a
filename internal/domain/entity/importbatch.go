package entity

import "time"

// ImportRow is a single parsed row of a bulk student upload. Rows keep
// their upload order via RowIndex; validation annotates but never
// reorders or drops them.
type ImportRow struct {
	RowIndex    int    `json:"row_index"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Grade       string `json:"grade"`
	Guardian    string `json:"guardian"`
	Status      string `json:"status"`
	ErrorReason string `json:"error_reason,omitempty"`

	// Duplicate tagging from batch-level validation. Resolution is
	// deferred to commit time and driven by the batch conflict policy.
	Duplicate   bool  `json:"duplicate"`
	DuplicateOf int64 `json:"duplicate_of,omitempty"`
}

// ImportBatch represents one bulk student upload and its validation
// outcome. Immutable after COMMITTED or FAILED.
type ImportBatch struct {
	ID               int64       `json:"id"`
	SchoolID         string      `json:"school_id"`
	UploadedFilename string      `json:"uploaded_filename"`
	Status           string      `json:"status"`
	ConflictPolicy   string      `json:"conflict_policy"`
	Rows             []ImportRow `json:"rows"`
	TotalRows        int         `json:"total_rows"`
	ValidCount       int         `json:"valid_count"`
	WarningCount     int         `json:"warning_count"`
	ErrorCount       int         `json:"error_count"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
