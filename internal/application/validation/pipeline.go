// Package validation implements the stateless row- and batch-level
// checks for bulk student imports. The pipeline annotates rows and
// produces a report; it never mutates stored state. Re-validating
// identical input yields an identical report, which is what makes
// re-uploading the same file idempotent.
package validation

import (
	"strconv"

	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
)

// Config carries the tunable bounds for row-level checks
type Config struct {
	GradeMin int
	GradeMax int
}

// Report is the deterministic outcome of validating one batch. Rows
// keep their upload order and carry their annotations.
type Report struct {
	Rows         []entity.ImportRow `json:"rows"`
	TotalRows    int                `json:"total_rows"`
	ValidCount   int                `json:"valid_count"`
	WarningCount int                `json:"warning_count"`
	ErrorCount   int                `json:"error_count"`
}

// Pipeline runs row checks and batch-level duplicate detection
type Pipeline struct {
	cfg Config
}

// NewPipeline creates a validation pipeline with the given bounds
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// ValidateBatch checks every row independently, then tags duplicates by
// normalized name+grade key against existing records and earlier rows
// in the same batch. Row errors never short-circuit the batch; tagged
// duplicates are left for commit time to resolve under the batch's
// conflict policy.
func (p *Pipeline) ValidateBatch(rows []entity.ImportRow, existing []*entity.StudentRecord) Report {
	report := Report{
		Rows:      make([]entity.ImportRow, len(rows)),
		TotalRows: len(rows),
	}

	existingByKey := make(map[string]*entity.StudentRecord, len(existing))
	for _, s := range existing {
		existingByKey[s.DuplicateKey()] = s
	}

	seenInBatch := make(map[string]bool)

	for i, row := range rows {
		row.Status, row.ErrorReason = p.checkRow(row)
		row.Duplicate = false
		row.DuplicateOf = 0

		key := entity.NormalizedStudentKey(row.FirstName, row.LastName, row.Grade)
		if row.Status != entity.RowStatusError {
			if match, ok := existingByKey[key]; ok {
				row.Duplicate = true
				row.DuplicateOf = match.ID
			} else if seenInBatch[key] {
				row.Duplicate = true
			}
			seenInBatch[key] = true
		}

		switch row.Status {
		case entity.RowStatusValid:
			report.ValidCount++
		case entity.RowStatusWarning:
			report.WarningCount++
		case entity.RowStatusError:
			report.ErrorCount++
		}

		report.Rows[i] = row
	}

	return report
}

// checkRow runs the independent row-level rules. Missing required
// fields are errors; a recognized but out-of-range grade is a warning.
func (p *Pipeline) checkRow(row entity.ImportRow) (status, reason string) {
	if row.FirstName == "" || row.LastName == "" {
		return entity.RowStatusError, "missing student name"
	}
	if row.Grade == "" {
		return entity.RowStatusError, "missing grade"
	}
	if row.Guardian == "" {
		return entity.RowStatusError, "missing guardian"
	}

	grade, err := strconv.Atoi(row.Grade)
	if err != nil {
		return entity.RowStatusWarning, "unrecognized grade value"
	}
	if grade < p.cfg.GradeMin || grade > p.cfg.GradeMax {
		return entity.RowStatusWarning, "grade outside configured range"
	}

	return entity.RowStatusValid, ""
}
