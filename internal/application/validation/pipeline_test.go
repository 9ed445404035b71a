package validation

import (
	"reflect"
	"testing"

	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
)

func testPipeline() *Pipeline {
	return NewPipeline(Config{GradeMin: 0, GradeMax: 12})
}

func TestValidateBatch_RowChecks(t *testing.T) {
	tests := []struct {
		name       string
		row        entity.ImportRow
		wantStatus string
		wantReason string
	}{
		{
			name:       "valid row",
			row:        entity.ImportRow{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
			wantStatus: entity.RowStatusValid,
		},
		{
			name:       "missing first name",
			row:        entity.ImportRow{LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
			wantStatus: entity.RowStatusError,
			wantReason: "missing student name",
		},
		{
			name:       "missing grade",
			row:        entity.ImportRow{FirstName: "Ana", LastName: "Silva", Guardian: "R. Silva"},
			wantStatus: entity.RowStatusError,
			wantReason: "missing grade",
		},
		{
			name:       "missing guardian",
			row:        entity.ImportRow{FirstName: "Ana", LastName: "Silva", Grade: "3"},
			wantStatus: entity.RowStatusError,
			wantReason: "missing guardian",
		},
		{
			name:       "non-numeric grade warns",
			row:        entity.ImportRow{FirstName: "Ana", LastName: "Silva", Grade: "K", Guardian: "R. Silva"},
			wantStatus: entity.RowStatusWarning,
			wantReason: "unrecognized grade value",
		},
		{
			name:       "grade out of range warns",
			row:        entity.ImportRow{FirstName: "Ana", LastName: "Silva", Grade: "14", Guardian: "R. Silva"},
			wantStatus: entity.RowStatusWarning,
			wantReason: "grade outside configured range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := testPipeline().ValidateBatch([]entity.ImportRow{tt.row}, nil)
			got := report.Rows[0]
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.ErrorReason != tt.wantReason {
				t.Errorf("ErrorReason = %q, want %q", got.ErrorReason, tt.wantReason)
			}
		})
	}
}

func TestValidateBatch_Counts(t *testing.T) {
	rows := []entity.ImportRow{
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
		{FirstName: "Ben", LastName: "Okafor", Grade: "5", Guardian: "C. Okafor"},
		{FirstName: "Cleo", LastName: "Marsh", Grade: "K", Guardian: "D. Marsh"},
		{FirstName: "Dana", LastName: "Reyes", Grade: "2"}, // no guardian
		{FirstName: "Eli", LastName: "Park", Grade: "1", Guardian: "S. Park"},
	}

	report := testPipeline().ValidateBatch(rows, nil)

	if report.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", report.TotalRows)
	}
	if report.ValidCount != 3 {
		t.Errorf("ValidCount = %d, want 3", report.ValidCount)
	}
	if report.WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", report.WarningCount)
	}
	if report.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", report.ErrorCount)
	}

	// Upload order survives annotation
	for i, row := range report.Rows {
		if row.RowIndex != rows[i].RowIndex {
			t.Errorf("row %d reordered", i)
		}
	}
}

func TestValidateBatch_DuplicateAgainstExisting(t *testing.T) {
	existing := []*entity.StudentRecord{
		{ID: 42, FirstName: "Ana", LastName: "Silva", Grade: "3"},
	}
	rows := []entity.ImportRow{
		// Key matching is case- and whitespace-insensitive
		{FirstName: "  ana ", LastName: "SILVA", Grade: "3", Guardian: "R. Silva"},
		{FirstName: "Ben", LastName: "Okafor", Grade: "5", Guardian: "C. Okafor"},
	}

	report := testPipeline().ValidateBatch(rows, existing)

	if !report.Rows[0].Duplicate || report.Rows[0].DuplicateOf != 42 {
		t.Errorf("row 0 = %+v, want duplicate of 42", report.Rows[0])
	}
	if report.Rows[1].Duplicate {
		t.Errorf("row 1 tagged duplicate, want clean")
	}
}

func TestValidateBatch_DuplicateWithinBatch(t *testing.T) {
	rows := []entity.ImportRow{
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
	}

	report := testPipeline().ValidateBatch(rows, nil)

	if report.Rows[0].Duplicate {
		t.Error("first occurrence tagged duplicate")
	}
	if !report.Rows[1].Duplicate {
		t.Error("second occurrence not tagged duplicate")
	}
	if report.Rows[1].DuplicateOf != 0 {
		t.Errorf("in-batch duplicate carries DuplicateOf = %d, want 0", report.Rows[1].DuplicateOf)
	}
}

func TestValidateBatch_ErrorRowsExcludedFromDuplicates(t *testing.T) {
	rows := []entity.ImportRow{
		{FirstName: "Ana", LastName: "Silva", Grade: "3"}, // error: no guardian
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
	}

	report := testPipeline().ValidateBatch(rows, nil)

	if report.Rows[0].Duplicate {
		t.Error("error row tagged duplicate")
	}
	if report.Rows[1].Duplicate {
		t.Error("valid row tagged duplicate of an error row")
	}
}

func TestValidateBatch_Deterministic(t *testing.T) {
	rows := []entity.ImportRow{
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
		{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
		{FirstName: "Cleo", LastName: "Marsh", Grade: "K", Guardian: "D. Marsh"},
	}
	existing := []*entity.StudentRecord{
		{ID: 7, FirstName: "Cleo", LastName: "Marsh", Grade: "K"},
	}

	first := testPipeline().ValidateBatch(rows, existing)
	second := testPipeline().ValidateBatch(rows, existing)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input produced different reports")
	}
}
