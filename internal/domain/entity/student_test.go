package entity

import "testing"

func TestNormalizedStudentKey(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
		grade string
		want  string
	}{
		{"plain", "Ana", "Silva", "3", "silva|ana|3"},
		{"case insensitive", "ANA", "silva", "3", "silva|ana|3"},
		{"whitespace collapsed", "  Ana  Maria ", " Silva ", "3", "silva|ana maria|3"},
		{"grade included", "Ana", "Silva", "4", "silva|ana|4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizedStudentKey(tt.first, tt.last, tt.grade); got != tt.want {
				t.Errorf("NormalizedStudentKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicateKey_MatchesNormalizedForm(t *testing.T) {
	record := &StudentRecord{FirstName: "  ana ", LastName: "SILVA", Grade: "3"}
	if record.DuplicateKey() != NormalizedStudentKey("Ana", "Silva", "3") {
		t.Error("DuplicateKey() does not normalize like NormalizedStudentKey()")
	}
}

func TestMissingChecklistItems_Sorted(t *testing.T) {
	c := &CaseFile{Checklist: map[string]bool{
		"zeta": false,
		"alfa": false,
		"done": true,
	}}

	got := c.MissingChecklistItems()
	want := []string{"alfa", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("MissingChecklistItems() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MissingChecklistItems() = %v, want %v", got, want)
		}
	}
}
