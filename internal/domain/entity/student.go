package entity

import (
	"fmt"
	"strings"
	"time"
)

// StudentRecord is the durable record an import row commits into.
type StudentRecord struct {
	ID        int64     `json:"id"`
	SchoolID  string    `json:"school_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Grade     string    `json:"grade"`
	Guardian  string    `json:"guardian"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DuplicateKey returns the normalized identity key used for duplicate
// detection during import validation.
func (s *StudentRecord) DuplicateKey() string {
	return NormalizedStudentKey(s.FirstName, s.LastName, s.Grade)
}

// NormalizedStudentKey builds the case- and whitespace-insensitive
// name+grade key two records must share to be considered duplicates.
func NormalizedStudentKey(firstName, lastName, grade string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return fmt.Sprintf("%s|%s|%s", norm(lastName), norm(firstName), norm(grade))
}
