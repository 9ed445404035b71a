package entity

// Status constants for Screening
const (
	ScreeningStatusNotStarted = "NOT_STARTED"
	ScreeningStatusInProgress = "IN_PROGRESS"
	ScreeningStatusCompleted  = "COMPLETED"
)

// Status constants for ConsentRecord
const (
	ConsentStatusPending = "PENDING"
	ConsentStatusGranted = "GRANTED"
	ConsentStatusDenied  = "DENIED"
	ConsentStatusExpired = "EXPIRED"
)

// Consent type constants
const (
	ConsentTypeScreening   = "SCREENING"
	ConsentTypeReferral    = "REFERRAL"
	ConsentTypeDataSharing = "DATA_SHARING"
)

// Status constants for ImportBatch
const (
	BatchStatusValidating    = "VALIDATING"
	BatchStatusReadyToCommit = "READY_TO_COMMIT"
	BatchStatusCommitting    = "COMMITTING"
	BatchStatusCommitted     = "COMMITTED"
	BatchStatusFailed        = "FAILED"
)

// Validation status constants for ImportRow
const (
	RowStatusValid   = "VALID"
	RowStatusWarning = "WARNING"
	RowStatusError   = "ERROR"
	RowStatusSkipped = "SKIPPED"
)

// Conflict policy constants for ImportBatch
const (
	ConflictPolicySkip   = "SKIP"
	ConflictPolicyUpdate = "UPDATE"
)

// Status constants for CaseFile
const (
	CaseStatusActive         = "ACTIVE"
	CaseStatusPendingClosure = "PENDING_CLOSURE"
	CaseStatusClosed         = "CLOSED"
)

// Closure type constants for CaseFile
const (
	ClosureTypeSuccess     = "SUCCESS"
	ClosureTypeTransfer    = "TRANSFER"
	ClosureTypeDiscontinue = "DISCONTINUE"
)

// Resolution decisions accepted by consent resolution
const (
	ConsentDecisionGrant = "GRANT"
	ConsentDecisionDeny  = "DENY"
)

// ValidConsentType reports whether t is one of the supported consent types.
func ValidConsentType(t string) bool {
	switch t {
	case ConsentTypeScreening, ConsentTypeReferral, ConsentTypeDataSharing:
		return true
	}
	return false
}

// ValidConflictPolicy reports whether p is a supported conflict policy.
func ValidConflictPolicy(p string) bool {
	return p == ConflictPolicySkip || p == ConflictPolicyUpdate
}

// ValidClosureType reports whether t is a supported closure type.
func ValidClosureType(t string) bool {
	switch t {
	case ClosureTypeSuccess, ClosureTypeTransfer, ClosureTypeDiscontinue:
		return true
	}
	return false
}
