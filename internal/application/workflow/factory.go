// Package workflow encodes the transition tables for the four lifecycle
// kinds. Factories position a machine at an entity's current state; the
// services decide when to fire which event.
package workflow

import (
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// Screening events
const (
	EventStartScreening    domainwf.Event = "START"
	EventSaveProgress      domainwf.Event = "SAVE_PROGRESS"
	EventCompleteScreening domainwf.Event = "COMPLETE"
)

// Consent events. Auto-grant and expire originate from policy clock
// evaluation; grant and deny are explicit caller decisions.
const (
	EventGrantConsent domainwf.Event = "GRANT"
	EventDenyConsent  domainwf.Event = "DENY"
	EventAutoGrant    domainwf.Event = "AUTO_GRANT"
	EventExpire       domainwf.Event = "EXPIRE"
)

// ImportBatch events
const (
	EventValidationPassed domainwf.Event = "VALIDATION_PASSED"
	EventValidationFailed domainwf.Event = "VALIDATION_FAILED"
	EventBeginCommit      domainwf.Event = "BEGIN_COMMIT"
	EventCommitSucceeded  domainwf.Event = "COMMIT_SUCCEEDED"
	EventRowFailure       domainwf.Event = "ROW_FAILURE"
)

// CaseFile events
const (
	EventChooseClosure domainwf.Event = "CHOOSE_CLOSURE"
	EventFinalizeCase  domainwf.Event = "FINALIZE"
)

// NewScreeningMachine builds the screening lifecycle positioned at
// currentState. COMPLETED is terminal.
func NewScreeningMachine(currentState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder("screening",
		[]domainwf.State{
			entity.ScreeningStatusNotStarted,
			entity.ScreeningStatusInProgress,
			entity.ScreeningStatusCompleted,
		},
		[]domainwf.Event{EventStartScreening, EventSaveProgress, EventCompleteScreening},
	)

	builder.Configure(entity.ScreeningStatusNotStarted).
		Permit(EventStartScreening, entity.ScreeningStatusInProgress)

	builder.Configure(entity.ScreeningStatusInProgress).
		Permit(EventSaveProgress, entity.ScreeningStatusInProgress).
		Permit(EventCompleteScreening, entity.ScreeningStatusCompleted)

	return builder.Build(currentState)
}

// NewConsentMachine builds the consent lifecycle positioned at
// currentState. DENIED and EXPIRED are terminal; GRANTED only moves on
// to EXPIRED. There is no path from GRANTED back to DENIED: an explicit
// deny that arrives after auto-consent fired is rejected, never applied
// silently.
func NewConsentMachine(currentState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder("consent",
		[]domainwf.State{
			entity.ConsentStatusPending,
			entity.ConsentStatusGranted,
			entity.ConsentStatusDenied,
			entity.ConsentStatusExpired,
		},
		[]domainwf.Event{EventGrantConsent, EventDenyConsent, EventAutoGrant, EventExpire},
	)

	builder.Configure(entity.ConsentStatusPending).
		Permit(EventGrantConsent, entity.ConsentStatusGranted).
		Permit(EventDenyConsent, entity.ConsentStatusDenied).
		Permit(EventAutoGrant, entity.ConsentStatusGranted)

	builder.Configure(entity.ConsentStatusGranted).
		Permit(EventExpire, entity.ConsentStatusExpired)

	return builder.Build(currentState)
}

// NewBatchMachine builds the import batch lifecycle positioned at
// currentState. COMMITTED and FAILED are terminal.
func NewBatchMachine(currentState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder("import_batch",
		[]domainwf.State{
			entity.BatchStatusValidating,
			entity.BatchStatusReadyToCommit,
			entity.BatchStatusCommitting,
			entity.BatchStatusCommitted,
			entity.BatchStatusFailed,
		},
		[]domainwf.Event{
			EventValidationPassed, EventValidationFailed,
			EventBeginCommit, EventCommitSucceeded, EventRowFailure,
		},
	)

	builder.Configure(entity.BatchStatusValidating).
		Permit(EventValidationPassed, entity.BatchStatusReadyToCommit).
		Permit(EventValidationFailed, entity.BatchStatusFailed)

	builder.Configure(entity.BatchStatusReadyToCommit).
		Permit(EventBeginCommit, entity.BatchStatusCommitting)

	builder.Configure(entity.BatchStatusCommitting).
		Permit(EventCommitSucceeded, entity.BatchStatusCommitted).
		Permit(EventRowFailure, entity.BatchStatusFailed)

	return builder.Build(currentState)
}

// NewCaseMachine builds the case closure lifecycle positioned at
// currentState. CLOSED is terminal.
func NewCaseMachine(currentState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder("case_file",
		[]domainwf.State{
			entity.CaseStatusActive,
			entity.CaseStatusPendingClosure,
			entity.CaseStatusClosed,
		},
		[]domainwf.Event{EventChooseClosure, EventFinalizeCase},
	)

	builder.Configure(entity.CaseStatusActive).
		Permit(EventChooseClosure, entity.CaseStatusPendingClosure)

	builder.Configure(entity.CaseStatusPendingClosure).
		Permit(EventFinalizeCase, entity.CaseStatusClosed)

	return builder.Build(currentState)
}
