package service

import (
	"context"
	"fmt"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	appwf "github.com/brightpath/screening-lifecycle/internal/application/workflow"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// ConsentPolicy carries the timing parameters for consent records
type ConsentPolicy struct {
	// AutoConsentWindowDays is the waiting period after which an
	// unanswered request is treated as granted
	AutoConsentWindowDays int

	// ValidityDays is how long a granted consent remains valid
	ValidityDays int
}

// ConsentService manages consent records and their time-driven policy.
// All policy is applied lazily at read time: nothing here registers
// timers or background jobs.
type ConsentService interface {
	// RequestConsent creates a PENDING record
	RequestConsent(ctx context.Context, subjectID, consentType string) (*entity.ConsentRecord, error)

	// EvaluateConsent applies the clock rules and persists any
	// resulting transition. Idempotent: evaluating twice with no
	// elapsed time yields the same state.
	EvaluateConsent(ctx context.Context, id int64) (*entity.ConsentRecord, error)

	// ResolveConsent applies an explicit grant or deny. The record is
	// brought up to date first, so a decision arriving after
	// auto-consent has fired is rejected rather than applied silently.
	ResolveConsent(ctx context.Context, id int64, decision string) (*entity.ConsentRecord, error)

	// GetConsent returns the record after bringing it up to date
	GetConsent(ctx context.Context, id int64) (*entity.ConsentRecord, error)

	ListBySubject(ctx context.Context, subjectID string) ([]*entity.ConsentRecord, error)
}

type consentServiceImpl struct {
	repo   port.ConsentRepository
	clk    clock.Clock
	policy ConsentPolicy
	logger Logger
}

// NewConsentService creates a new ConsentService
func NewConsentService(repo port.ConsentRepository, clk clock.Clock, policy ConsentPolicy, logger Logger) ConsentService {
	if policy.AutoConsentWindowDays <= 0 {
		policy.AutoConsentWindowDays = 7
	}
	if policy.ValidityDays <= 0 {
		policy.ValidityDays = 365
	}
	return &consentServiceImpl{
		repo:   repo,
		clk:    clk,
		policy: policy,
		logger: logger,
	}
}

// RequestConsent creates a new PENDING consent record
func (s *consentServiceImpl) RequestConsent(ctx context.Context, subjectID, consentType string) (*entity.ConsentRecord, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", apperr.ErrInvalidInput)
	}
	if !entity.ValidConsentType(consentType) {
		return nil, fmt.Errorf("%w: unsupported consent type %q", apperr.ErrInvalidInput, consentType)
	}

	record := &entity.ConsentRecord{
		SubjectID:             subjectID,
		ConsentType:           consentType,
		Status:                entity.ConsentStatusPending,
		RequestedOn:           s.clk.Now(),
		AutoConsentWindowDays: s.policy.AutoConsentWindowDays,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to create consent record", "error", err, "subject_id", subjectID)
		return nil, fmt.Errorf("create consent: %w", err)
	}

	s.logger.Info("Consent requested", "id", record.ID, "subject_id", subjectID, "type", consentType)
	return record, nil
}

// EvaluateConsent brings the record up to date with the policy clock
func (s *consentServiceImpl) EvaluateConsent(ctx context.Context, id int64) (*entity.ConsentRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load consent: %w", err)
	}
	if record == nil {
		return nil, notFound("consent", id)
	}

	changed, err := s.applyPolicy(ctx, record)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.Update(ctx, record); err != nil {
			return nil, err
		}
		s.logger.Info("Consent policy applied", "id", id, "status", record.Status)
	}

	return record, nil
}

// ResolveConsent applies an explicit grant/deny decision
func (s *consentServiceImpl) ResolveConsent(ctx context.Context, id int64, decision string) (*entity.ConsentRecord, error) {
	var event domainwf.Event
	switch decision {
	case entity.ConsentDecisionGrant:
		event = appwf.EventGrantConsent
	case entity.ConsentDecisionDeny:
		event = appwf.EventDenyConsent
	default:
		return nil, fmt.Errorf("%w: unsupported decision %q", apperr.ErrInvalidInput, decision)
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load consent: %w", err)
	}
	if record == nil {
		return nil, notFound("consent", id)
	}

	// Up-to-date check first: auto-consent that has already fired wins
	// over a late explicit decision.
	changed, err := s.applyPolicy(ctx, record)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.Update(ctx, record); err != nil {
			return nil, err
		}
	}

	if record.Status != entity.ConsentStatusPending {
		return nil, fmt.Errorf("%w: consent %d is %s", apperr.ErrInvalidState, id, record.Status)
	}

	machine := appwf.NewConsentMachine(domainwf.State(record.Status))
	if err := machine.Fire(ctx, event); err != nil {
		return nil, mapMachineErr(err)
	}

	now := s.clk.Now()
	record.Status = machine.State().String()
	record.ResolvedOn = &now
	if record.Status == entity.ConsentStatusGranted {
		validUntil := now.AddDate(0, 0, s.policy.ValidityDays)
		record.ValidUntil = &validUntil
	}

	if err := s.repo.Update(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Consent resolved", "id", id, "decision", decision, "status", record.Status)
	return record, nil
}

// GetConsent returns the record after lazy policy evaluation
func (s *consentServiceImpl) GetConsent(ctx context.Context, id int64) (*entity.ConsentRecord, error) {
	return s.EvaluateConsent(ctx, id)
}

// ListBySubject returns all consent records for a subject, including
// superseded ones retained for audit
func (s *consentServiceImpl) ListBySubject(ctx context.Context, subjectID string) ([]*entity.ConsentRecord, error) {
	return s.repo.ListBySubject(ctx, subjectID)
}

// applyPolicy mutates the record in memory per the clock rules and
// reports whether anything changed. A pending request past its window
// auto-grants (never auto-denies); a granted record past its validity
// expires. The fresh grant horizon keeps both rules from firing in the
// same evaluation.
func (s *consentServiceImpl) applyPolicy(ctx context.Context, record *entity.ConsentRecord) (bool, error) {
	changed := false

	if record.Status == entity.ConsentStatusPending &&
		clock.HasExpired(s.clk, record.RequestedOn, record.AutoConsentWindowDays) {
		machine := appwf.NewConsentMachine(domainwf.State(record.Status))
		if err := machine.Fire(ctx, appwf.EventAutoGrant); err != nil {
			return false, mapMachineErr(err)
		}
		now := s.clk.Now()
		validUntil := now.AddDate(0, 0, s.policy.ValidityDays)
		record.Status = machine.State().String()
		record.ResolvedOn = &now
		record.ValidUntil = &validUntil
		changed = true
	}

	if record.Status == entity.ConsentStatusGranted &&
		record.ValidUntil != nil && clock.HasPassed(s.clk, *record.ValidUntil) {
		machine := appwf.NewConsentMachine(domainwf.State(record.Status))
		if err := machine.Fire(ctx, appwf.EventExpire); err != nil {
			return false, mapMachineErr(err)
		}
		record.Status = machine.State().String()
		changed = true
	}

	return changed, nil
}
