// internal/services/report_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

// ReportService validates, deduplicates and weights incoming reports, then
// forwards the weight to the score aggregator.
type ReportService struct {
	reports        storage.ReportStore
	content        storage.ContentStore
	trust          *TrustService
	scores         *ScoreService
	cfg            config.ModerationConfig
	systemReporter uuid.UUID
}

type SubmitInput struct {
	ReporterID  uuid.UUID
	ContentType models.ContentType
	ContentID   uuid.UUID
	ContentURL  string
	Reason      models.ReportReason
	Details     string
	Signals     []string
	Metadata    models.JSONB
}

type SubmitResult struct {
	Report    *models.Report
	Aggregate *AggregateResult
	Status    models.ModerationStatus
}

func NewReportService(stores *storage.Stores, trust *TrustService, scores *ScoreService, cfg config.ModerationConfig) *ReportService {
	systemReporter, err := uuid.Parse(cfg.SystemReporterID)
	if err != nil {
		logrus.WithError(err).Warn("Invalid system reporter id; system reports disabled")
	}
	return &ReportService{
		reports:        stores.Reports,
		content:        stores.Content,
		trust:          trust,
		scores:         scores,
		cfg:            cfg,
		systemReporter: systemReporter,
	}
}

// Submit records one user's report. Preconditions are checked in order and
// short-circuit: self-report, duplicate, then reason validity.
func (s *ReportService) Submit(in SubmitInput) (*SubmitResult, error) {
	key := models.ContentKey{Type: in.ContentType, ID: in.ContentID}

	content, err := s.content.Get(key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load reported content: %w", err)
	}
	// Content the engine does not own a row for yet is still reportable by
	// its composite key; the owner check is skipped in that case.
	if content != nil && content.AuthorID == in.ReporterID {
		return nil, ErrSelfReport
	}

	exists, err := s.reports.ExistsFor(in.ReporterID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate report: %w", err)
	}
	if exists {
		return nil, ErrDuplicateReport
	}

	if !in.Reason.Valid() {
		return nil, ErrInvalidReason
	}

	return s.create(in, key, content, s.trust.WeightFor(in.ReporterID))
}

// SubmitSystem turns a classifier flag into a single high-weight
// system-generated report against the content key.
func (s *ReportService) SubmitSystem(key models.ContentKey, contentURL string, reason models.ReportReason, details string, signals []string) (*SubmitResult, error) {
	if s.systemReporter == uuid.Nil {
		return nil, fmt.Errorf("system reporter is not configured")
	}

	exists, err := s.reports.ExistsFor(s.systemReporter, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate system report: %w", err)
	}
	if exists {
		return nil, ErrDuplicateReport
	}
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	content, err := s.content.Get(key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load flagged content: %w", err)
	}

	in := SubmitInput{
		ReporterID:  s.systemReporter,
		ContentType: key.Type,
		ContentID:   key.ID,
		ContentURL:  contentURL,
		Reason:      reason,
		Details:     details,
		Signals:     signals,
		Metadata:    models.JSONB{"source": "classifier"},
	}
	weight := &ReportWeight{
		Role:       models.UserRoleSystem,
		RoleWeight: s.cfg.SystemReportWeight,
		Trust:      1.0,
		Weight:     clamp(s.cfg.SystemReportWeight, s.cfg.WeightMin, s.cfg.WeightMax),
	}
	return s.create(in, key, content, weight)
}

func (s *ReportService) create(in SubmitInput, key models.ContentKey, content *storage.ContentItem, w *ReportWeight) (*SubmitResult, error) {
	weight := w.Weight
	if in.Reason == models.ReportReasonAbuse {
		weight = clamp(weight*s.cfg.SeverityMultiplier, s.cfg.WeightMin, s.cfg.WeightMax)
	}

	report := &models.Report{
		ReporterID:     in.ReporterID,
		ContentType:    key.Type,
		ContentID:      key.ID,
		ContentURL:     in.ContentURL,
		Reason:         in.Reason,
		Details:        in.Details,
		ReporterRole:   w.Role,
		RoleWeight:     w.RoleWeight,
		ReporterTrust:  w.Trust,
		ReporterWeight: w.Weight,
		Weight:         weight,
		ResolvedStatus: models.ResolvedStatusPending,
		Signals:        pq.StringArray(in.Signals),
		Metadata:       in.Metadata,
	}
	if err := s.reports.Create(report); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost the race against a concurrent submission by the
			// same reporter.
			return nil, ErrDuplicateReport
		}
		return nil, err
	}

	agg, err := s.scores.RecordReport(key, weight, in.Reason)
	if err != nil {
		// The report row is kept; losing report history is worse than a
		// stale aggregate, which the next report or sweep repairs.
		logrus.WithField("content", key.String()).WithError(err).Error("Failed to aggregate report weight")
		return nil, err
	}

	s.trust.RecordSubmission(in.ReporterID)

	if agg.AutoTriggered {
		if err := s.reports.SetAutoAction(report.ID, agg.AutoAction); err != nil {
			logrus.WithField("report_id", report.ID).WithError(err).Error("Failed to tag report with auto action")
		} else {
			action := agg.AutoAction
			report.AutoAction = &action
		}
	}

	return &SubmitResult{
		Report:    report,
		Aggregate: agg,
		Status:    s.statusAfter(content, agg),
	}, nil
}

func (s *ReportService) statusAfter(content *storage.ContentItem, agg *AggregateResult) models.ModerationStatus {
	if agg.AutoTriggered {
		if agg.AutoAction == models.AutoActionHide {
			return models.ModerationStatusHidden
		}
		return models.ModerationStatusPending
	}
	if content != nil {
		return content.Status
	}
	return models.ModerationStatusApproved
}
