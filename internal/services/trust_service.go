// internal/services/trust_service.go
package services

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/events"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

// TrustService is the trust ledger: it derives each user's report weight from
// their role and resolution history, and consumes resolution events to keep
// the ledger current. Submission never changes trust; only resolution does.
type TrustService struct {
	profiles storage.ProfileStore
	users    storage.UserStore
	cfg      config.ModerationConfig
}

// ReportWeight is the snapshot taken when a report is submitted.
type ReportWeight struct {
	Role       models.UserRole
	RoleWeight float64
	Trust      float64
	Weight     float64
}

func NewTrustService(profiles storage.ProfileStore, users storage.UserStore, cfg config.ModerationConfig) *TrustService {
	return &TrustService{
		profiles: profiles,
		users:    users,
		cfg:      cfg,
	}
}

// RoleWeight maps the closed role enum to its multiplier. Unknown roles fall
// back to the base user weight rather than guessing from the string.
func (s *TrustService) RoleWeight(role models.UserRole) float64 {
	switch role {
	case models.UserRoleAdmin:
		return s.cfg.RoleWeightAdmin
	case models.UserRoleModerator:
		return s.cfg.RoleWeightModerator
	case models.UserRoleMaker:
		return s.cfg.RoleWeightMaker
	case models.UserRoleSystem:
		return s.cfg.SystemReportWeight
	default:
		return s.cfg.RoleWeightUser
	}
}

// WeightFor returns the multiplier to apply to a report the user submits right
// now. The ledger row is created lazily with baseline values; a lookup failure
// degrades to the neutral baseline instead of failing the submission.
func (s *TrustService) WeightFor(userID uuid.UUID) *ReportWeight {
	role := models.UserRoleUser
	if r, err := s.users.GetRole(userID); err == nil {
		role = r
	} else {
		logrus.WithField("user_id", userID).WithError(err).Warn("Falling back to base role for report weight")
	}

	trust := 1.0
	if profile, err := s.profiles.GetOrCreate(userID); err == nil {
		trust = s.TrustFromCounters(profile)
	} else {
		logrus.WithField("user_id", userID).WithError(err).Warn("Falling back to baseline trust")
	}

	roleWeight := s.RoleWeight(role)
	return &ReportWeight{
		Role:       role,
		RoleWeight: roleWeight,
		Trust:      trust,
		Weight:     clamp(roleWeight*trust, s.cfg.WeightMin, s.cfg.WeightMax),
	}
}

// TrustFromCounters derives the trust score deterministically from the
// resolution counters. Confirmed reports nudge trust up, rejected ones down,
// bounded so a run of bad reports can never zero a user out permanently.
func (s *TrustService) TrustFromCounters(p *models.UserReportProfile) float64 {
	trust := 1.0 +
		s.cfg.TrustConfirmStep*float64(p.ReportsConfirmed) -
		s.cfg.TrustRejectStep*float64(p.ReportsRejected)
	return clamp(trust, s.cfg.TrustFloor, s.cfg.TrustCap)
}

// RecordSubmission bumps the submission counter. This tracks activity, not
// accuracy, and is independent of the eventual confirm/reject outcome.
func (s *TrustService) RecordSubmission(userID uuid.UUID) {
	if _, err := s.profiles.GetOrCreate(userID); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to ensure report profile")
		return
	}
	if err := s.profiles.IncrementSubmitted(userID); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to count report submission")
	}
}

// ApplyResolution consumes one ReportResolved event. The counter increment is
// applied exactly once per report by the publisher's pending->resolved
// compare-and-set, so replaying the derivation is harmless.
func (s *TrustService) ApplyResolution(ev events.ReportResolved) {
	profile, err := s.profiles.IncrementResolution(ev.ReporterID, ev.Outcome, ev.AutoEpisode)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"reporter_id": ev.ReporterID,
			"report_id":   ev.ReportID,
			"outcome":     ev.Outcome,
		}).WithError(err).Error("Failed to update trust ledger counters")
		return
	}

	now := time.Now()
	activity := s.decayedActivity(profile, now)
	if ev.Outcome == models.ResolvedStatusConfirmed {
		activity++
	}

	trust := s.TrustFromCounters(profile)
	role := models.UserRoleUser
	if r, err := s.users.GetRole(ev.ReporterID); err == nil {
		role = r
	}
	weight := clamp(s.RoleWeight(role)*trust, s.cfg.WeightMin, s.cfg.WeightMax)

	if err := s.profiles.SetDerived(ev.ReporterID, trust, weight, activity, now); err != nil {
		logrus.WithField("reporter_id", ev.ReporterID).WithError(err).Error("Failed to store derived trust")
	}
}

// Profile exposes the ledger row for the moderator-facing stats endpoint.
func (s *TrustService) Profile(userID uuid.UUID) (*models.UserReportProfile, error) {
	return s.profiles.Get(userID)
}

func (s *TrustService) decayedActivity(p *models.UserReportProfile, now time.Time) float64 {
	last := p.CreatedAt
	if p.LastComputedAt != nil {
		last = *p.LastComputedAt
	}
	days := now.Sub(last).Hours() / 24
	if days <= 0 {
		return p.ActivityPoints
	}
	return p.ActivityPoints * math.Pow(1-s.cfg.ActivityDecayPerDay, days)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
