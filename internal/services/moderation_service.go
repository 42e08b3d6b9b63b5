// internal/services/moderation_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/makerden/makerden-backend/internal/events"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

// Moderation log action names.
const (
	ActionQueue         = "queue"
	ActionHide          = "hide"
	ActionRestore       = "restore"
	ActionAutoQueue     = "auto_queue"
	ActionAutoHide      = "auto_hide"
	ActionMarkSensitive = "mark_sensitive"
)

// Actor identifies who performs a transition. A nil ID with the system role
// marks automatic triggers.
type Actor struct {
	ID        *uuid.UUID
	Role      models.UserRole
	IPAddress string
	UserAgent string
}

func SystemActor() Actor {
	return Actor{Role: models.UserRoleSystem}
}

// ModerationService owns the content lifecycle (approved/pending/hidden),
// writes the audit log on every transition and, for manual transitions,
// batch-resolves the pending reports and publishes the resolution events.
type ModerationService struct {
	content storage.ContentStore
	reports storage.ReportStore
	scores  storage.ScoreStore
	logs    storage.LogStore
	bus     events.Bus
	baseURL string
}

func NewModerationService(stores *storage.Stores, bus events.Bus, baseURL string) *ModerationService {
	return &ModerationService{
		content: stores.Content,
		reports: stores.Reports,
		scores:  stores.Scores,
		logs:    stores.Logs,
		bus:     bus,
		baseURL: baseURL,
	}
}

// Queue moves content into the review queue. The hidden flag is left as it
// was; queueing marks "needs a human look", not "remove from view".
func (m *ModerationService) Queue(actor Actor, key models.ContentKey, notes string) (models.ModerationStatus, error) {
	content, err := m.getContent(key)
	if err != nil {
		return "", err
	}
	if err := m.guard(actor, content, ActionQueue, notes); err != nil {
		return "", err
	}

	upd := storage.StatusUpdate{
		Status:   models.ModerationStatusPending,
		Hidden:   content.IsHidden,
		HiddenAt: content.HiddenAt,
		HiddenBy: content.HiddenBy,
	}
	if err := m.content.SetStatus(key, upd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStateTransition, err)
	}

	m.log(actor, ActionQueue, key, notes, false, nil)
	m.resolveAll(key, models.ResolvedStatusConfirmed)
	return models.ModerationStatusPending, nil
}

// Hide removes content from view and confirms the reports against it.
func (m *ModerationService) Hide(actor Actor, key models.ContentKey, notes string) (models.ModerationStatus, error) {
	content, err := m.getContent(key)
	if err != nil {
		return "", err
	}
	if err := m.guard(actor, content, ActionHide, notes); err != nil {
		return "", err
	}

	now := time.Now()
	upd := storage.StatusUpdate{
		Status:   models.ModerationStatusHidden,
		Hidden:   true,
		HiddenAt: &now,
		HiddenBy: actor.ID,
	}
	if err := m.content.SetStatus(key, upd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStateTransition, err)
	}

	m.log(actor, ActionHide, key, notes, false, nil)
	m.resolveAll(key, models.ResolvedStatusConfirmed)
	return models.ModerationStatusHidden, nil
}

// Restore re-approves content, rejects the pending reports against it and
// resets the auto-hide episode so future reports can trigger again.
func (m *ModerationService) Restore(actor Actor, key models.ContentKey, notes string) (models.ModerationStatus, error) {
	content, err := m.getContent(key)
	if err != nil {
		return "", err
	}
	if err := m.guard(actor, content, ActionRestore, notes); err != nil {
		return "", err
	}

	upd := storage.StatusUpdate{
		Status: models.ModerationStatusApproved,
		Hidden: false,
	}
	if err := m.content.SetStatus(key, upd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStateTransition, err)
	}

	m.log(actor, ActionRestore, key, notes, false, nil)
	m.resolveAll(key, models.ResolvedStatusRejected)

	if err := m.scores.ClearAutoHidden(key); err != nil {
		logrus.WithField("content", key.String()).WithError(err).Error("Failed to reset auto-hide episode")
	}
	return models.ModerationStatusApproved, nil
}

// AutoQueue is the automatic threshold trigger: content goes to pending for
// human review. Automatic transitions never resolve reports.
func (m *ModerationService) AutoQueue(key models.ContentKey) error {
	content, err := m.getContent(key)
	if err != nil {
		return err
	}

	upd := storage.StatusUpdate{
		Status:   models.ModerationStatusPending,
		Hidden:   content.IsHidden,
		HiddenAt: content.HiddenAt,
		HiddenBy: content.HiddenBy,
	}
	if err := m.content.SetStatus(key, upd); err != nil {
		return fmt.Errorf("%w: %v", ErrStateTransition, err)
	}

	m.log(SystemActor(), ActionAutoQueue, key, "", false, nil)
	return nil
}

// AutoHide is the configurable high-severity exception: content is hidden
// directly instead of queueing for review.
func (m *ModerationService) AutoHide(key models.ContentKey) error {
	if _, err := m.getContent(key); err != nil {
		return err
	}

	now := time.Now()
	upd := storage.StatusUpdate{
		Status:   models.ModerationStatusHidden,
		Hidden:   true,
		HiddenAt: &now,
	}
	if err := m.content.SetStatus(key, upd); err != nil {
		return fmt.Errorf("%w: %v", ErrStateTransition, err)
	}

	m.log(SystemActor(), ActionAutoHide, key, "", false, nil)
	return nil
}

// MarkSensitive tags a content key's score row; used by the image-classifier
// fallback policy.
func (m *ModerationService) MarkSensitive(key models.ContentKey, reason string) {
	md := models.JSONB{"sensitive": true, "reason": reason}
	if err := m.scores.SetMetadata(key, md); err != nil {
		logrus.WithField("content", key.String()).WithError(err).Error("Failed to mark content sensitive")
	}
	m.log(SystemActor(), ActionMarkSensitive, key, reason, false, md)
}

// Status returns the current moderation status without mutating anything.
func (m *ModerationService) Status(key models.ContentKey) (models.ModerationStatus, error) {
	content, err := m.getContent(key)
	if err != nil {
		return "", err
	}
	return content.Status, nil
}

// Logs lists the audit trail, newest first.
func (m *ModerationService) Logs(offset, limit int) ([]models.ModerationLog, int64, error) {
	return m.logs.List(offset, limit)
}

func (m *ModerationService) getContent(key models.ContentKey) (*storage.ContentItem, error) {
	content, err := m.content.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to load content %s: %w", key, err)
	}
	return content, nil
}

// guard enforces the authorization rule before any state mutation: a non-admin
// moderator may not act on content authored by an administrator. The denied
// attempt is still logged, tagged as denied.
func (m *ModerationService) guard(actor Actor, content *storage.ContentItem, action, notes string) error {
	if actor.Role == models.UserRoleSystem || actor.Role == models.UserRoleAdmin {
		return nil
	}
	if content.AuthorRole == models.UserRoleAdmin {
		m.log(actor, action, content.Key, notes, true, nil)
		return ErrForbidden
	}
	return nil
}

// resolveAll settles every still-pending report for the key to the same
// outcome. The per-report pending->resolved compare-and-set makes the batch
// idempotent; each settled report is published exactly once.
func (m *ModerationService) resolveAll(key models.ContentKey, outcome models.ResolvedStatus) {
	autoEpisode := false
	if score, err := m.scores.Get(key); err == nil && score.AutoHiddenAt != nil {
		autoEpisode = true
	}

	pending, err := m.reports.PendingFor(key)
	if err != nil {
		logrus.WithField("content", key.String()).WithError(err).Error("Failed to load pending reports for resolution")
		return
	}

	now := time.Now()
	for i := range pending {
		report := &pending[i]
		ok, err := m.reports.Resolve(report.ID, outcome, now)
		if err != nil {
			logrus.WithField("report_id", report.ID).WithError(err).Error("Failed to resolve report")
			continue
		}
		if !ok {
			continue
		}

		if outcome == models.ResolvedStatusRejected {
			// Keep the aggregate invariant: the total only counts
			// reports not resolved as rejected.
			if err := m.scores.SubtractWeight(key, report.Weight, now); err != nil {
				logrus.WithField("report_id", report.ID).WithError(err).Error("Failed to subtract rejected report weight")
			}
		}

		m.bus.Publish(events.ReportResolved{
			ReportID:    report.ID,
			ReporterID:  report.ReporterID,
			ContentType: key.Type,
			ContentID:   key.ID,
			Outcome:     outcome,
			AutoEpisode: autoEpisode,
		})
	}
}

func (m *ModerationService) log(actor Actor, action string, key models.ContentKey, notes string, denied bool, md models.JSONB) {
	entry := &models.ModerationLog{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		TargetType: key.Type,
		TargetID:   key.ID,
		TargetURL:  fmt.Sprintf("%s/%ss/%s", m.baseURL, key.Type, key.ID),
		Notes:      notes,
		Denied:     denied,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Metadata:   md,
	}
	if err := m.logs.Append(entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"action": action,
			"target": key.String(),
		}).WithError(err).Error("Failed to write moderation log entry")
	}
}
