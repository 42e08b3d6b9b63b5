// internal/storage/gorm.go
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/makerden/makerden-backend/internal/models"
)

// Stores bundles the gorm-backed implementations of every store interface.
type Stores struct {
	Content  ContentStore
	Reports  ReportStore
	Scores   ScoreStore
	Profiles ProfileStore
	Logs     LogStore
	Users    UserStore
}

func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Content:  &gormContentStore{db: db},
		Reports:  &gormReportStore{db: db},
		Scores:   &gormScoreStore{db: db},
		Profiles: &gormProfileStore{db: db},
		Logs:     &gormLogStore{db: db},
		Users:    &gormUserStore{db: db},
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key")
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}

// Content

type gormContentStore struct {
	db *gorm.DB
}

func (s *gormContentStore) Get(key models.ContentKey) (*ContentItem, error) {
	item := &ContentItem{Key: key}

	var authorID uuid.UUID
	var mod models.ModerationFields

	switch key.Type {
	case models.ContentTypePost:
		var post models.Post
		if err := s.db.First(&post, "id = ?", key.ID).Error; err != nil {
			return nil, translateNotFound(err)
		}
		authorID, mod = post.AuthorID, post.ModerationFields
	case models.ContentTypeComment:
		var comment models.Comment
		if err := s.db.First(&comment, "id = ?", key.ID).Error; err != nil {
			return nil, translateNotFound(err)
		}
		authorID, mod = comment.AuthorID, comment.ModerationFields
	case models.ContentTypeReview:
		var review models.Review
		if err := s.db.First(&review, "id = ?", key.ID).Error; err != nil {
			return nil, translateNotFound(err)
		}
		authorID, mod = review.AuthorID, review.ModerationFields
	default:
		return nil, fmt.Errorf("unknown content type %q", key.Type)
	}

	item.AuthorID = authorID
	item.Status = mod.ModerationStatus
	item.IsHidden = mod.IsHidden
	item.HiddenAt = mod.HiddenAt
	item.HiddenBy = mod.HiddenBy

	var author models.User
	if err := s.db.Select("role").First(&author, "id = ?", authorID).Error; err == nil {
		item.AuthorRole = author.Role
	}

	return item, nil
}

func (s *gormContentStore) SetStatus(key models.ContentKey, upd StatusUpdate) error {
	values := map[string]interface{}{
		"moderation_status": upd.Status,
		"is_hidden":         upd.Hidden,
		"hidden_at":         upd.HiddenAt,
		"hidden_by":         upd.HiddenBy,
	}

	var tx *gorm.DB
	switch key.Type {
	case models.ContentTypePost:
		tx = s.db.Model(&models.Post{}).Where("id = ?", key.ID).Updates(values)
	case models.ContentTypeComment:
		tx = s.db.Model(&models.Comment{}).Where("id = ?", key.ID).Updates(values)
	case models.ContentTypeReview:
		tx = s.db.Model(&models.Review{}).Where("id = ?", key.ID).Updates(values)
	default:
		return fmt.Errorf("unknown content type %q", key.Type)
	}

	if tx.Error != nil {
		return fmt.Errorf("failed to update %s status: %w", key.Type, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reports

type gormReportStore struct {
	db *gorm.DB
}

func (s *gormReportStore) Create(r *models.Report) error {
	if err := s.db.Create(r).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (s *gormReportStore) ExistsFor(reporterID uuid.UUID, key models.ContentKey) (bool, error) {
	var count int64
	err := s.db.Model(&models.Report{}).
		Where("reporter_id = ? AND content_type = ? AND content_id = ?", reporterID, key.Type, key.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for existing report: %w", err)
	}
	return count > 0, nil
}

func (s *gormReportStore) PendingFor(key models.ContentKey) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.
		Where("content_type = ? AND content_id = ? AND resolved_status = ?",
			key.Type, key.ID, models.ResolvedStatusPending).
		Order("created_at").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending reports: %w", err)
	}
	return reports, nil
}

func (s *gormReportStore) SetAutoAction(id uuid.UUID, action string) error {
	return s.db.Model(&models.Report{}).Where("id = ?", id).
		Update("auto_action", action).Error
}

func (s *gormReportStore) Resolve(id uuid.UUID, outcome models.ResolvedStatus, at time.Time) (bool, error) {
	tx := s.db.Model(&models.Report{}).
		Where("id = ? AND resolved_status = ?", id, models.ResolvedStatusPending).
		Updates(map[string]interface{}{
			"resolved_status": outcome,
			"resolved_at":     at,
		})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to resolve report: %w", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// Scores

type gormScoreStore struct {
	db *gorm.DB
}

func (s *gormScoreStore) Get(key models.ContentKey) (*models.ContentReportScore, error) {
	var score models.ContentReportScore
	err := s.db.Where("content_type = ? AND content_id = ?", key.Type, key.ID).
		First(&score).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &score, nil
}

// AddReport is the engine's one hot shared-mutation point. A single upsert
// statement keeps the increment linearizable per content key without holding
// any application-level lock.
func (s *gormScoreStore) AddReport(key models.ContentKey, weight, siteScale float64, at time.Time) (*models.ContentReportScore, error) {
	var score models.ContentReportScore
	err := s.db.Raw(`
		INSERT INTO content_report_scores
			(id, created_at, updated_at, content_type, content_id,
			 reports_count, reporters_count, weight_total, site_scale, last_report_at)
		VALUES (gen_random_uuid(), now(), now(), ?, ?, 1, 1, ?, ?, ?)
		ON CONFLICT (content_type, content_id) DO UPDATE SET
			reports_count   = content_report_scores.reports_count + 1,
			reporters_count = content_report_scores.reporters_count + 1,
			weight_total    = content_report_scores.weight_total + EXCLUDED.weight_total,
			site_scale      = EXCLUDED.site_scale,
			last_report_at  = EXCLUDED.last_report_at,
			updated_at      = now()
		RETURNING *`,
		key.Type, key.ID, weight, siteScale, at,
	).Scan(&score).Error
	if err != nil {
		if isTransient(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to record report weight: %w", err)
	}
	return &score, nil
}

func (s *gormScoreStore) MarkAutoHidden(key models.ContentKey, at time.Time) (bool, error) {
	tx := s.db.Model(&models.ContentReportScore{}).
		Where("content_type = ? AND content_id = ? AND auto_hidden_at IS NULL", key.Type, key.ID).
		Update("auto_hidden_at", at)
	if tx.Error != nil {
		return false, fmt.Errorf("failed to mark auto-hidden: %w", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (s *gormScoreStore) ClearAutoHidden(key models.ContentKey) error {
	return s.db.Model(&models.ContentReportScore{}).
		Where("content_type = ? AND content_id = ?", key.Type, key.ID).
		Update("auto_hidden_at", nil).Error
}

func (s *gormScoreStore) SubtractWeight(key models.ContentKey, weight float64, at time.Time) error {
	return s.db.Model(&models.ContentReportScore{}).
		Where("content_type = ? AND content_id = ?", key.Type, key.ID).
		Updates(map[string]interface{}{
			"weight_total":       gorm.Expr("GREATEST(weight_total - ?, 0)", weight),
			"last_recomputed_at": at,
		}).Error
}

func (s *gormScoreStore) SetMetadata(key models.ContentKey, md models.JSONB) error {
	return s.db.Model(&models.ContentReportScore{}).
		Where("content_type = ? AND content_id = ?", key.Type, key.ID).
		Update("metadata", md).Error
}

func (s *gormScoreStore) List(offset, limit int) ([]models.ContentReportScore, int64, error) {
	var total int64
	if err := s.db.Model(&models.ContentReportScore{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count report scores: %w", err)
	}

	var scores []models.ContentReportScore
	err := s.db.Order("weight_total DESC").Offset(offset).Limit(limit).Find(&scores).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch report scores: %w", err)
	}
	return scores, total, nil
}

// Profiles

type gormProfileStore struct {
	db *gorm.DB
}

func (s *gormProfileStore) Get(userID uuid.UUID) (*models.UserReportProfile, error) {
	var profile models.UserReportProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &profile, nil
}

func (s *gormProfileStore) GetOrCreate(userID uuid.UUID) (*models.UserReportProfile, error) {
	profile, err := s.Get(userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fresh := &models.UserReportProfile{
		UserID:     userID,
		TrustScore: 1.0,
		Weight:     1.0,
	}
	if err := s.db.Create(fresh).Error; err != nil {
		if isDuplicate(err) {
			// Lost the creation race; the winner's row is fine.
			return s.Get(userID)
		}
		return nil, fmt.Errorf("failed to create report profile: %w", err)
	}
	return fresh, nil
}

func (s *gormProfileStore) IncrementSubmitted(userID uuid.UUID) error {
	return s.db.Model(&models.UserReportProfile{}).
		Where("user_id = ?", userID).
		Update("reports_submitted", gorm.Expr("reports_submitted + 1")).Error
}

func (s *gormProfileStore) IncrementResolution(userID uuid.UUID, outcome models.ResolvedStatus, autoEpisode bool) (*models.UserReportProfile, error) {
	values := map[string]interface{}{}
	switch outcome {
	case models.ResolvedStatusConfirmed:
		values["reports_confirmed"] = gorm.Expr("reports_confirmed + 1")
		if autoEpisode {
			values["reports_auto_hidden"] = gorm.Expr("reports_auto_hidden + 1")
		}
	case models.ResolvedStatusRejected:
		values["reports_rejected"] = gorm.Expr("reports_rejected + 1")
	default:
		return nil, fmt.Errorf("invalid resolution outcome %q", outcome)
	}

	tx := s.db.Model(&models.UserReportProfile{}).
		Where("user_id = ?", userID).
		Updates(values)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to update resolution counters: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		if _, err := s.GetOrCreate(userID); err != nil {
			return nil, err
		}
		if err := s.db.Model(&models.UserReportProfile{}).
			Where("user_id = ?", userID).Updates(values).Error; err != nil {
			return nil, fmt.Errorf("failed to update resolution counters: %w", err)
		}
	}

	return s.Get(userID)
}

func (s *gormProfileStore) SetDerived(userID uuid.UUID, trust, weight, activity float64, at time.Time) error {
	return s.db.Model(&models.UserReportProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"trust_score":      trust,
			"weight":           weight,
			"activity_points":  activity,
			"last_computed_at": at,
		}).Error
}

// Logs

type gormLogStore struct {
	db *gorm.DB
}

func (s *gormLogStore) Append(entry *models.ModerationLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append moderation log: %w", err)
	}
	return nil
}

func (s *gormLogStore) List(offset, limit int) ([]models.ModerationLog, int64, error) {
	var total int64
	if err := s.db.Model(&models.ModerationLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count moderation logs: %w", err)
	}

	var entries []models.ModerationLog
	err := s.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch moderation logs: %w", err)
	}
	return entries, total, nil
}

// Users

type gormUserStore struct {
	db *gorm.DB
}

func (s *gormUserStore) GetRole(userID uuid.UUID) (models.UserRole, error) {
	var user models.User
	if err := s.db.Select("role").First(&user, "id = ?", userID).Error; err != nil {
		return "", translateNotFound(err)
	}
	return user.Role, nil
}

func (s *gormUserStore) CountActive() (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).
		Where("status = ?", models.UserStatusActive).
		Count(&count).Error
	return count, err
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
