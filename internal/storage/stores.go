// internal/storage/stores.go
package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/makerden/makerden-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("storage: record not found")
	ErrDuplicate = errors.New("storage: duplicate record")
	ErrConflict  = errors.New("storage: transient conflict")
)

// ContentItem is the moderation projection of a post, comment or review.
type ContentItem struct {
	Key        models.ContentKey
	AuthorID   uuid.UUID
	AuthorRole models.UserRole
	Status     models.ModerationStatus
	IsHidden   bool
	HiddenAt   *time.Time
	HiddenBy   *uuid.UUID
}

// StatusUpdate carries one state-machine transition to the content tables.
type StatusUpdate struct {
	Status   models.ModerationStatus
	Hidden   bool
	HiddenAt *time.Time
	HiddenBy *uuid.UUID
}

type ContentStore interface {
	Get(key models.ContentKey) (*ContentItem, error)
	SetStatus(key models.ContentKey, upd StatusUpdate) error
}

type ReportStore interface {
	// Create returns ErrDuplicate when the (reporter, content key) pair
	// already has a report.
	Create(r *models.Report) error
	ExistsFor(reporterID uuid.UUID, key models.ContentKey) (bool, error)
	PendingFor(key models.ContentKey) ([]models.Report, error)
	SetAutoAction(id uuid.UUID, action string) error
	// Resolve flips a report from pending to the given outcome. Returns
	// false when the report was already resolved; the caller must then skip
	// all side effects, which is what makes resolution idempotent.
	Resolve(id uuid.UUID, outcome models.ResolvedStatus, at time.Time) (bool, error)
}

type ScoreStore interface {
	Get(key models.ContentKey) (*models.ContentReportScore, error)
	// AddReport applies the whole per-report increment atomically with
	// respect to other reports on the same key. The row is created lazily.
	AddReport(key models.ContentKey, weight, siteScale float64, at time.Time) (*models.ContentReportScore, error)
	// MarkAutoHidden is a compare-and-set on auto_hidden_at; it returns
	// false when the episode already fired.
	MarkAutoHidden(key models.ContentKey, at time.Time) (bool, error)
	ClearAutoHidden(key models.ContentKey) error
	SubtractWeight(key models.ContentKey, weight float64, at time.Time) error
	SetMetadata(key models.ContentKey, md models.JSONB) error
	// List returns score rows ordered by weight_total descending, for the
	// moderator queue view.
	List(offset, limit int) ([]models.ContentReportScore, int64, error)
}

type ProfileStore interface {
	GetOrCreate(userID uuid.UUID) (*models.UserReportProfile, error)
	Get(userID uuid.UUID) (*models.UserReportProfile, error)
	IncrementSubmitted(userID uuid.UUID) error
	// IncrementResolution atomically bumps the outcome counters and returns
	// the refreshed row so the caller can derive trust from the counters.
	IncrementResolution(userID uuid.UUID, outcome models.ResolvedStatus, autoEpisode bool) (*models.UserReportProfile, error)
	SetDerived(userID uuid.UUID, trust, weight, activity float64, at time.Time) error
}

type LogStore interface {
	Append(entry *models.ModerationLog) error
	List(offset, limit int) ([]models.ModerationLog, int64, error)
}

type UserStore interface {
	GetRole(userID uuid.UUID) (models.UserRole, error)
	CountActive() (int64, error)
}
