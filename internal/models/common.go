// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleMaker     UserRole = "maker"
	UserRoleModerator UserRole = "moderator"
	UserRoleAdmin     UserRole = "admin"
	// UserRoleSystem is never assigned to a real account; it marks reports
	// and moderation log entries produced by automated triggers.
	UserRoleSystem UserRole = "system"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeReview  ContentType = "review"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypePost, ContentTypeComment, ContentTypeReview:
		return true
	}
	return false
}

type ModerationStatus string

const (
	ModerationStatusApproved ModerationStatus = "approved"
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusHidden   ModerationStatus = "hidden"
)

type ReportReason string

const (
	ReportReasonSpam     ReportReason = "spam"
	ReportReasonAbuse    ReportReason = "abuse"
	ReportReasonOfftopic ReportReason = "offtopic"
	ReportReasonOther    ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReportReasonSpam, ReportReasonAbuse, ReportReasonOfftopic, ReportReasonOther:
		return true
	}
	return false
}

type ResolvedStatus string

const (
	ResolvedStatusPending   ResolvedStatus = "pending"
	ResolvedStatusConfirmed ResolvedStatus = "confirmed"
	ResolvedStatusRejected  ResolvedStatus = "rejected"
)

// Automatic actions recorded on reports and score rows.
const (
	AutoActionQueue = "auto_queue"
	AutoActionHide  = "auto_hide"
)

type ImageFallbackPolicy string

const (
	ImageFallbackQueueForReview ImageFallbackPolicy = "queue_for_review"
	ImageFallbackMarkSensitive  ImageFallbackPolicy = "mark_sensitive"
	ImageFallbackIgnore         ImageFallbackPolicy = "ignore"
)

func (p ImageFallbackPolicy) Valid() bool {
	switch p {
	case ImageFallbackQueueForReview, ImageFallbackMarkSensitive, ImageFallbackIgnore:
		return true
	}
	return false
}

// ContentKey addresses a moderatable item across the post/comment/review tables.
type ContentKey struct {
	Type ContentType `json:"content_type"`
	ID   uuid.UUID   `json:"content_id"`
}

func (k ContentKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.ID)
}
