// internal/models/moderation.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Report is one user's complaint about one content item. The reporter's role,
// trust and weight are snapshotted at submission time and never recomputed
// retroactively. At most one report per (reporter, content type, content id).
type Report struct {
	BaseModel
	ReporterID  uuid.UUID   `json:"reporter_id" gorm:"type:uuid;not null;uniqueIndex:idx_reports_reporter_content"`
	ContentType ContentType `json:"content_type" gorm:"type:varchar(20);not null;uniqueIndex:idx_reports_reporter_content;index:idx_reports_content"`
	ContentID   uuid.UUID   `json:"content_id" gorm:"type:uuid;not null;uniqueIndex:idx_reports_reporter_content;index:idx_reports_content"`
	ContentURL  string      `json:"content_url" gorm:"size:500"`

	Reason  ReportReason `json:"reason" gorm:"type:varchar(20);not null"`
	Details string       `json:"details" gorm:"type:text"`

	// Snapshots taken from the trust ledger at submission time.
	ReporterRole   UserRole `json:"reporter_role" gorm:"type:varchar(20);not null"`
	RoleWeight     float64  `json:"role_weight" gorm:"not null"`
	ReporterTrust  float64  `json:"reporter_trust" gorm:"not null"`
	ReporterWeight float64  `json:"reporter_weight" gorm:"not null"`
	Weight         float64  `json:"weight" gorm:"not null"`

	ResolvedStatus ResolvedStatus `json:"resolved_status" gorm:"type:varchar(20);default:'pending';not null;index"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	AutoAction     *string        `json:"auto_action" gorm:"size:30"`

	Signals  pq.StringArray `json:"signals,omitempty" gorm:"type:text[]"`
	Metadata JSONB          `json:"metadata" gorm:"type:jsonb"`

	// Relationships
	Reporter User `json:"reporter,omitempty" gorm:"foreignKey:ReporterID"`
}

func (r *Report) Key() ContentKey {
	return ContentKey{Type: r.ContentType, ID: r.ContentID}
}

// ContentReportScore is the running aggregate for one content key.
// Invariant: WeightTotal equals the sum of weights of all reports for this key
// that are not resolved as rejected.
type ContentReportScore struct {
	BaseModel
	ContentType ContentType `json:"content_type" gorm:"type:varchar(20);not null;uniqueIndex:idx_scores_content"`
	ContentID   uuid.UUID   `json:"content_id" gorm:"type:uuid;not null;uniqueIndex:idx_scores_content"`

	ReportsCount   int     `json:"reports_count" gorm:"not null;default:0"`
	ReportersCount int     `json:"reporters_count" gorm:"not null;default:0"`
	WeightTotal    float64 `json:"weight_total" gorm:"not null;default:0"`
	SiteScale      float64 `json:"site_scale" gorm:"not null;default:1"`

	AutoHiddenAt     *time.Time `json:"auto_hidden_at"`
	LastReportAt     *time.Time `json:"last_report_at"`
	LastRecomputedAt *time.Time `json:"last_recomputed_at"`
	Metadata         JSONB      `json:"metadata" gorm:"type:jsonb"`
}

func (s *ContentReportScore) Key() ContentKey {
	return ContentKey{Type: s.ContentType, ID: s.ContentID}
}

// UserReportProfile is the trust ledger entry for one user. TrustScore and
// Weight are derived deterministically from the counters and are never edited
// independently of them.
type UserReportProfile struct {
	BaseModel
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`

	ReportsSubmitted  int `json:"reports_submitted" gorm:"not null;default:0"`
	ReportsConfirmed  int `json:"reports_confirmed" gorm:"not null;default:0"`
	ReportsRejected   int `json:"reports_rejected" gorm:"not null;default:0"`
	ReportsAutoHidden int `json:"reports_auto_hidden" gorm:"not null;default:0"`

	ActivityPoints float64 `json:"activity_points" gorm:"not null;default:0"`
	TrustScore     float64 `json:"trust_score" gorm:"not null;default:1"`
	Weight         float64 `json:"weight" gorm:"not null;default:1"`

	LastComputedAt *time.Time `json:"last_computed_at"`
	Metadata       JSONB      `json:"metadata" gorm:"type:jsonb"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ModerationLog is the append-only audit record written on every state
// transition, whether moderator- or system-triggered.
type ModerationLog struct {
	BaseModel
	ActorID    *uuid.UUID  `json:"actor_id" gorm:"type:uuid;index"`
	ActorRole  UserRole    `json:"actor_role" gorm:"type:varchar(20);not null"`
	Action     string      `json:"action" gorm:"size:50;not null;index"`
	TargetType ContentType `json:"target_type" gorm:"type:varchar(20);not null;index:idx_modlog_target"`
	TargetID   uuid.UUID   `json:"target_id" gorm:"type:uuid;not null;index:idx_modlog_target"`
	TargetURL  string      `json:"target_url" gorm:"size:500"`
	Notes      string      `json:"notes" gorm:"type:text"`
	Denied     bool        `json:"denied" gorm:"not null;default:false"`
	IPAddress  string      `json:"ip_address" gorm:"size:45"`
	UserAgent  string      `json:"user_agent" gorm:"type:text"`
	Metadata   JSONB       `json:"metadata" gorm:"type:jsonb"`

	// Relationships
	Actor *User `json:"actor,omitempty" gorm:"foreignKey:ActorID"`
}
