// internal/models/content.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationFields are embedded by every moderatable content variant.
// Invariant: IsHidden == true implies ModerationStatus != approved.
type ModerationFields struct {
	ModerationStatus ModerationStatus `json:"moderation_status" gorm:"type:varchar(20);default:'approved';not null;index"`
	IsHidden         bool             `json:"is_hidden" gorm:"default:false;not null"`
	HiddenAt         *time.Time       `json:"hidden_at"`
	HiddenBy         *uuid.UUID       `json:"hidden_by" gorm:"type:uuid"`
}

type Post struct {
	BaseModel
	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;not null;index"`
	Title    string    `json:"title" gorm:"size:255;not null"`
	Body     string    `json:"body" gorm:"type:text"`
	Metadata JSONB     `json:"metadata" gorm:"type:jsonb"`
	ModerationFields

	// Relationships
	Author   User      `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Comments []Comment `json:"comments,omitempty" gorm:"foreignKey:PostID"`
}

type Comment struct {
	BaseModel
	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;not null;index"`
	PostID   uuid.UUID `json:"post_id" gorm:"type:uuid;not null;index"`
	Body     string    `json:"body" gorm:"type:text;not null"`
	ModerationFields

	// Relationships
	Author User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Post   Post `json:"post,omitempty" gorm:"foreignKey:PostID"`
}

type Review struct {
	BaseModel
	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;not null;index"`
	MakerID  uuid.UUID `json:"maker_id" gorm:"type:uuid;not null;index"`
	Rating   int       `json:"rating" gorm:"not null"`
	Body     string    `json:"body" gorm:"type:text"`
	ModerationFields

	// Relationships
	Author User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Maker  User `json:"maker,omitempty" gorm:"foreignKey:MakerID"`
}

func (p *Post) Key() ContentKey    { return ContentKey{Type: ContentTypePost, ID: p.ID} }
func (c *Comment) Key() ContentKey { return ContentKey{Type: ContentTypeComment, ID: c.ID} }
func (r *Review) Key() ContentKey  { return ContentKey{Type: ContentTypeReview, ID: r.ID} }
