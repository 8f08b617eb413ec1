package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultImageRef = "no-img.jpeg"

type Post struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Preview   string    `json:"preview" gorm:"type:text"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	ImageRef  string    `json:"image_ref"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Reaction holds at most one row per (user, post); Kind says which relation
// the row belongs to.
type Reaction struct {
	UserID    uuid.UUID    `json:"user_id" gorm:"type:uuid;primaryKey"`
	PostID    uuid.UUID    `json:"post_id" gorm:"type:uuid;primaryKey;index"`
	Kind      ReactionKind `json:"kind" gorm:"size:16;not null"`
	CreatedAt time.Time    `json:"created_at"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

type Comment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	PostID    uuid.UUID `json:"post_id" gorm:"type:uuid;not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

// Engagement is the per-post (likes, dislikes, comments) triple.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
	Comments int64 `json:"comments"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ImageRef == "" {
		p.ImageRef = DefaultImageRef
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Post) TableName() string {
	return "posts"
}

func (Reaction) TableName() string {
	return "reactions"
}

func (Comment) TableName() string {
	return "comments"
}
