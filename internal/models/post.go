package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is a board thread. AuthorID is always an anon id.
type Post struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID  string         `gorm:"type:char(36);not null;index" json:"author_id"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Category  string         `gorm:"size:50;not null;index" json:"category"`
	ImageURLs datatypes.JSON `gorm:"type:jsonb" json:"image_urls"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Comment belongs to a post; ParentID nests one reply level. Deleting a
// comment with replies only flips IsDeleted so the thread keeps its shape.
type Comment struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64          `gorm:"not null;index" json:"post_id"`
	ParentID  *int64         `gorm:"index" json:"parent_id"`
	AuthorID  string         `gorm:"type:char(36);not null;index" json:"author_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	IsDeleted bool           `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Reaction values.
const (
	ReactionLike    = "LIKE"
	ReactionDislike = "DISLIKE"
)

// PostReaction is one member's like/dislike on a post, at most one row per
// (post, user).
type PostReaction struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_post_reactions_post_user" json:"post_id"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:idx_post_reactions_post_user" json:"user_id"`
	Reaction  string    `gorm:"size:10;not null" json:"reaction"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView records the first time a member opened a post; duplicates are
// dropped by the unique index.
type PostView struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_post_views_post_user" json:"post_id"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:idx_post_views_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
