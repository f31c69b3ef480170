package models

import (
	"time"

	"github.com/google/uuid"
)

// Block hides one member's content from another. Both sides are anon ids.
type Block struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BlockerID string    `gorm:"type:char(36);not null;uniqueIndex:idx_blocks_pair" json:"blocker_id"`
	BlockedID string    `gorm:"type:char(36);not null;uniqueIndex:idx_blocks_pair" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Block) TableName() string {
	return "blocks"
}
