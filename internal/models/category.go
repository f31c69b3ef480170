package models

import "time"

// Category is an admin-managed board section.
type Category struct {
	ID        string    `gorm:"size:50;primaryKey" json:"id"`
	Label     string    `gorm:"size:100;not null" json:"label"`
	Color     string    `gorm:"size:30;default:'gray'" json:"color"`
	SortOrder int       `gorm:"default:0;index" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
