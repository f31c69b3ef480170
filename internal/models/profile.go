package models

import "time"

// Profile is the per-anon-id member record. The primary key is the derived
// anon id (UUID-shaped, not a real UUID), so a profile exists independently of
// the auth account and survives account-level changes.
//
// A row with a nil Nickname is a signed-in user who has not finished
// onboarding; content creation is gated on Nickname and TermsAgreedAt both
// being set.
type Profile struct {
	ID                 string     `gorm:"type:char(36);primaryKey" json:"id"`
	Nickname           *string    `gorm:"size:30;index" json:"nickname"`
	IsAdmin            bool       `gorm:"default:false" json:"is_admin"`
	TermsAgreedAt      *time.Time `json:"terms_agreed_at"`
	DeletedAt          *time.Time `gorm:"index" json:"deleted_at"`
	WithdrawnEmailHash *string    `gorm:"size:64;index" json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Withdrawn reports whether the profile was soft-deleted by the member.
func (p *Profile) Withdrawn() bool {
	return p.DeletedAt != nil
}
