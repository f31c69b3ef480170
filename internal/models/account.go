package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the authentication-provider record. It never appears in content
// tables; content rows reference the derived anon id instead, so account
// lifecycle and content ownership stay decoupled.
type Account struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password      string    `gorm:"not null" json:"-"`
	EmailVerified bool      `gorm:"default:false" json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index" json:"account_id"`
	SessionID string    `gorm:"size:36;not null;index" json:"-"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `gorm:"foreignKey:AccountID" json:"-"`
}

// Verification code purposes. A code is only good for the flow it was
// issued for.
const (
	CodePurposeSignup   = "SIGNUP"
	CodePurposeRecovery = "RECOVERY"
)

// VerificationCode holds a hashed one-time code mailed to an account, either
// to confirm a signup email or to recover a forgotten password.
type VerificationCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index" json:"account_id"`
	Purpose   string    `gorm:"not null;size:20;default:'SIGNUP';index" json:"-"`
	CodeHash  string    `gorm:"not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Consumed  bool      `gorm:"default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
