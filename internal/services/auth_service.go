package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/config"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailWithdrawn     = errors.New("this email belongs to a withdrawn account")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
)

// Notifier delivers out-of-band messages; the AMQP publisher implements it.
type Notifier interface {
	PublishVerificationCode(ctx context.Context, email, code string) error
	PublishRecoveryCode(ctx context.Context, email, code string) error
	PublishReportCreated(ctx context.Context, report *models.Report) error
}

// AuthService plays the authentication-provider role: accounts, verified
// emails, access/refresh tokens. It hands the binder sessions, nothing more —
// the account id never reaches content tables.
type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	profiles *ProfileService
	notifier Notifier
}

func NewAuthService(db *gorm.DB, cfg *config.Config, profiles *ProfileService, notifier Notifier) *AuthService {
	return &AuthService{db: db, cfg: cfg, profiles: profiles, notifier: notifier}
}

// Register creates an unverified account and mails a verification code.
// Emails that belong to a withdrawn profile are rejected.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 8 {
		return errors.New("email required and password must be at least 8 characters")
	}

	withdrawn, err := s.profiles.WithdrawnEmail(ctx, email)
	if err != nil {
		return err
	}
	if withdrawn {
		return ErrEmailWithdrawn
	}

	var existing models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return s.issueCode(ctx, &account, models.CodePurposeSignup)
}

func (s *AuthService) issueCode(ctx context.Context, account *models.Account, purpose string) error {
	code, err := randomDigits(6)
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	record := models.VerificationCode{
		ID:        uuid.New(),
		AccountID: account.ID,
		Purpose:   purpose,
		CodeHash:  hashToken(code),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if s.notifier != nil {
		var pubErr error
		if purpose == models.CodePurposeRecovery {
			pubErr = s.notifier.PublishRecoveryCode(ctx, account.Email, code)
		} else {
			pubErr = s.notifier.PublishVerificationCode(ctx, account.Email, code)
		}
		if pubErr != nil {
			slog.Error("failed to publish verification code", "purpose", purpose, "error", pubErr)
		}
	}
	return nil
}

// consumeCode checks the freshest unconsumed code issued for the given
// purpose and burns it on success or expiry.
func (s *AuthService) consumeCode(ctx context.Context, accountID uuid.UUID, purpose, code string) error {
	var record models.VerificationCode
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND purpose = ? AND consumed = false", accountID, purpose).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return ErrInvalidCode
	}

	if time.Now().After(record.ExpiresAt) {
		s.db.WithContext(ctx).Model(&record).Update("consumed", true)
		return ErrCodeExpired
	}
	if record.CodeHash != hashToken(code) {
		return ErrInvalidCode
	}

	return s.db.WithContext(ctx).Model(&record).Update("consumed", true).Error
}

// RecoverPassword mails a recovery code. Unknown emails succeed silently so
// the endpoint cannot be used to probe for registered addresses.
func (s *AuthService) RecoverPassword(ctx context.Context, req *dto.RecoverPasswordRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return errors.New("email is required")
	}

	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil
	}
	return s.issueCode(ctx, &account, models.CodePurposeRecovery)
}

// ResetPassword consumes a recovery code, sets the new password and revokes
// every refresh token the account holds, forcing all sessions to sign in
// again with the new credentials.
func (s *AuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.NewPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return ErrInvalidCode
	}
	if err := s.consumeCode(ctx, account.ID, models.CodePurposeRecovery, req.Code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&account).Update("password", string(hash)).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("account_id = ?", account.ID).
		Update("revoked", true).Error
}

// VerifyEmail consumes a signup code and signs the account in.
func (s *AuthService) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) (*dto.AuthResponse, *identity.Session, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, nil, "", ErrInvalidCode
	}

	if err := s.consumeCode(ctx, account.ID, models.CodePurposeSignup, req.Code); err != nil {
		return nil, nil, "", err
	}

	if err := s.db.WithContext(ctx).Model(&account).Update("email_verified", true).Error; err != nil {
		return nil, nil, "", fmt.Errorf("failed to mark email verified: %w", err)
	}
	account.EmailVerified = true

	return s.openSession(ctx, &account)
}

// Login checks credentials and opens a fresh session. Unverified emails are
// rejected so every session the binder sees carries a verified address.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, *identity.Session, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		return nil, nil, "", ErrInvalidCredentials
	}
	if !account.EmailVerified {
		return nil, nil, "", ErrEmailNotVerified
	}

	return s.openSession(ctx, &account)
}

// Refresh rotates the refresh token. The session id survives rotation so the
// binder treats it as the same session getting a newer event.
func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, *identity.Session, string, error) {
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ? AND revoked = false", tokenHash).First(&stored).Error; err != nil {
		return nil, nil, "", ErrInvalidToken
	}
	if time.Now().After(stored.ExpiresAt) {
		s.db.WithContext(ctx).Model(&stored).Update("revoked", true)
		return nil, nil, "", ErrInvalidToken
	}
	s.db.WithContext(ctx).Model(&stored).Update("revoked", true)

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", stored.AccountID).Error; err != nil {
		return nil, nil, "", fmt.Errorf("account not found: %w", err)
	}

	resp, sess, _, err := s.tokenPair(ctx, &account, stored.SessionID)
	return resp, sess, stored.SessionID, err
}

// Logout revokes the presented refresh token and reports which session it
// belonged to so the caller can clear the session's binder.
func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) (string, error) {
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&stored).Error; err != nil {
		return "", nil
	}
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
	return stored.SessionID, err
}

// RevokeSession implements identity.SessionRevoker; the binder calls it when
// a user signs out or withdraws.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("session_id = ?", sessionID).
		Update("revoked", true).Error
}

// AccountByID backs binder reconstruction from token claims after a restart.
func (s *AuthService) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("account not found: %w", err)
	}
	return &account, nil
}

func (s *AuthService) openSession(ctx context.Context, account *models.Account) (*dto.AuthResponse, *identity.Session, string, error) {
	sessionID := uuid.NewString()
	resp, sess, sid, err := s.tokenPair(ctx, account, sessionID)
	return resp, sess, sid, err
}

func (s *AuthService) tokenPair(ctx context.Context, account *models.Account, sessionID string) (*dto.AuthResponse, *identity.Session, string, error) {
	accessToken, err := s.generateAccessToken(account, sessionID)
	if err != nil {
		return nil, nil, "", err
	}
	refreshToken, err := s.generateRefreshToken(ctx, account, sessionID)
	if err != nil {
		return nil, nil, "", err
	}

	sess := &identity.Session{
		UserID:        account.ID.String(),
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
	}
	resp := &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	return resp, sess, sessionID, nil
}

func (s *AuthService) generateAccessToken(account *models.Account, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":            account.ID.String(),
		"email":          account.Email,
		"email_verified": account.EmailVerified,
		"sid":            sessionID,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, account *models.Account, sessionID string) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		SessionID: sessionID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
