package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teamlounge/lounge-server/internal/config"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/gorm"
)

func newAuth(t *testing.T) (*AuthService, *captureNotifier, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	}
	notifier := newCaptureNotifier()
	return NewAuthService(db, cfg, NewProfileService(db), notifier), notifier, db
}

func signUp(t *testing.T, svc *AuthService, notifier *captureNotifier, email string) (*dto.AuthResponse, *identity.Session, string) {
	t.Helper()
	ctx := context.Background()
	if err := svc.Register(ctx, &dto.RegisterRequest{Email: email, Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code := notifier.codeFor(email)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	resp, sess, sid, err := svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: email, Code: code})
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return resp, sess, sid
}

func TestRegisterVerifyLogin(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	// Login is closed until the email is verified.
	if err := svc.Register(ctx, &dto.RegisterRequest{Email: "USER@Example.com", Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, _, err := svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "password123"}); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	code := notifier.codeFor("user@example.com")
	if code == "" {
		t.Fatal("verification code not published for lowercased email")
	}
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	if _, _, _, err := svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "user@example.com", Code: wrong}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	resp, sess, sid, err := svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "user@example.com", Code: code})
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if !sess.EmailVerified || sess.Email != "user@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sid == "" {
		t.Fatal("session id missing")
	}

	if _, _, _, err := svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, _, loginSID, err := svc.Login(ctx, &dto.LoginRequest{Email: "User@Example.COM", Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loginSID == sid {
		t.Fatal("each login must open a fresh session")
	}
}

func TestRegisterRejections(t *testing.T) {
	t.Parallel()
	svc, notifier, db := newAuth(t)
	ctx := context.Background()

	if err := svc.Register(ctx, &dto.RegisterRequest{Email: "a@b.com", Password: "short"}); err == nil {
		t.Fatal("expected error for short password")
	}

	signUp(t, svc, notifier, "taken@example.com")
	if err := svc.Register(ctx, &dto.RegisterRequest{Email: "Taken@example.com", Password: "password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// A withdrawn member's email stays burned.
	hash := identity.WithdrawnEmailHash("Gone@Example.com")
	nickname := identity.WithdrawnNickname
	now := time.Now()
	profile := models.Profile{
		ID:                 "44444444-4444-4444-4444-444444444444",
		Nickname:           &nickname,
		DeletedAt:          &now,
		WithdrawnEmailHash: &hash,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("failed to seed withdrawn profile: %v", err)
	}
	if err := svc.Register(ctx, &dto.RegisterRequest{Email: "gone@example.com", Password: "password123"}); !errors.Is(err, ErrEmailWithdrawn) {
		t.Fatalf("expected ErrEmailWithdrawn, got %v", err)
	}
}

func TestAccessTokenClaims(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)

	resp, sess, sid := signUp(t, svc, notifier, "claims@example.com")

	token, err := jwt.Parse(resp.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("access token does not parse: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != sess.UserID {
		t.Fatalf("sub claim %v != account id %s", claims["sub"], sess.UserID)
	}
	if claims["sid"] != sid {
		t.Fatalf("sid claim %v != session id %s", claims["sid"], sid)
	}
	if claims["email"] != "claims@example.com" || claims["email_verified"] != true {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestRefreshRotationKeepsSession(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	resp, _, sid := signUp(t, svc, notifier, "rotate@example.com")

	next, _, refreshedSID, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshedSID != sid {
		t.Fatalf("rotation changed the session: %s != %s", refreshedSID, sid)
	}
	if next.RefreshToken == resp.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is burned.
	if _, _, _, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for reused token, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	resp, _, sid := signUp(t, svc, notifier, "bye@example.com")

	gone, err := svc.Logout(ctx, &dto.LogoutRequest{RefreshToken: resp.RefreshToken})
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if gone != sid {
		t.Fatalf("logout reported session %s, expected %s", gone, sid)
	}
	if _, _, _, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}

	// Unknown tokens log out silently.
	if _, err := svc.Logout(ctx, &dto.LogoutRequest{RefreshToken: "never-issued"}); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	resp, _, _ := signUp(t, svc, notifier, "lost@example.com")

	// Unknown emails succeed silently and publish nothing.
	if err := svc.RecoverPassword(ctx, &dto.RecoverPasswordRequest{Email: "nobody@example.com"}); err != nil {
		t.Fatalf("RecoverPassword for unknown email: %v", err)
	}
	if notifier.recoveryFor("nobody@example.com") != "" {
		t.Fatal("recovery code published for unregistered email")
	}

	if err := svc.RecoverPassword(ctx, &dto.RecoverPasswordRequest{Email: "Lost@Example.COM"}); err != nil {
		t.Fatalf("RecoverPassword: %v", err)
	}
	code := notifier.recoveryFor("lost@example.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit recovery code, got %q", code)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	if err := svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "lost@example.com", Code: wrong, NewPassword: "newpassword1"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "lost@example.com", Code: code, NewPassword: "short"}); err == nil {
		t.Fatal("expected error for short password")
	}

	if err := svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "lost@example.com", Code: code, NewPassword: "newpassword1"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// The code is burned, the old password is dead and every refresh token
	// issued before the reset is revoked.
	if err := svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "lost@example.com", Code: code, NewPassword: "anotherpass1"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for reused code, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, &dto.LoginRequest{Email: "lost@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, &dto.LoginRequest{Email: "lost@example.com", Password: "newpassword1"}); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
	if _, _, _, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected pre-reset refresh token revoked, got %v", err)
	}
}

func TestRecoveryCodeCannotVerifyEmail(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	if err := svc.Register(ctx, &dto.RegisterRequest{Email: "mixed@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	signupCode := notifier.codeFor("mixed@example.com")

	// A signup code is useless for a password reset.
	if err := svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "mixed@example.com", Code: signupCode, NewPassword: "newpassword1"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	if err := svc.RecoverPassword(ctx, &dto.RecoverPasswordRequest{Email: "mixed@example.com"}); err != nil {
		t.Fatalf("RecoverPassword: %v", err)
	}
	recoveryCode := notifier.recoveryFor("mixed@example.com")

	// And a recovery code cannot verify the email.
	if recoveryCode != signupCode {
		if _, _, _, err := svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "mixed@example.com", Code: recoveryCode}); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected ErrInvalidCode, got %v", err)
		}
	}
	if _, _, _, err := svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "mixed@example.com", Code: signupCode}); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
}

func TestRevokeSessionKillsAllTokens(t *testing.T) {
	t.Parallel()
	svc, notifier, _ := newAuth(t)
	ctx := context.Background()

	resp, _, sid := signUp(t, svc, notifier, "revoke@example.com")
	next, _, _, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := svc.RevokeSession(ctx, sid); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, _, _, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: next.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
}
