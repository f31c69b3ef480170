package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/identity"
)

const (
	localsBinder    = "identity_binder"
	localsSnapshot  = "identity_snapshot"
	localsSessionID = "identity_session"
)

// ResolveIdentity runs after JWTProtected. It looks up the binder for the
// token's session and exposes the identity snapshot to handlers. When the
// server restarted since login, the binder is rebuilt from the token claims
// and the request waits for the first profile resolution.
func ResolveIdentity(registry *identity.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		sessionID, _ := claims["sid"].(string)
		sub, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		verified, _ := claims["email_verified"].(bool)
		if sessionID == "" || sub == "" || email == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		binder, found := registry.Get(sessionID)
		if !found {
			binder = registry.Bind(sessionID, &identity.Session{
				UserID:        sub,
				Email:         email,
				EmailVerified: verified,
			})
			waitForResolution(binder)
		}

		c.Locals(localsBinder, binder)
		c.Locals(localsSnapshot, binder.Snapshot())
		c.Locals(localsSessionID, sessionID)
		return c.Next()
	}
}

// RequireWriteAccess gates content creation on a completed onboarding:
// nickname chosen and terms agreed.
func RequireWriteAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := CurrentIdentity(c)
		if !snap.CanWrite() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Onboarding incomplete: set a nickname and agree to the terms first",
			})
		}
		return c.Next()
	}
}

func CurrentBinder(c *fiber.Ctx) *identity.Binder {
	b, _ := c.Locals(localsBinder).(*identity.Binder)
	return b
}

func CurrentIdentity(c *fiber.Ctx) identity.Snapshot {
	snap, _ := c.Locals(localsSnapshot).(identity.Snapshot)
	return snap
}

func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(localsSessionID).(string)
	return sid
}

// waitForResolution blocks until the binder's first resolution completes. The
// binder's own watchdog bounds the wait.
func waitForResolution(b *identity.Binder) {
	for b.Snapshot().Loading {
		time.Sleep(5 * time.Millisecond)
	}
}
