package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/config"
	"github.com/teamlounge/lounge-server/internal/dto"
)

// AdminRequired runs after ResolveIdentity and admits:
// 1. Config-based admin emails
// 2. Profiles with the is_admin flag set
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)

	return func(c *fiber.Ctx) error {
		snap := CurrentIdentity(c)
		if snap.AnonID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if snap.IsAdmin || contains(adminEmails, strings.ToLower(snap.Email)) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
