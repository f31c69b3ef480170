package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/middleware"
	"github.com/teamlounge/lounge-server/internal/services"
)

type ProfileHandler struct {
	profiles *services.ProfileService
	registry *identity.Registry
}

func NewProfileHandler(profiles *services.ProfileService, registry *identity.Registry) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, registry: registry}
}

// Me returns the caller's identity snapshot. A fresh snapshot is taken so a
// resolution that finished after the middleware ran is visible.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	binder := middleware.CurrentBinder(c)
	if binder == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	return c.JSON(toIdentityResponse(binder.Snapshot()))
}

func (h *ProfileHandler) AgreeTerms(c *fiber.Ctx) error {
	binder := middleware.CurrentBinder(c)
	if err := binder.AgreeTerms(c.UserContext()); err != nil {
		if errors.Is(err, identity.ErrNotAuthenticated) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to record terms agreement",
		})
	}
	return c.JSON(toIdentityResponse(binder.Snapshot()))
}

func (h *ProfileHandler) SetNickname(c *fiber.Ctx) error {
	var req dto.SetNicknameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	binder := middleware.CurrentBinder(c)
	if err := binder.SetNickname(c.UserContext(), strings.TrimSpace(req.Nickname)); err != nil {
		switch {
		case errors.Is(err, identity.ErrNotAuthenticated):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrNicknameTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrNicknameTooShort):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to save nickname",
			})
		}
	}
	return c.JSON(toIdentityResponse(binder.Snapshot()))
}

func (h *ProfileHandler) CheckNickname(c *fiber.Ctx) error {
	nickname := strings.TrimSpace(c.Query("nickname"))
	if nickname == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "nickname query parameter is required",
		})
	}

	snap := middleware.CurrentIdentity(c)
	available, err := h.profiles.NicknameAvailable(c.UserContext(), nickname, snap.AnonID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to check nickname",
		})
	}
	return c.JSON(fiber.Map{"nickname": nickname, "available": available})
}

// Withdraw soft-deletes the caller's profile and tears down the session.
func (h *ProfileHandler) Withdraw(c *fiber.Ctx) error {
	binder := middleware.CurrentBinder(c)
	if err := binder.Withdraw(c.UserContext()); err != nil {
		if errors.Is(err, identity.ErrNotAuthenticated) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to withdraw",
		})
	}
	h.registry.Remove(middleware.SessionID(c))

	return c.JSON(fiber.Map{"message": "Account withdrawn"})
}
