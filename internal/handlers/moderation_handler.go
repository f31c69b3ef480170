package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/middleware"
	"github.com/teamlounge/lounge-server/internal/services"
)

type ModerationHandler struct {
	moderation *services.ModerationService
}

func NewModerationHandler(moderation *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	reporter := middleware.CurrentIdentity(c).AnonID
	report, err := h.moderation.CreateReport(c.UserContext(), reporter, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ModerationHandler) BlockUser(c *fiber.Ctx) error {
	var req dto.BlockUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	blocker := middleware.CurrentIdentity(c).AnonID
	if err := h.moderation.BlockUser(c.UserContext(), blocker, req.BlockedID); err != nil {
		switch {
		case errors.Is(err, services.ErrSelfBlock):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrAlreadyBlocked):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to block user",
			})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User blocked"})
}

func (h *ModerationHandler) UnblockUser(c *fiber.Ctx) error {
	blocker := middleware.CurrentIdentity(c).AnonID
	blockedID := c.Params("blockedId")
	if err := h.moderation.UnblockUser(c.UserContext(), blocker, blockedID); err != nil {
		if errors.Is(err, services.ErrBlockNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to unblock user",
		})
	}
	return c.JSON(fiber.Map{"message": "User unblocked"})
}

func (h *ModerationHandler) ListBlocked(c *fiber.Ctx) error {
	blocker := middleware.CurrentIdentity(c).AnonID
	blocked, err := h.moderation.ListBlocked(c.UserContext(), blocker)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list blocked users",
		})
	}
	return c.JSON(blocked)
}
