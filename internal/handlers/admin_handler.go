package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/services"
)

// AdminHandler groups moderation-console endpoints: member management, report
// triage, post removal and category administration.
type AdminHandler struct {
	profiles   *services.ProfileService
	board      *services.BoardService
	categories *services.CategoryService
	moderation *services.ModerationService
}

func NewAdminHandler(profiles *services.ProfileService, board *services.BoardService, categories *services.CategoryService, moderation *services.ModerationService) *AdminHandler {
	return &AdminHandler{profiles: profiles, board: board, categories: categories, moderation: moderation}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	users, err := h.profiles.ListUsers(c.UserContext(), c.Query("search"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list users",
		})
	}

	out := make([]dto.AdminUserResponse, 0, len(users))
	for _, u := range users {
		entry := dto.AdminUserResponse{
			ID:        u.ID,
			IsAdmin:   u.IsAdmin,
			Withdrawn: u.Withdrawn(),
			UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if u.Nickname != nil {
			entry.Nickname = *u.Nickname
		}
		out = append(out, entry)
	}
	return c.JSON(out)
}

func (h *AdminHandler) ToggleAdmin(c *fiber.Ctx) error {
	var req dto.ToggleAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.profiles.SetAdmin(c.UserContext(), c.Params("id"), req.IsAdmin); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to update user",
		})
	}
	return c.JSON(fiber.Map{"message": "User updated"})
}

// DeleteUser is the hard-delete console action; member-initiated withdrawal
// goes through the profile handler and keeps content.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.profiles.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrAdminUndeletable):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to delete user",
			})
		}
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

func (h *AdminHandler) ListPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	posts, total, err := h.board.AdminListPosts(c.UserContext(), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list posts",
		})
	}
	return c.JSON(fiber.Map{"items": posts, "total": total, "page": page, "limit": limit})
}

func (h *AdminHandler) DeletePost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	if err := h.board.AdminDeletePost(c.UserContext(), int64(postID)); err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete post",
		})
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

func (h *AdminHandler) ListReports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	reports, total, err := h.moderation.ListReports(c.UserContext(), c.Query("status"), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list reports",
		})
	}
	return c.JSON(fiber.Map{"items": reports, "total": total})
}

func (h *AdminHandler) ActionReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report id",
		})
	}
	var req dto.ActionReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.moderation.ActionReport(c.UserContext(), reportID, &req); err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.JSON(fiber.Map{"message": "Report updated"})
}

func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	category, err := h.categories.Create(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.categories.Update(c.UserContext(), c.Params("id"), &req); err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to update category",
		})
	}
	return c.JSON(fiber.Map{"message": "Category updated"})
}

func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.categories.Delete(c.UserContext(), c.Params("id")); err != nil {
		switch {
		case errors.Is(err, services.ErrCategoryNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrCategoryInUse):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to delete category",
			})
		}
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
