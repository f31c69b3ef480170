package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/middleware"
	"github.com/teamlounge/lounge-server/internal/services"
)

type BoardHandler struct {
	board      *services.BoardService
	categories *services.CategoryService
}

func NewBoardHandler(board *services.BoardService, categories *services.CategoryService) *BoardHandler {
	return &BoardHandler{board: board, categories: categories}
}

func (h *BoardHandler) ListCategories(c *fiber.Ctx) error {
	rows, err := h.categories.List(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list categories",
		})
	}
	return c.JSON(rows)
}

func (h *BoardHandler) ListPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	viewer := middleware.CurrentIdentity(c).AnonID
	posts, total, err := h.board.ListPosts(c.UserContext(), viewer, c.Query("category"), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list posts",
		})
	}
	return c.JSON(fiber.Map{"items": posts, "total": total, "page": page, "limit": limit})
}

func (h *BoardHandler) MyPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	viewer := middleware.CurrentIdentity(c).AnonID
	posts, total, err := h.board.MyPosts(c.UserContext(), viewer, page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list posts",
		})
	}
	return c.JSON(fiber.Map{"items": posts, "total": total, "page": page, "limit": limit})
}

func (h *BoardHandler) GetPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	viewer := middleware.CurrentIdentity(c).AnonID
	detail, err := h.board.GetPost(c.UserContext(), int64(postID), viewer)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch post",
		})
	}
	return c.JSON(detail)
}

func (h *BoardHandler) CreatePost(c *fiber.Ctx) error {
	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	author := middleware.CurrentIdentity(c).AnonID
	post, err := h.board.CreatePost(c.UserContext(), author, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCategory) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *BoardHandler) UpdatePost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}
	var req dto.UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	author := middleware.CurrentIdentity(c).AnonID
	post, err := h.board.UpdatePost(c.UserContext(), author, int64(postID), &req)
	if err != nil {
		return h.boardError(c, err)
	}
	return c.JSON(post)
}

func (h *BoardHandler) DeletePost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	author := middleware.CurrentIdentity(c).AnonID
	if err := h.board.DeletePost(c.UserContext(), author, int64(postID)); err != nil {
		return h.boardError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

func (h *BoardHandler) ListComments(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	viewer := middleware.CurrentIdentity(c).AnonID
	tree, err := h.board.ListComments(c.UserContext(), int64(postID), viewer)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list comments",
		})
	}
	return c.JSON(tree)
}

func (h *BoardHandler) CreateComment(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	author := middleware.CurrentIdentity(c).AnonID
	comment, err := h.board.CreateComment(c.UserContext(), author, int64(postID), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrInvalidParent):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *BoardHandler) DeleteComment(c *fiber.Ctx) error {
	commentID, err := c.ParamsInt("commentId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid comment id",
		})
	}

	author := middleware.CurrentIdentity(c).AnonID
	if err := h.board.DeleteComment(c.UserContext(), author, int64(commentID)); err != nil {
		if errors.Is(err, services.ErrCommentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return h.boardError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

func (h *BoardHandler) React(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}
	var req dto.ReactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	viewer := middleware.CurrentIdentity(c).AnonID
	if err := h.board.React(c.UserContext(), viewer, int64(postID), req.Reaction); err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrInvalidReaction):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to save reaction",
			})
		}
	}

	detail, err := h.board.GetPost(c.UserContext(), int64(postID), viewer)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch post",
		})
	}
	return c.JSON(detail)
}

func (h *BoardHandler) boardError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidCategory), errors.Is(err, services.ErrImageNotUploaded):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
}
