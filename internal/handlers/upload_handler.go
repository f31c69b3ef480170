package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/middleware"
	"github.com/teamlounge/lounge-server/internal/storage"
)

type UploadHandler struct {
	uploader *storage.Uploader
}

func NewUploadHandler(uploader *storage.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// Presign hands the client a short-lived PUT URL; the stored key is what goes
// into a post's image_urls.
func (h *UploadHandler) Presign(c *fiber.Ctx) error {
	if h.uploader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Uploads are not configured",
		})
	}

	var req dto.PresignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	anonID := middleware.CurrentIdentity(c).AnonID
	uploadURL, key, err := h.uploader.PresignUpload(c.UserContext(), anonID, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to presign upload",
		})
	}

	publicURL, err := h.uploader.PresignDownload(c.UserContext(), key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to presign download",
		})
	}

	return c.JSON(dto.PresignUploadResponse{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: publicURL,
	})
}
