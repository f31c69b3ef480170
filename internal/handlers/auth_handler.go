package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	registry    *identity.Registry
}

func NewAuthHandler(authService *services.AuthService, registry *identity.Registry) *AuthHandler {
	return &AuthHandler{authService: authService, registry: registry}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.authService.Register(c.UserContext(), &req); err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrEmailWithdrawn):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Verification code sent",
	})
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, sess, sid, err := h.authService.VerifyEmail(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCode) || errors.Is(err, services.ErrCodeExpired) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	resp.Identity = h.bindSession(sid, sess)
	return c.JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, sess, sid, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrEmailNotVerified):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}

	resp.Identity = h.bindSession(sid, sess)
	return c.JSON(resp)
}

// RecoverPassword always reports success so the endpoint cannot be used to
// probe which emails are registered.
func (h *AuthHandler) RecoverPassword(c *fiber.Ctx) error {
	var req dto.RecoverPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.authService.RecoverPassword(c.UserContext(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.JSON(fiber.Map{"message": "Recovery code sent if the email is registered"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.authService.ResetPassword(c.UserContext(), &req); err != nil {
		if errors.Is(err, services.ErrInvalidCode) || errors.Is(err, services.ErrCodeExpired) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, sess, sid, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	resp.Identity = h.bindSession(sid, sess)
	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	sid, err := h.authService.Logout(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	if sid != "" {
		if b, ok := h.registry.Get(sid); ok {
			b.OnSessionChange(nil)
		}
		h.registry.Remove(sid)
	}

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// bindSession routes the fresh session event into the registry and waits for
// the first profile resolution so the response carries a settled identity.
func (h *AuthHandler) bindSession(sid string, sess *identity.Session) dto.IdentityResponse {
	binder := h.registry.Bind(sid, sess)
	awaitResolution(binder)
	return toIdentityResponse(binder.Snapshot())
}

func awaitResolution(b *identity.Binder) {
	deadline := time.Now().Add(identity.DefaultResolveTimeout)
	for b.Snapshot().Loading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func toIdentityResponse(snap identity.Snapshot) dto.IdentityResponse {
	return dto.IdentityResponse{
		State:       snap.State.String(),
		AnonID:      snap.AnonID,
		Nickname:    snap.Nickname,
		IsAdmin:     snap.IsAdmin,
		TermsAgreed: snap.TermsOK,
		Loading:     snap.Loading,
		CanWrite:    snap.CanWrite(),
	}
}
