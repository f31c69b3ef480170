package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/teamlounge/lounge-server/internal/config"
	"github.com/teamlounge/lounge-server/internal/handlers"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	registry *identity.Registry,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	boardHandler *handlers.BoardHandler,
	moderationHandler *handlers.ModerationHandler,
	adminHandler *handlers.AdminHandler,
	uploadHandler *handlers.UploadHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)
	api.Get("/categories", boardHandler.ListCategories)

	// Auth — public, with a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify", authHandler.VerifyEmail)
	auth.Post("/login", authHandler.Login)
	auth.Post("/recover", authHandler.RecoverPassword)
	auth.Post("/reset", authHandler.ResetPassword)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)

	// Everything below carries a verified session; the identity middleware
	// resolves the session's binder and exposes the snapshot.
	protected := api.Group("", middleware.JWTProtected(cfg), middleware.ResolveIdentity(registry))

	// Identity and onboarding
	protected.Get("/me", profileHandler.Me)
	protected.Post("/me/terms", profileHandler.AgreeTerms)
	protected.Put("/me/nickname", profileHandler.SetNickname)
	protected.Get("/me/nickname/check", profileHandler.CheckNickname)
	protected.Delete("/me", profileHandler.Withdraw)
	protected.Get("/me/posts", boardHandler.MyPosts)

	// Board — reading is open to any signed-in member
	protected.Get("/posts", boardHandler.ListPosts)
	protected.Get("/posts/:id", boardHandler.GetPost)
	protected.Get("/posts/:id/comments", boardHandler.ListComments)

	// Board — writing requires completed onboarding
	writer := protected.Group("", middleware.RequireWriteAccess())
	writer.Post("/posts", boardHandler.CreatePost)
	writer.Put("/posts/:id", boardHandler.UpdatePost)
	writer.Delete("/posts/:id", boardHandler.DeletePost)
	writer.Post("/posts/:id/comments", boardHandler.CreateComment)
	writer.Delete("/posts/:id/comments/:commentId", boardHandler.DeleteComment)
	writer.Post("/posts/:id/reactions", boardHandler.React)
	writer.Post("/uploads/presign", uploadHandler.Presign)

	// Moderation — member endpoints
	protected.Post("/reports", moderationHandler.CreateReport)
	protected.Post("/blocks", moderationHandler.BlockUser)
	protected.Delete("/blocks/:blockedId", moderationHandler.UnblockUser)
	protected.Get("/blocks", moderationHandler.ListBlocked)

	// Admin console
	admin := protected.Group("/admin", middleware.AdminRequired(cfg))
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/admin", adminHandler.ToggleAdmin)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/posts", adminHandler.ListPosts)
	admin.Delete("/posts/:id", adminHandler.DeletePost)
	admin.Get("/reports", adminHandler.ListReports)
	admin.Put("/reports/:id", adminHandler.ActionReport)
	admin.Post("/categories", adminHandler.CreateCategory)
	admin.Put("/categories/:id", adminHandler.UpdateCategory)
	admin.Delete("/categories/:id", adminHandler.DeleteCategory)
}
