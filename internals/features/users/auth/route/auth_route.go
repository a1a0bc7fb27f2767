// file: internals/features/users/auth/route/auth_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"grantku_backend/internals/features/users/auth/controller"
	rateLimiter "grantku_backend/internals/middlewares"
)

// AuthRoutes: /api/auth. requireIdentity dipasang hanya di endpoint yang butuh sesi.
func AuthRoutes(app *fiber.App, ctrl *controller.AuthController, requireIdentity fiber.Handler) {
	baseAuth := app.Group("/api/auth")

	baseAuth.Post("/login", rateLimiter.LoginRateLimiter(), ctrl.Login)
	baseAuth.Post("/register", rateLimiter.RegisterRateLimiter(), ctrl.Register)
	baseAuth.Post("/refresh-token", ctrl.RefreshToken)

	// logout tetap jalan walau token sudah kedaluwarsa
	baseAuth.Post("/logout", ctrl.Logout)
	baseAuth.Get("/me", requireIdentity, ctrl.Me)
}
