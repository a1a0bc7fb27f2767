package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"grantku_backend/internals/middlewares/logger"
)

// SetupMiddlewares memasang middleware global; urutan: recover paling luar.
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(CorsMiddleware())
	app.Use(logger.LoggerMiddleware())
	app.Use(GlobalRateLimiter())
}
