package route

import (
	"github.com/gofiber/fiber/v2"

	"grantku_backend/internals/features/grants/applications/controller"
)

// GrantApplicationUserRoutes: base /api/u/grant-application (RequireIdentity sudah terpasang).
func GrantApplicationUserRoutes(r fiber.Router, ctrl *controller.GrantApplicationController) {
	r.Get("/", ctrl.GetWorkspace)
	r.Patch("/draft", ctrl.UpdateDraft)
	r.Delete("/draft", ctrl.ResetDraft)
	r.Put("/passport", ctrl.UploadPassport)
	r.Post("/submit", ctrl.Submit)
}
