package route

import (
	"github.com/gofiber/fiber/v2"

	paymentController "grantku_backend/internals/features/payment/controller"
)

// PaymentPublicRoutes: tanpa sesi (status widget + webhook gateway).
func PaymentPublicRoutes(public fiber.Router, ctrl *paymentController.PaymentController) {
	g := public.Group("/payments")
	g.Get("/widget", ctrl.WidgetStatus)
	g.Post("/webhook/:gateway", ctrl.Webhook)
}

// PaymentUserRoutes: di bawah /api/u/grant-application (sudah RequireIdentity).
func PaymentUserRoutes(user fiber.Router, ctrl *paymentController.PaymentController) {
	user.Post("/payment-events", ctrl.RelayEvent)
}
