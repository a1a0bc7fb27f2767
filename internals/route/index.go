// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	grantController "grantku_backend/internals/features/grants/applications/controller"
	grantRoute "grantku_backend/internals/features/grants/applications/route"
	paymentController "grantku_backend/internals/features/payment/controller"
	paymentRoute "grantku_backend/internals/features/payment/route"
	authController "grantku_backend/internals/features/users/auth/controller"
	authRoute "grantku_backend/internals/features/users/auth/route"
	authMw "grantku_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps: controller yang sudah dirakit di main.
type Deps struct {
	DB       *gorm.DB
	Identity authMw.IdentityResolver
	AuthURL  string
	Auth     *authController.AuthController
	Payment  *paymentController.PaymentController
	Grant    *grantController.GrantApplicationController
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up BaseRoutes...")
	BaseRoutes(app, d.DB)

	requireIdentity := authMw.RequireIdentity(d.Identity, d.AuthURL)

	// ===================== AUTH =====================
	log.Println("[INFO] Setting up AuthRoutes...")
	authRoute.AuthRoutes(app, d.Auth, requireIdentity)

	// ===================== PUBLIC =====================
	log.Println("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api/public")
	paymentRoute.PaymentPublicRoutes(public, d.Payment)

	// ===================== PRIVATE (USER) =====================
	log.Println("[INFO] Setting up PRIVATE group...")
	private := app.Group("/api/u", requireIdentity)
	grants := private.Group("/grant-application")
	grantRoute.GrantApplicationUserRoutes(grants, d.Grant)
	paymentRoute.PaymentUserRoutes(grants, d.Payment)
}
