// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/users/session"
	helper "grantku_backend/internals/helpers"
)

const LocIdentity = "identity"

// IdentityResolver di-implement session.Store.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, accessToken string) (*session.Identity, bool)
}

// RequireIdentity memutuskan identitas SEBELUM handler jalan. Tanpa sesi:
// browser (Accept: text/html) dapat 303 ke authURL, API client dapat 401 JSON.
func RequireIdentity(r IdentityResolver, authURL string) fiber.Handler {
	if authURL == "" {
		authURL = "/auth"
	}
	return func(c *fiber.Ctx) error {
		token := helper.GetRawAccessToken(c)
		id, ok := r.CurrentIdentity(c.UserContext(), token)
		if !ok {
			log.WithFields(log.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"token":  token != "",
			}).Debug("[AUTH] no session")
			if wantsHTML(c) {
				return c.Redirect(authURL, fiber.StatusSeeOther)
			}
			return helper.JsonUnauthorized(c, "authentication required", authURL)
		}

		helper.SetRawAccessToken(c, token)
		c.Locals(LocIdentity, id)
		c.Locals("user_id", id.ID)
		return c.Next()
	}
}

// IdentityFrom mengambil identitas yang sudah diset RequireIdentity.
func IdentityFrom(c *fiber.Ctx) (*session.Identity, bool) {
	id, ok := c.Locals(LocIdentity).(*session.Identity)
	return id, ok && id != nil
}

func wantsHTML(c *fiber.Ctx) bool {
	accept := strings.ToLower(c.Get(fiber.HeaderAccept))
	return strings.Contains(accept, "text/html")
}
