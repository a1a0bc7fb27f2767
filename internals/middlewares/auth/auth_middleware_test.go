package auth

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantku_backend/internals/features/users/session"
)

type staticResolver map[string]*session.Identity

func (s staticResolver) CurrentIdentity(_ context.Context, token string) (*session.Identity, bool) {
	id, ok := s[token]
	return id, ok
}

func newGuardedApp(handlerCalls *int) *fiber.App {
	app := fiber.New()
	r := staticResolver{"good": {ID: "u-1", Email: "jane@example.com"}}
	app.Get("/private", RequireIdentity(r, "/auth"), func(c *fiber.Ctx) error {
		*handlerCalls++
		id, _ := IdentityFrom(c)
		return c.SendString(id.ID)
	})
	return app
}

func TestRequireIdentityPassesThrough(t *testing.T) {
	calls := 0
	app := newGuardedApp(&calls)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-1", string(body))
	assert.Equal(t, 1, calls)
}

func TestRequireIdentityAPIClientGets401(t *testing.T) {
	calls := 0
	app := newGuardedApp(&calls)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), `"redirect":"/auth"`)
	assert.Zero(t, calls)
}

func TestRequireIdentityBrowserIsRedirected(t *testing.T) {
	calls := 0
	app := newGuardedApp(&calls)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth", resp.Header.Get("Location"))
	assert.Zero(t, calls)
}
