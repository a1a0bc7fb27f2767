package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetUserIDFromLocals membaca c.Locals("user_id") yang diset auth middleware.
// 401 kalau belum login, 400 kalau bukan UUID.
func GetUserIDFromLocals(c *fiber.Ctx) (uuid.UUID, error) {
	switch t := c.Locals("user_id").(type) {
	case uuid.UUID:
		if t != uuid.Nil {
			return t, nil
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "user_id tidak valid")
			}
			return id, nil
		}
	}
	return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
}
