// helpers/token.go
package helper

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Simpan raw token di Locals dari middleware (biar handler tidak parse ulang)
const LocRawToken = "raw_token"

// Nama cookie sesi yang dikenali. Cookie "sb-*" / "supabase.auth.*" milik
// client Supabase di browser.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
)

// GetRawAccessToken mengembalikan access token dari:
// 1) Locals("raw_token") yang diset middleware
// 2) Authorization header "Bearer <token>"
// 3) cookie "access_token" / "sb-access-token"
func GetRawAccessToken(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocRawToken).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	fields := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
		return strings.Trim(fields[1], "\"'")
	}
	for _, name := range []string{CookieAccessToken, "sb-access-token"} {
		if v := strings.TrimSpace(c.Cookies(name)); v != "" {
			return v
		}
	}
	return ""
}

func GetRefreshTokenFromCookie(c *fiber.Ctx) string {
	for _, name := range []string{CookieRefreshToken, "sb-refresh-token"} {
		if v := strings.TrimSpace(c.Cookies(name)); v != "" {
			return v
		}
	}
	return ""
}

func SetRawAccessToken(c *fiber.Ctx, raw string) {
	if strings.TrimSpace(raw) != "" {
		c.Locals(LocRawToken, strings.TrimSpace(raw))
	}
}

// SetSessionCookies menulis access/refresh token sebagai cookie HttpOnly.
func SetSessionCookies(c *fiber.Ctx, accessToken, refreshToken string, accessTTL time.Duration, secure bool) {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieAccessToken,
		Value:    accessToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
		Expires:  time.Now().Add(accessTTL),
	})
	if refreshToken != "" {
		c.Cookie(&fiber.Cookie{
			Name:     CookieRefreshToken,
			Value:    refreshToken,
			Path:     "/",
			HTTPOnly: true,
			Secure:   secure,
			SameSite: "Lax",
			Expires:  time.Now().Add(30 * 24 * time.Hour),
		})
	}
}

// IsSessionCookie: cookie yang wajib dihapus saat sign-out.
func IsSessionCookie(name string) bool {
	switch {
	case name == CookieAccessToken, name == CookieRefreshToken:
		return true
	case strings.HasPrefix(name, "sb-"), strings.HasPrefix(name, "supabase.auth."):
		return true
	}
	return false
}

// ExpireSessionCookies menghapus semua cookie sesi yang dikirim browser,
// plus access_token/refresh_token walaupun tidak dikirim.
func ExpireSessionCookies(c *fiber.Ctx, secure bool) []string {
	names := map[string]struct{}{CookieAccessToken: {}, CookieRefreshToken: {}}
	c.Request().Header.VisitAllCookie(func(k, _ []byte) {
		if name := string(k); IsSessionCookie(name) {
			names[name] = struct{}{}
		}
	})

	expired := time.Now().Add(-time.Hour)
	out := make([]string, 0, len(names))
	for name := range names {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HTTPOnly: true,
			Secure:   secure,
			SameSite: "Lax",
			Expires:  expired,
			MaxAge:   -1,
		})
		out = append(out, name)
	}
	return out
}
