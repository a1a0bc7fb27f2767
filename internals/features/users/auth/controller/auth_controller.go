package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/users/auth/dto"
	"grantku_backend/internals/features/users/session"
	helper "grantku_backend/internals/helpers"
	"grantku_backend/internals/helpers/supabase"
	authMw "grantku_backend/internals/middlewares/auth"
)

// SessionService di-implement *session.Store.
type SessionService interface {
	SignIn(ctx context.Context, email, password string) (*supabase.Session, *session.Identity, error)
	SignUp(ctx context.Context, email, password string) (*supabase.Session, *session.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*supabase.Session, *session.Identity, error)
	SignOut(ctx context.Context, accessToken string, scope supabase.SignOutScope) (*session.Identity, error)
}

type AuthController struct {
	Sessions     SessionService
	Validator    *validator.Validate
	AuthURL      string
	SecureCookie bool
}

func NewAuthController(s SessionService, authURL string, secureCookie bool) *AuthController {
	if authURL == "" {
		authURL = "/auth"
	}
	return &AuthController{Sessions: s, Validator: validator.New(), AuthURL: authURL, SecureCookie: secureCookie}
}

/* ===================== POST /api/auth/login ===================== */
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := ac.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}

	sess, id, err := ac.Sessions.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return providerError(c, err, "login failed")
	}
	return ac.issue(c, "login successful", sess, id, fiber.StatusOK)
}

/* ===================== POST /api/auth/register ===================== */
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := ac.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}

	sess, id, err := ac.Sessions.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return providerError(c, err, "registration failed")
	}
	return ac.issue(c, "registration successful", sess, id, fiber.StatusCreated)
}

/* ===================== POST /api/auth/refresh-token ===================== */
func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	_ = c.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = helper.GetRefreshTokenFromCookie(c)
	}
	if req.RefreshToken == "" {
		return helper.JsonUnauthorized(c, "refresh token not found", ac.AuthURL)
	}
	if err := ac.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}

	sess, id, err := ac.Sessions.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return providerError(c, err, "refresh failed")
	}
	return ac.issue(c, "token refreshed", sess, id, fiber.StatusOK)
}

/* ===================== POST /api/auth/logout ===================== */
// Logout: sign-out provider, purge cache + blacklist (di Store), hapus
// cookie sesi, lalu arahkan ke halaman auth.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	_ = c.BodyParser(&req)
	if err := ac.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}
	scope := supabase.SignOutScope(req.Scope)
	if scope == "" {
		scope = supabase.ScopeGlobal
	}

	token := helper.GetRawAccessToken(c)
	id, err := ac.Sessions.SignOut(c.UserContext(), token, scope)
	cleared := helper.ExpireSessionCookies(c, ac.SecureCookie)

	entry := log.WithField("cookies", len(cleared))
	if id != nil {
		entry = entry.WithField("user_id", id.ID)
	}
	if err != nil {
		// sesi lokal tetap sudah bersih
		entry.WithError(err).Warn("[AUTH] logout: provider sign-out failed")
	} else {
		entry.Info("[AUTH] logout")
	}

	if strings.Contains(strings.ToLower(c.Get(fiber.HeaderAccept)), "text/html") {
		return c.Redirect(ac.AuthURL, fiber.StatusSeeOther)
	}
	return helper.JsonOK(c, "logged out", fiber.Map{"redirect": ac.AuthURL})
}

/* ===================== GET /api/auth/me ===================== */
func (ac *AuthController) Me(c *fiber.Ctx) error {
	id, ok := authMw.IdentityFrom(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", ac.AuthURL)
	}
	return helper.JsonOK(c, "ok", toIdentityResponse(id))
}

func (ac *AuthController) issue(c *fiber.Ctx, msg string, sess *supabase.Session, id *session.Identity, status int) error {
	if sess == nil || sess.AccessToken == "" {
		// project mewajibkan konfirmasi email
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"message": "please confirm your email before signing in",
		})
	}
	ttl := time.Duration(sess.ExpiresIn) * time.Second
	helper.SetSessionCookies(c, sess.AccessToken, sess.RefreshToken, ttl, ac.SecureCookie)

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": msg,
		"data": dto.SessionResponse{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			ExpiresIn:    sess.ExpiresIn,
			User:         toIdentityResponse(id),
		},
	})
}

func toIdentityResponse(id *session.Identity) dto.IdentityResponse {
	if id == nil {
		return dto.IdentityResponse{}
	}
	return dto.IdentityResponse{ID: id.ID, Email: id.Email, ExpiresAt: id.ExpiresAt}
}

// providerError meneruskan pesan Supabase (4xx) apa adanya; 5xx disamarkan.
func providerError(c *fiber.Ctx, err error, fallback string) error {
	var se *supabase.Error
	if errors.As(err, &se) && se.StatusCode < 500 {
		status := se.StatusCode
		if status == fiber.StatusBadRequest || status == fiber.StatusUnprocessableEntity {
			status = fiber.StatusUnauthorized
		}
		return helper.JsonError(c, status, se.Message)
	}
	log.WithError(err).Errorf("[AUTH] %s", fallback)
	return helper.JsonError(c, fiber.StatusBadGateway, fallback)
}
