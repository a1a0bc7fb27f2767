package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	grantController "grantku_backend/internals/features/grants/applications/controller"
	"grantku_backend/internals/features/grants/applications/workspace"
	paymentController "grantku_backend/internals/features/payment/controller"
	"grantku_backend/internals/features/payment/widget"
	authController "grantku_backend/internals/features/users/auth/controller"
	"grantku_backend/internals/features/users/session"
)

type noIdentity struct{}

func (noIdentity) CurrentIdentity(context.Context, string) (*session.Identity, bool) {
	return nil, false
}

func newRoutedApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	app := fiber.New()
	SetupRoutes(app, Deps{
		DB:       db,
		Identity: noIdentity{},
		AuthURL:  "/auth",
		Auth:     authController.NewAuthController(nil, "/auth", false),
		Payment:  paymentController.NewPaymentController(nil, widget.NewHub(), nil, nil, "", ""),
		Grant:    grantController.NewGrantApplicationController(workspace.NewRegistry(nil, time.Hour)),
	})
	return app, mock
}

func TestHealthPingsDatabase(t *testing.T) {
	app, mock := newRoutedApp(t)
	mock.ExpectPing()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"database":"Connected"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	app, mock := newRoutedApp(t)
	mock.ExpectPing().WillReturnError(assert.AnError)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPrivateRoutesRequireIdentity(t *testing.T) {
	app, _ := newRoutedApp(t)

	for _, path := range []string{
		"/api/u/grant-application",
		"/api/auth/me",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `"redirect":"/auth"`, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/u/grant-application/payment-events", nil)
	req.Header.Set(fiber.HeaderAccept, "text/html")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth", resp.Header.Get("Location"))
}

func TestWebhookUnknownGatewayIsIgnored(t *testing.T) {
	app, _ := newRoutedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/public/payments/webhook/flutterwave", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
