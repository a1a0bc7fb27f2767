package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "anon-key", "service-key")
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"jane@example.com","password":"secret1"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"u-1","email":"jane@example.com"}}`))
	})

	s, err := c.Auth.SignInWithPassword(context.Background(), "jane@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "u-1", s.User.ID)
}

func TestAuthErrorIsParsed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := c.Auth.SignInWithPassword(context.Background(), "jane@example.com", "nope")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "Invalid login credentials", se.Message)
}

func TestSignOutToleratesMissingSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "global", r.URL.Query().Get("scope"))
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	})

	assert.NoError(t, c.Auth.SignOut(context.Background(), "at", ScopeGlobal))
}

func TestSignUpWithoutAutoconfirmReturnsUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u-9","email":"new@example.com"}`))
	})

	s, err := c.Auth.SignUp(context.Background(), "new@example.com", "secret1", map[string]interface{}{"full_name": "new"})
	require.NoError(t, err)
	assert.Empty(t, s.AccessToken)
	assert.Equal(t, "u-9", s.User.ID)
}

func TestStorageUploadUsesServiceKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/passports/A123-1700000000000.webp", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "image/webp", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"Key":"passports/A123-1700000000000.webp"}`))
	})

	path, err := c.Storage.Upload(context.Background(), "passports", "A123-1700000000000.webp", []byte("img"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "A123-1700000000000.webp", path)
	assert.Contains(t, c.Storage.PublicURL("passports", path), "/storage/v1/object/public/passports/A123-1700000000000.webp")
}

func TestStorageUploadFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
	})

	_, err := c.Storage.Upload(context.Background(), "passports", "x.webp", []byte("img"), "image/webp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The resource already exists")
}
