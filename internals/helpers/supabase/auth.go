package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
)

type AuthClient struct {
	c *Client
}

type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// SignOutScope mengikuti GoTrue: global | local | others.
type SignOutScope string

const (
	ScopeGlobal SignOutScope = "global"
	ScopeLocal  SignOutScope = "local"
	ScopeOthers SignOutScope = "others"
)

func (a *AuthClient) url(p string) string { return a.c.baseURL + "/auth/v1" + p }

// GetUser memvalidasi access token di provider (GET /user).
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	body, status, err := a.c.do(ctx, http.MethodGet, a.url("/user"), nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(body, status)
	}
	var u User
	if err := sonic.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.token(ctx, "password", map[string]string{"email": email, "password": password})
}

func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// SignUp mendaftarkan user baru. Bila project mewajibkan konfirmasi email,
// session yang dikembalikan tidak punya AccessToken.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*Session, error) {
	payload, err := sonic.Marshal(map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal signup: %w", err)
	}
	body, status, err := a.c.do(ctx, http.MethodPost, a.url("/signup"), payload, "", nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(body, status)
	}

	var s Session
	if err := sonic.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("unmarshal signup: %w", err)
	}
	// tanpa autoconfirm GoTrue mengembalikan user di root
	if s.User.ID == "" {
		var u User
		if err := sonic.Unmarshal(body, &u); err == nil {
			s.User = u
		}
	}
	return &s, nil
}

func (a *AuthClient) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	if scope == "" {
		scope = ScopeLocal
	}
	u := a.url("/logout") + "?scope=" + url.QueryEscape(string(scope))
	body, status, err := a.c.do(ctx, http.MethodPost, u, nil, accessToken, nil)
	if err != nil {
		return err
	}
	// 401/404 = session sudah tidak ada di provider, anggap sukses
	if status >= 400 && status != http.StatusUnauthorized && status != http.StatusNotFound {
		return parseError(body, status)
	}
	return nil
}

func (a *AuthClient) token(ctx context.Context, grant string, payload map[string]string) (*Session, error) {
	reqBody, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}
	body, status, err := a.c.do(ctx, http.MethodPost, a.url("/token?grant_type="+grant), reqBody, "", nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(body, status)
	}
	var s Session
	if err := sonic.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}
