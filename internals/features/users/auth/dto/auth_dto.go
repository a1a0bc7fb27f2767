package dto

import "time"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// RefreshRequest: refresh_token boleh kosong kalau ada di cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty,min=8"`
}

type LogoutRequest struct {
	Scope string `json:"scope" validate:"omitempty,oneof=global local others"`
}

type IdentityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	ExpiresIn    int64            `json:"expires_in"`
	User         IdentityResponse `json:"user"`
}
