package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Identity adalah user yang sedang login menurut identity provider.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (i *Identity) Expired(now time.Time) bool {
	return i == nil || (!i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt))
}

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Handler menerima perubahan identitas. Identity nil untuk SIGNED_OUT
// bila token sudah tidak bisa diidentifikasi.
type Handler func(event Event, identity *Identity)

// KeyPrefix adalah prefix kunci cache milik satu user, mengikuti format
// storage key client Supabase ("supabase.auth.<user id>.").
func KeyPrefix(userID string) string {
	return "supabase.auth." + userID + "."
}

func cacheKey(userID, token string) string {
	return KeyPrefix(userID) + TokenFingerprint(token)
}

// TokenFingerprint: sha256 hex dari access token; token mentah tidak pernah
// disimpan di cache maupun blacklist.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
