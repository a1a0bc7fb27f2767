// Package session adalah Session Store: sumber tunggal identitas user yang
// sedang login, di atas identity provider Supabase.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/helpers/supabase"
)

const (
	expirySkew      = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
	// dipakai bila exp token tidak bisa dibaca saat sign-out
	fallbackBlacklistTTL = time.Hour
)

// Provider adalah operasi identity provider yang dipakai Store.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string, scope supabase.SignOutScope) error
}

// Blacklist menyimpan fingerprint access token yang sudah di-sign-out.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, fingerprint string) (bool, error)
	Add(ctx context.Context, fingerprint string, expiresAt time.Time) error
}

type Options struct {
	JWTSecret  string
	Memory     Cache // default: NewMemoryCache()
	Persistent Cache // opsional (Redis)
	Blacklist  Blacklist
	CacheTTL   time.Duration
	Now        func() time.Time
}

type Store struct {
	provider   Provider
	secret     []byte
	memory     Cache
	persistent Cache
	blacklist  Blacklist
	cacheTTL   time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	emails   map[string]string // user id -> email terakhir yang terlihat
}

func NewStore(p Provider, opt Options) *Store {
	s := &Store{
		provider:   p,
		secret:     []byte(strings.TrimSpace(opt.JWTSecret)),
		memory:     opt.Memory,
		persistent: opt.Persistent,
		blacklist:  opt.Blacklist,
		cacheTTL:   opt.CacheTTL,
		now:        opt.Now,
		handlers:   map[int]Handler{},
		emails:     map[string]string{},
	}
	if s.memory == nil {
		s.memory = NewMemoryCache()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

/* ===================== Subscriptions ===================== */

// OnIdentityChange mendaftarkan handler; fungsi yang dikembalikan WAJIB
// dipanggil saat teardown.
func (s *Store) OnIdentityChange(h Handler) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event, id *Identity) {
	s.mu.RLock()
	hs := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(ev, id)
	}
}

/* ===================== Current identity ===================== */

// CurrentIdentity mengembalikan identitas pemilik access token. Error apa pun
// dari provider/cache/blacklist dianggap "tidak ada sesi".
func (s *Store) CurrentIdentity(ctx context.Context, accessToken string) (*Identity, bool) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, false
	}
	fp := TokenFingerprint(accessToken)

	if s.blacklist != nil {
		banned, err := s.blacklist.IsBlacklisted(ctx, fp)
		if err != nil {
			log.Printf("[ERROR] cek blacklist: %v", err)
			return nil, false
		}
		if banned {
			return nil, false
		}
	}

	claims, err := unverifiedClaims(accessToken)
	if err != nil {
		log.Printf("[WARN] token tidak bisa dibaca: %v", err)
		return nil, false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, false
	}
	key := cacheKey(sub, accessToken)

	if id, ok := s.fromCache(ctx, key); ok {
		return id, true
	}

	id, err := s.verify(ctx, accessToken)
	if err != nil {
		log.WithField("user_id", sub).Warnf("[SESSION] verifikasi gagal: %v", err)
		return nil, false
	}
	s.remember(ctx, key, id)
	s.trackEmail(id)
	return id, true
}

func (s *Store) fromCache(ctx context.Context, key string) (*Identity, bool) {
	for i, c := range []Cache{s.memory, s.persistent} {
		if c == nil {
			continue
		}
		raw, ok, err := c.Get(ctx, key)
		if err != nil {
			log.Printf("[WARN] session cache get: %v", err)
			continue
		}
		if !ok {
			continue
		}
		var id Identity
		if err := sonic.UnmarshalString(raw, &id); err != nil {
			continue
		}
		if id.Expired(s.now().Add(-expirySkew)) {
			return nil, false
		}
		// naikkan hit persistent ke memory
		if i > 0 {
			_ = s.memory.Set(ctx, key, raw, s.ttlFor(&id))
		}
		return &id, true
	}
	return nil, false
}

func (s *Store) remember(ctx context.Context, key string, id *Identity) {
	raw, err := sonic.MarshalString(id)
	if err != nil {
		return
	}
	ttl := s.ttlFor(id)
	if err := s.memory.Set(ctx, key, raw, ttl); err != nil {
		log.Printf("[WARN] session cache set (memory): %v", err)
	}
	if s.persistent != nil {
		if err := s.persistent.Set(ctx, key, raw, ttl); err != nil {
			log.Printf("[WARN] session cache set (persistent): %v", err)
		}
	}
}

func (s *Store) ttlFor(id *Identity) time.Duration {
	ttl := s.cacheTTL
	if !id.ExpiresAt.IsZero() {
		if until := id.ExpiresAt.Sub(s.now()); until < ttl {
			ttl = until
		}
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *Store) trackEmail(id *Identity) {
	s.mu.Lock()
	prev, seen := s.emails[id.ID]
	s.emails[id.ID] = id.Email
	s.mu.Unlock()
	if seen && prev != id.Email {
		s.emit(EventUserUpdated, id)
	}
}

// verify: HS256 lokal bila secret tersedia, selain itu tanya provider.
func (s *Store) verify(ctx context.Context, token string) (*Identity, error) {
	if len(s.secret) == 0 {
		u, err := s.provider.GetUser(ctx, token)
		if err != nil {
			return nil, err
		}
		id := &Identity{ID: u.ID, Email: u.Email}
		if claims, err := unverifiedClaims(token); err == nil {
			id.ExpiresAt = expiryOf(claims)
		}
		return id, nil
	}

	claims := jwt.MapClaims{}
	parser := jwt.Parser{SkipClaimsValidation: true}
	if _, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	exp := expiryOf(claims)
	if exp.IsZero() {
		return nil, errors.New("token has no exp")
	}
	if s.now().After(exp.Add(expirySkew)) {
		return nil, errors.New("token expired")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return nil, errors.New("token has no sub")
	}
	return &Identity{ID: sub, Email: email, ExpiresAt: exp}, nil
}

func unverifiedClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func expiryOf(claims jwt.MapClaims) time.Time {
	switch v := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

/* ===================== Sign in / up / refresh ===================== */

func (s *Store) SignIn(ctx context.Context, email, password string) (*supabase.Session, *Identity, error) {
	sess, err := s.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, nil, err
	}
	id := s.identityFromSession(ctx, sess)
	s.emit(EventSignedIn, id)
	return sess, id, nil
}

// SignUp mendaftar lalu langsung sign-in; nama tampilan diambil dari
// bagian lokal email.
func (s *Store) SignUp(ctx context.Context, email, password string) (*supabase.Session, *Identity, error) {
	email = strings.TrimSpace(email)
	data := map[string]interface{}{"full_name": DisplayNameFromEmail(email)}
	if _, err := s.provider.SignUp(ctx, email, password, data); err != nil {
		return nil, nil, err
	}
	return s.SignIn(ctx, email, password)
}

func (s *Store) Refresh(ctx context.Context, refreshToken string) (*supabase.Session, *Identity, error) {
	sess, err := s.provider.Refresh(ctx, strings.TrimSpace(refreshToken))
	if err != nil {
		return nil, nil, err
	}
	id := s.identityFromSession(ctx, sess)
	s.emit(EventTokenRefreshed, id)
	return sess, id, nil
}

func (s *Store) identityFromSession(ctx context.Context, sess *supabase.Session) *Identity {
	id := &Identity{ID: sess.User.ID, Email: sess.User.Email}
	switch {
	case sess.ExpiresAt > 0:
		id.ExpiresAt = time.Unix(sess.ExpiresAt, 0)
	case sess.ExpiresIn > 0:
		id.ExpiresAt = s.now().Add(time.Duration(sess.ExpiresIn) * time.Second)
	}
	if sess.AccessToken != "" && id.ID != "" {
		s.remember(ctx, cacheKey(id.ID, sess.AccessToken), id)
		s.trackEmail(id)
	}
	return id
}

func DisplayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

/* ===================== Sign out ===================== */

// SignOut: provider sign-out, purge semua key ber-prefix user di kedua cache,
// blacklist token sampai exp, lalu emit SIGNED_OUT. Pembersihan lokal tetap
// jalan walau provider gagal; error provider dikembalikan setelahnya.
func (s *Store) SignOut(ctx context.Context, accessToken string, scope supabase.SignOutScope) (*Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		s.emit(EventSignedOut, nil)
		return nil, nil
	}

	id, _ := s.CurrentIdentity(ctx, accessToken)
	claims, _ := unverifiedClaims(accessToken)
	if id == nil && claims != nil {
		if sub, _ := claims["sub"].(string); sub != "" {
			email, _ := claims["email"].(string)
			id = &Identity{ID: sub, Email: email, ExpiresAt: expiryOf(claims)}
		}
	}

	providerErr := s.provider.SignOut(ctx, accessToken, scope)
	if providerErr != nil {
		log.Printf("[ERROR] provider sign-out: %v", providerErr)
	}

	if id != nil {
		prefix := KeyPrefix(id.ID)
		for _, c := range []Cache{s.memory, s.persistent} {
			if c == nil {
				continue
			}
			if n, err := c.PurgePrefix(ctx, prefix); err != nil {
				log.Printf("[WARN] purge %s*: %v", prefix, err)
			} else if n > 0 {
				log.WithField("user_id", id.ID).Debugf("[SESSION] %d key dibersihkan", n)
			}
		}
		s.mu.Lock()
		delete(s.emails, id.ID)
		s.mu.Unlock()
	}

	if s.blacklist != nil {
		until := s.now().Add(fallbackBlacklistTTL)
		if claims != nil {
			if exp := expiryOf(claims); !exp.IsZero() {
				until = exp.Add(expirySkew)
			}
		}
		if err := s.blacklist.Add(ctx, TokenFingerprint(accessToken), until); err != nil {
			log.Printf("[WARN] Failed to blacklist token: %v", err)
		}
	}

	s.emit(EventSignedOut, id)

	if providerErr != nil {
		return id, fmt.Errorf("sign out: %w", providerErr)
	}
	return id, nil
}
