package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantku_backend/internals/helpers/supabase"
)

const testSecret = "super-secret-jwt-key"

type fakeProvider struct {
	mu          sync.Mutex
	getUserHits int
	getUserErr  error
	signOutErr  error
	signedOut   []string
	signUpData  map[string]interface{}
	session     *supabase.Session
}

func (f *fakeProvider) GetUser(ctx context.Context, token string) (*supabase.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getUserHits++
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return &supabase.User{ID: "u-1", Email: "jane@example.com"}, nil
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	return f.session, nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.Session, error) {
	f.signUpData = data
	return &supabase.Session{User: supabase.User{ID: "u-1", Email: email}}, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*supabase.Session, error) {
	return f.session, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, token string, scope supabase.SignOutScope) error {
	f.signedOut = append(f.signedOut, string(scope))
	return f.signOutErr
}

type fakeBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func (b *fakeBlacklist) IsBlacklisted(ctx context.Context, fp string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[fp]
	return ok, nil
}

func (b *fakeBlacklist) Add(ctx context.Context, fp string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries == nil {
		b.entries = map[string]time.Time{}
	}
	b.entries[fp] = until
	return nil
}

func signToken(t *testing.T, secret, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
		"role":  "authenticated",
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestCurrentIdentityVerifiesLocally(t *testing.T) {
	p := &fakeProvider{}
	s := NewStore(p, Options{JWTSecret: testSecret})
	token := signToken(t, testSecret, "u-1", "jane@example.com", time.Now().Add(time.Hour))

	id, ok := s.CurrentIdentity(context.Background(), token)
	require.True(t, ok)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.Zero(t, p.getUserHits)
}

func TestCurrentIdentityRejectsBadTokens(t *testing.T) {
	s := NewStore(&fakeProvider{}, Options{JWTSecret: testSecret})
	ctx := context.Background()

	_, ok := s.CurrentIdentity(ctx, "")
	assert.False(t, ok)

	_, ok = s.CurrentIdentity(ctx, "not-a-jwt")
	assert.False(t, ok)

	expired := signToken(t, testSecret, "u-1", "jane@example.com", time.Now().Add(-time.Minute))
	_, ok = s.CurrentIdentity(ctx, expired)
	assert.False(t, ok)

	forged := signToken(t, "another-secret", "u-1", "jane@example.com", time.Now().Add(time.Hour))
	_, ok = s.CurrentIdentity(ctx, forged)
	assert.False(t, ok)
}

func TestCurrentIdentityAllowsClockSkew(t *testing.T) {
	s := NewStore(&fakeProvider{}, Options{JWTSecret: testSecret})
	token := signToken(t, testSecret, "u-1", "jane@example.com", time.Now().Add(-10*time.Second))

	_, ok := s.CurrentIdentity(context.Background(), token)
	assert.True(t, ok)
}

func TestCurrentIdentityFallsBackToProviderAndCaches(t *testing.T) {
	p := &fakeProvider{}
	s := NewStore(p, Options{})
	token := signToken(t, "whatever", "u-1", "jane@example.com", time.Now().Add(time.Hour))

	for i := 0; i < 3; i++ {
		id, ok := s.CurrentIdentity(context.Background(), token)
		require.True(t, ok)
		assert.Equal(t, "u-1", id.ID)
	}
	assert.Equal(t, 1, p.getUserHits)
}

func TestCurrentIdentityProviderErrorIsAbsent(t *testing.T) {
	p := &fakeProvider{getUserErr: errors.New("boom")}
	s := NewStore(p, Options{})
	token := signToken(t, "whatever", "u-1", "jane@example.com", time.Now().Add(time.Hour))

	id, ok := s.CurrentIdentity(context.Background(), token)
	assert.False(t, ok)
	assert.Nil(t, id)
}

func TestPersistentHitIsPromotedToMemory(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	persistent := NewMemoryCache()
	token := signToken(t, "whatever", "u-1", "jane@example.com", time.Now().Add(time.Hour))

	warm := NewStore(p, Options{Persistent: persistent})
	_, ok := warm.CurrentIdentity(ctx, token)
	require.True(t, ok)

	memory := NewMemoryCache()
	cold := NewStore(p, Options{Memory: memory, Persistent: persistent})
	_, ok = cold.CurrentIdentity(ctx, token)
	require.True(t, ok)
	assert.Equal(t, 1, p.getUserHits)

	_, hit, _ := memory.Get(ctx, cacheKey("u-1", token))
	assert.True(t, hit)
}

func TestSignOutPurgesBlacklistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	memory := NewMemoryCache()
	persistent := NewMemoryCache()
	bl := &fakeBlacklist{}
	s := NewStore(p, Options{JWTSecret: testSecret, Memory: memory, Persistent: persistent, Blacklist: bl})

	token := signToken(t, testSecret, "u-1", "jane@example.com", time.Now().Add(time.Hour))
	_, ok := s.CurrentIdentity(ctx, token)
	require.True(t, ok)
	require.NoError(t, persistent.Set(ctx, KeyPrefix("u-1")+"code-verifier", "x", 0))
	require.NoError(t, persistent.Set(ctx, KeyPrefix("u-2")+"other", "y", 0))

	var events []Event
	unsubscribe := s.OnIdentityChange(func(ev Event, id *Identity) { events = append(events, ev) })
	defer unsubscribe()

	id, err := s.SignOut(ctx, token, supabase.ScopeGlobal)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, []string{"global"}, p.signedOut)
	assert.Equal(t, []Event{EventSignedOut}, events)

	_, hit, _ := persistent.Get(ctx, KeyPrefix("u-1")+"code-verifier")
	assert.False(t, hit)
	_, hit, _ = persistent.Get(ctx, KeyPrefix("u-2")+"other")
	assert.True(t, hit)

	_, ok = s.CurrentIdentity(ctx, token)
	assert.False(t, ok)
}

func TestSignOutCleansUpEvenWhenProviderFails(t *testing.T) {
	ctx := context.Background()
	bl := &fakeBlacklist{}
	s := NewStore(&fakeProvider{signOutErr: errors.New("network down")}, Options{JWTSecret: testSecret, Blacklist: bl})
	token := signToken(t, testSecret, "u-1", "jane@example.com", time.Now().Add(time.Hour))

	_, err := s.SignOut(ctx, token, supabase.ScopeLocal)
	assert.Error(t, err)

	banned, _ := bl.IsBlacklisted(ctx, TokenFingerprint(token))
	assert.True(t, banned)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewStore(&fakeProvider{}, Options{})
	calls := 0
	unsubscribe := s.OnIdentityChange(func(Event, *Identity) { calls++ })
	unsubscribe()
	unsubscribe()

	_, _ = s.SignOut(context.Background(), "", supabase.ScopeLocal)
	assert.Zero(t, calls)
}

func TestSignUpDerivesDisplayNameAndSignsIn(t *testing.T) {
	p := &fakeProvider{session: &supabase.Session{
		AccessToken: "at",
		ExpiresIn:   3600,
		User:        supabase.User{ID: "u-1", Email: "jane.doe@example.com"},
	}}
	s := NewStore(p, Options{})

	var got []Event
	defer s.OnIdentityChange(func(ev Event, _ *Identity) { got = append(got, ev) })()

	sess, id, err := s.SignUp(context.Background(), " jane.doe@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "jane.doe", p.signUpData["full_name"])
	assert.Equal(t, []Event{EventSignedIn}, got)
}

func TestUserUpdatedWhenEmailChanges(t *testing.T) {
	s := NewStore(&fakeProvider{}, Options{JWTSecret: testSecret})
	var got []Event
	defer s.OnIdentityChange(func(ev Event, _ *Identity) { got = append(got, ev) })()

	ctx := context.Background()
	_, ok := s.CurrentIdentity(ctx, signToken(t, testSecret, "u-1", "old@example.com", time.Now().Add(time.Hour)))
	require.True(t, ok)
	_, ok = s.CurrentIdentity(ctx, signToken(t, testSecret, "u-1", "new@example.com", time.Now().Add(2*time.Hour)))
	require.True(t, ok)

	assert.Equal(t, []Event{EventUserUpdated}, got)
}
