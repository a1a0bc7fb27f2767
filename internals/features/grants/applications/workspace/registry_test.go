package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/notify"
)

func testBuilder(built *int) Builder {
	return func(userID string) *Workspace {
		*built++
		inbox := notify.NewInbox(userID, 0)
		return &Workspace{
			UserID: userID,
			Inbox:  inbox,
			Flow:   flow.NewController(form.NewHolder(), nil, nil, nil, nil, inbox, flow.Config{}),
		}
	}
}

func TestGetCreatesOncePerUser(t *testing.T) {
	built := 0
	r := NewRegistry(testBuilder(&built), time.Hour)

	a := r.Get("u-1")
	b := r.Get("u-1")
	r.Get("u-2")

	assert.Same(t, a, b)
	assert.Equal(t, 2, built)
	assert.Equal(t, 2, r.Len())
}

type fakeNotifier struct {
	handlers []session.Handler
}

func (f *fakeNotifier) OnIdentityChange(h session.Handler) func() {
	f.handlers = append(f.handlers, h)
	return func() { f.handlers = nil }
}

func (f *fakeNotifier) emit(ev session.Event, id *session.Identity) {
	for _, h := range f.handlers {
		h(ev, id)
	}
}

func TestSignOutDropsWorkspace(t *testing.T) {
	built := 0
	r := NewRegistry(testBuilder(&built), time.Hour)
	n := &fakeNotifier{}
	unsubscribe := r.Watch(n)

	r.Get("u-1")
	n.emit(session.EventTokenRefreshed, &session.Identity{ID: "u-1"})
	assert.Equal(t, 1, r.Len())

	n.emit(session.EventSignedOut, &session.Identity{ID: "u-1"})
	_, ok := r.Peek("u-1")
	assert.False(t, ok)

	unsubscribe()
	assert.Empty(t, n.handlers)
}

func TestReapIdle(t *testing.T) {
	built := 0
	r := NewRegistry(testBuilder(&built), time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Get("old")
	now = now.Add(2 * time.Hour)
	r.Get("fresh")

	assert.Equal(t, 1, r.ReapIdle())
	_, ok := r.Peek("fresh")
	assert.True(t, ok)
}

func TestRegisterReaper(t *testing.T) {
	c := cron.New()
	r := NewRegistry(testBuilder(new(int)), time.Hour)
	require.NoError(t, RegisterReaper(c, "", r))
	assert.Len(t, c.Entries(), 1)
	assert.Error(t, RegisterReaper(c, "not a spec", r))
}

func TestWorkspaceFlowStartsEditing(t *testing.T) {
	r := NewRegistry(testBuilder(new(int)), time.Hour)
	ws := r.Get("u-1")
	assert.Equal(t, flow.Editing, ws.Flow.State())
	assert.NoError(t, ws.Flow.Wait(context.Background()))
}
