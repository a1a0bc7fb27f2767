package workspace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/grants/applications/service"
	"grantku_backend/internals/features/payment/checkout"
	"grantku_backend/internals/features/payment/loader"
	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/notify"
)

type hubWidget struct{ hub *widget.Hub }

func (w hubWidget) Name() string { return "fake" }
func (w hubWidget) NewTransaction(_ context.Context, req widget.TransactionRequest, hooks widget.Hooks) (*widget.Handoff, error) {
	if err := w.hub.Register(req.Reference, req.OwnerID, "fake", hooks); err != nil {
		return nil, err
	}
	return &widget.Handoff{Gateway: "fake", Reference: req.Reference}, nil
}

type readySource struct{ w widget.Widget }

func (s readySource) Widget() (widget.Widget, bool) { return s.w, true }

type readyLoader struct{}

func (readyLoader) Load() loader.State  { return loader.StateReady }
func (readyLoader) State() loader.State { return loader.StateReady }
func (readyLoader) Diagnostic() string  { return "" }

type staticIdentity struct{ id *session.Identity }

func (s staticIdentity) CurrentIdentity(context.Context, string) (*session.Identity, bool) {
	return s.id, true
}

type noSubmit struct{}

func (noSubmit) Submit(context.Context, form.Draft, *session.Identity, *service.PaymentInfo) (*model.GrantApplication, error) {
	return &model.GrantApplication{}, nil
}

// paidBuilder membuat workspace dengan pembayaran wajib; reference unik per transaksi.
func paidBuilder(t *testing.T, hub *widget.Hub) Builder {
	n := 0
	return func(userID string) *Workspace {
		inbox := notify.NewInbox(userID, 0)
		id := staticIdentity{id: &session.Identity{ID: userID, Email: "jane@example.com", ExpiresAt: time.Now().Add(time.Hour)}}
		orch := checkout.New(readySource{w: hubWidget{hub: hub}}, id, inbox, checkout.Config{
			NewReference: func() string { n++; return fmt.Sprintf("ref-%d", n) },
			Hub:          hub,
		})
		h := form.NewHolder()
		for k, v := range map[string]string{
			form.FieldFullName:      "Jane Doe",
			form.FieldPhoneNumber:   "08012345678",
			form.FieldEmail:         "jane@example.com",
			form.FieldNIN:           "12345678901",
			form.FieldSchoolName:    "University of Lagos",
			form.FieldStudyLevel:    "200 Level",
			form.FieldAmount:        "30000",
			form.FieldReason:        "Tuition support",
			form.FieldAccountNumber: "0123456789",
			form.FieldAccountName:   "Jane Doe",
			form.FieldBank:          "Zenith Bank",
		} {
			require.NoError(t, h.UpdateField(k, v))
		}
		h.UpdateFileField(&form.Attachment{FileName: "p.txt", Data: []byte("passport")})
		return &Workspace{
			UserID: userID,
			Inbox:  inbox,
			Flow:   flow.NewController(h, orch, noSubmit{}, id, readyLoader{}, inbox, flow.Config{PaymentRequired: true}),
		}
	}
}

func startPayment(t *testing.T, r *Registry) *Workspace {
	t.Helper()
	ws := r.Get("u-1")
	snap, err := ws.Flow.Start(context.Background(), "token")
	require.NoError(t, err)
	require.Equal(t, flow.PendingPayment, snap.State)
	return ws
}

func TestSignOutDuringPaymentKeepsWorkspace(t *testing.T) {
	hub := widget.NewHub()
	r := NewRegistry(paidBuilder(t, hub), time.Hour)
	n := &fakeNotifier{}
	r.Watch(n)

	first := startPayment(t, r)
	n.emit(session.EventSignedOut, &session.Identity{ID: "u-1"})

	_, ok := r.Peek("u-1")
	assert.True(t, ok, "workspace with a pending payment must survive sign-out")

	// login lagi: workspace + guard yang sama, tidak ada transaksi kedua
	again := r.Get("u-1")
	assert.Same(t, first, again)
	_, err := again.Flow.Start(context.Background(), "token")
	assert.ErrorIs(t, err, flow.ErrBusy)
	assert.Equal(t, 1, hub.Pending())
}

func TestSignedOutWorkspaceDroppedWhenRunEnds(t *testing.T) {
	hub := widget.NewHub()
	r := NewRegistry(paidBuilder(t, hub), time.Hour)
	n := &fakeNotifier{}
	r.Watch(n)

	ws := startPayment(t, r)
	n.emit(session.EventSignedOut, &session.Identity{ID: "u-1"})
	require.NoError(t, hub.Deliver("ref-1", "", widget.Event{Kind: widget.EventCancel}))

	assert.Eventually(t, func() bool {
		_, ok := r.Peek("u-1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, flow.Editing, ws.Flow.State())
}

func TestReturningUserKeepsWorkspaceAfterRun(t *testing.T) {
	hub := widget.NewHub()
	r := NewRegistry(paidBuilder(t, hub), time.Hour)
	n := &fakeNotifier{}
	r.Watch(n)

	ws := startPayment(t, r)
	n.emit(session.EventSignedOut, &session.Identity{ID: "u-1"})
	r.Get("u-1")
	require.NoError(t, hub.Deliver("ref-1", "", widget.Event{Kind: widget.EventCancel}))
	require.NoError(t, ws.Flow.Wait(context.Background()))

	assert.False(t, r.dropIfSignedOut("u-1", ws))
	got, ok := r.Peek("u-1")
	require.True(t, ok)
	// notifikasi run lama tetap sampai ke inbox user
	var titles []string
	for _, nt := range got.Inbox.Peek() {
		titles = append(titles, nt.Title)
	}
	assert.Contains(t, titles, "Payment Cancelled")
}
