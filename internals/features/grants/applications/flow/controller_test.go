package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/grants/applications/service"
	"grantku_backend/internals/features/payment/checkout"
	"grantku_backend/internals/features/payment/loader"
	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/apperr"
	"grantku_backend/internals/helpers/notify"
)

/* ---------- fakes ---------- */

type hubWidget struct{ hub *widget.Hub }

func (w hubWidget) Name() string { return "fake" }
func (w hubWidget) NewTransaction(_ context.Context, req widget.TransactionRequest, hooks widget.Hooks) (*widget.Handoff, error) {
	if err := w.hub.Register(req.Reference, req.OwnerID, "fake", hooks); err != nil {
		return nil, err
	}
	return &widget.Handoff{Gateway: "fake", Reference: req.Reference, AmountMinor: req.AmountMinor}, nil
}

type readySource struct{ w widget.Widget }

func (s readySource) Widget() (widget.Widget, bool) { return s.w, true }

type fakeReadiness struct {
	state loader.State
	loads int
}

func (f *fakeReadiness) Load() loader.State  { f.loads++; return f.state }
func (f *fakeReadiness) State() loader.State { return f.state }
func (f *fakeReadiness) Diagnostic() string  { return "" }

type fakeIdentity struct{ id *session.Identity }

func (f fakeIdentity) CurrentIdentity(context.Context, string) (*session.Identity, bool) {
	return f.id, f.id != nil
}

type memStorage struct{}

func (memStorage) Upload(_ context.Context, _, key string, _ []byte, _ string) (string, error) {
	return key, nil
}
func (memStorage) PublicURL(bucket, path string) string { return "https://cdn/" + bucket + "/" + path }

type memStore struct {
	mu   sync.Mutex
	recs []*model.GrantApplication
}

func (m *memStore) Insert(_ context.Context, rec *model.GrantApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}
func (m *memStore) AttachPaymentConfirmation(context.Context, string, service.ConfirmationPatch) (bool, error) {
	return false, nil
}

type countingSubmitter struct {
	inner Submitter
	mu    sync.Mutex
	calls int
}

func (c *countingSubmitter) Submit(ctx context.Context, d form.Draft, id *session.Identity, pay *service.PaymentInfo) (*model.GrantApplication, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Submit(ctx, d, id, pay)
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

/* ---------- harness ---------- */

var jane = &session.Identity{
	ID:        "3f2b6a9e-0c1d-4e5f-8a7b-9c0d1e2f3a4b",
	Email:     "jane@example.com",
	ExpiresAt: time.Now().Add(time.Hour),
}

type harness struct {
	ctrl      *Controller
	hub       *widget.Hub
	store     *memStore
	submitter *countingSubmitter
	inbox     *notify.Inbox
	readiness *fakeReadiness
}

func newHarness(t *testing.T, paymentRequired bool) *harness {
	t.Helper()
	hub := widget.NewHub()
	inbox := notify.NewInbox(jane.ID, 0)
	store := &memStore{}
	sub := &countingSubmitter{inner: service.NewSubmissionService(memStorage{}, store, nil, service.Config{})}
	idr := fakeIdentity{id: jane}
	orch := checkout.New(readySource{w: hubWidget{hub: hub}}, idr, inbox, checkout.Config{
		NewReference: func() string { return "ref-123" },
		Hub:          hub,
	})
	ready := &fakeReadiness{state: loader.StateReady}

	h := form.NewHolder()
	fill(t, h)
	return &harness{
		ctrl:      NewController(h, orch, sub, idr, ready, inbox, Config{PaymentRequired: paymentRequired, Gateway: "fake"}),
		hub:       hub,
		store:     store,
		submitter: sub,
		inbox:     inbox,
		readiness: ready,
	}
}

func fill(t *testing.T, h *form.Holder) {
	t.Helper()
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
	h.UpdateFileField(&form.Attachment{FileName: "p.txt", ContentType: "text/plain", Data: []byte("passport")})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

/* ---------- tests ---------- */

func TestEndToEndPaidSubmission(t *testing.T) {
	hs := newHarness(t, true)

	snap, err := hs.ctrl.Start(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, PendingPayment, snap.State)
	require.NotNil(t, snap.Handoff)
	assert.Equal(t, "ref-123", snap.Handoff.Reference)

	require.NoError(t, hs.hub.Deliver("ref-123", jane.ID, widget.Event{Kind: widget.EventSuccess, Response: widget.Response{Status: "success"}}))
	require.NoError(t, hs.ctrl.Wait(waitCtx(t)))

	final := hs.ctrl.Snapshot()
	assert.Equal(t, Submitted, final.State)
	assert.NoError(t, final.LastError)
	require.Len(t, hs.store.recs, 1)

	rec := hs.store.recs[0]
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, "30000", rec.Amount.String())
	assert.Equal(t, "ref-123", *rec.PaymentReference)
	assert.Equal(t, form.Draft{}, hs.ctrl.Form().Snapshot())

	var titles []string
	for _, n := range hs.inbox.Peek() {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"Payment Successful", "Application Submitted"}, titles)
}

func TestCancelledPaymentReturnsToEditing(t *testing.T) {
	hs := newHarness(t, true)

	_, err := hs.ctrl.Start(context.Background(), "token")
	require.NoError(t, err)
	require.NoError(t, hs.hub.Deliver("ref-123", jane.ID, widget.Event{Kind: widget.EventCancel}))
	require.NoError(t, hs.ctrl.Wait(waitCtx(t)))

	snap := hs.ctrl.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.ErrorIs(t, snap.LastError, apperr.ErrPaymentCancelled)
	assert.Zero(t, hs.submitter.count())
	assert.Equal(t, "Jane Doe", hs.ctrl.Form().Snapshot().FullName)
}

func TestValidationFailureNeverPays(t *testing.T) {
	hs := newHarness(t, true)
	require.NoError(t, hs.ctrl.Form().UpdateField(form.FieldAmount, "500"))

	snap, err := hs.ctrl.Start(context.Background(), "token")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
	assert.Equal(t, Editing, snap.State)
	assert.Zero(t, hs.hub.Pending())

	n := hs.inbox.Peek()
	require.Len(t, n, 1)
	assert.Equal(t, "Invalid amount", n[0].Title)
}

func TestScriptUnavailableTriggersReload(t *testing.T) {
	hs := newHarness(t, true)
	hs.readiness.state = loader.StateFailed

	_, err := hs.ctrl.Start(context.Background(), "token")
	assert.ErrorIs(t, err, apperr.ErrScriptUnavailable)
	assert.Equal(t, 1, hs.readiness.loads)
	assert.Zero(t, hs.hub.Pending())
}

func TestSecondStartWhilePendingIsBusy(t *testing.T) {
	hs := newHarness(t, true)

	_, err := hs.ctrl.Start(context.Background(), "token")
	require.NoError(t, err)
	_, err = hs.ctrl.Start(context.Background(), "token")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, hs.ctrl.Reset(), ErrBusy)
	assert.Equal(t, 1, hs.hub.Pending())
}

func TestWithoutPaymentSubmitsDirectly(t *testing.T) {
	hs := newHarness(t, false)

	snap, err := hs.ctrl.Run(waitCtx(t), "token")
	require.NoError(t, err)
	assert.Equal(t, Submitted, snap.State)
	require.Len(t, hs.store.recs, 1)
	assert.Nil(t, hs.store.recs[0].PaymentReference)

	require.NoError(t, hs.ctrl.Reset())
	assert.Equal(t, Editing, hs.ctrl.State())
}

func TestUnauthenticatedStart(t *testing.T) {
	hs := newHarness(t, true)
	hs.ctrl.identity = fakeIdentity{}

	_, err := hs.ctrl.Start(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.Equal(t, Editing, hs.ctrl.State())
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, form.Draft, *session.Identity, *service.PaymentInfo) (*model.GrantApplication, error) {
	return nil, apperr.UploadFailed(errors.New("bucket down"))
}

func TestSubmissionFailureKeepsDraft(t *testing.T) {
	hs := newHarness(t, false)
	hs.ctrl.submitter = failingSubmitter{}

	snap, err := hs.ctrl.Run(waitCtx(t), "token")
	assert.ErrorIs(t, err, apperr.ErrUploadFailed)
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, "Jane Doe", hs.ctrl.Form().Snapshot().FullName)
}
