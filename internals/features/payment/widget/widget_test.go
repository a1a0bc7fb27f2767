package widget

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sampleRequest() TransactionRequest {
	return TransactionRequest{
		Email:       "jane@example.com",
		AmountMinor: 200000,
		Currency:    "NGN",
		Reference:   "grant-1700000000000-42",
		FirstName:   "Jane",
		LastName:    "Doe",
		Metadata:    map[string]interface{}{"application_id": "grant-1700000000000-42", "user_id": "u-1", "school": "UNILAG"},
		OwnerID:     "u-1",
	}
}

func TestPaystackInitializeRegistersHooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_x", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, int64(200000), gjson.GetBytes(body, "amount").Int())
		assert.Equal(t, "NGN", gjson.GetBytes(body, "currency").String())
		assert.Equal(t, "UNILAG", gjson.GetBytes(body, "metadata.school").String())
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"grant-1700000000000-42"}}`))
	}))
	defer srv.Close()

	hub := NewHub()
	p := NewPaystack(PaystackConfig{PublicKey: "pk_test_x", SecretKey: "sk_test_x", BaseURL: srv.URL}, hub)

	h, err := p.NewTransaction(context.Background(), sampleRequest(), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "abc", h.AccessCode)
	assert.Equal(t, "pk_test_x", h.PublicKey)
	assert.Equal(t, PaystackScriptSrc, h.ScriptSrc)
	assert.Equal(t, 1, hub.Pending())
}

func TestPaystackInitializeFailureDoesNotRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	hub := NewHub()
	p := NewPaystack(PaystackConfig{SecretKey: "bad", BaseURL: srv.URL}, hub)

	_, err := p.NewTransaction(context.Background(), sampleRequest(), Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
	assert.Zero(t, hub.Pending())
}

type fakeSnap struct {
	got *snap.Request
	err *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &snap.Response{Token: "snap-token", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token"}, nil
}

func TestMidtransUsesMajorUnits(t *testing.T) {
	fs := &fakeSnap{}
	hub := NewHub()
	m := &Midtrans{client: fs, scriptSrc: midtransSandboxScriptSrc, hub: hub}

	h, err := m.NewTransaction(context.Background(), sampleRequest(), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "snap-token", h.Token)
	assert.Equal(t, int64(2000), fs.got.TransactionDetails.GrossAmt)
	assert.Equal(t, "Doe", fs.got.CustomerDetail.LName)
	assert.Equal(t, "UNILAG", fs.got.CustomField3)
	assert.Equal(t, 1, hub.Pending())
}

func TestMidtransErrorIsReturned(t *testing.T) {
	m := &Midtrans{client: &fakeSnap{err: &midtrans.Error{Message: "unauthorized", StatusCode: 401}}, hub: NewHub()}
	_, err := m.NewTransaction(context.Background(), sampleRequest(), Hooks{})
	assert.Error(t, err)
}

func TestHubDeliversTerminalOnce(t *testing.T) {
	hub := NewHub()
	var successes, callbacks int
	require.NoError(t, hub.Register("ref-1", "u-1", PaystackName, Hooks{
		OnSuccess: func(r Response) { successes++; assert.Equal(t, "ref-1", r.Reference) },
		Callback:  func(Response) { callbacks++ },
	}))

	require.NoError(t, hub.Deliver("ref-1", "u-1", Event{Kind: EventCallback}))
	require.NoError(t, hub.Deliver("ref-1", "", Event{Kind: EventSuccess}))
	err := hub.Deliver("ref-1", "u-1", Event{Kind: EventSuccess})

	assert.True(t, errors.Is(err, ErrUnknownReference))
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, callbacks)
}

func TestHubRejectsForeignOwner(t *testing.T) {
	hub := NewHub()
	closed := false
	require.NoError(t, hub.Register("ref-1", "u-1", PaystackName, Hooks{OnClose: func() { closed = true }}))

	err := hub.Deliver("ref-1", "u-2", Event{Kind: EventClose})
	assert.ErrorIs(t, err, ErrForeignReference)
	assert.False(t, closed)
	assert.Equal(t, 1, hub.Pending())

	assert.ErrorIs(t, hub.Register("ref-1", "u-1", PaystackName, Hooks{}), ErrDuplicateRef)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, EventSuccess, MapMidtransStatus("settlement", ""))
	assert.Equal(t, EventKind(""), MapMidtransStatus("capture", "challenge"))
	assert.Equal(t, EventFailed, MapMidtransStatus("expire", ""))
	assert.Equal(t, EventCancel, MapMidtransStatus("cancel", ""))
	assert.Equal(t, EventSuccess, MapPaystackEvent("charge.success"))
	assert.Equal(t, EventKind(""), MapPaystackEvent("transfer.success"))
	assert.Equal(t, "completed", PaymentStatus(EventSuccess))
	assert.Equal(t, EventCancel, MapGatewayStatus("abandoned"))
	assert.Equal(t, EventSuccess, MapGatewayStatus("success"))
	assert.Equal(t, "pending", PaymentStatus(MapGatewayStatus("ongoing")))
}
